// Package roster loads the vehicles taking part in the simulation.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ukydev/fleet-journey-sim/internal/db"
	"github.com/ukydev/fleet-journey-sim/internal/models"
)

var (
	ErrMissingSerial   = errors.New("vehicle without serial number")
	ErrDuplicateSerial = errors.New("duplicate vehicle serial number")
)

// LoadFile reads a JSON array of {"id", "country", "speedKph"} objects.
func LoadFile(path string) ([]models.Vehicle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var vehicles []models.Vehicle
	if err := json.Unmarshal(data, &vehicles); err != nil {
		return nil, fmt.Errorf("decode roster %s: %w", path, err)
	}
	return normalize(vehicles)
}

// FromCollection reads the roster stored in a vehicle collection.
func FromCollection(ctx context.Context, coll db.VehicleCollection) ([]models.Vehicle, error) {
	vehicles, err := coll.FindVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("find vehicles: %w", err)
	}
	return normalize(vehicles)
}

func normalize(vehicles []models.Vehicle) ([]models.Vehicle, error) {
	seen := make(map[string]bool, len(vehicles))
	for i := range vehicles {
		v := &vehicles[i]
		v.SerialNumber = strings.TrimSpace(v.SerialNumber)
		v.OriginCountry = strings.ToUpper(strings.TrimSpace(v.OriginCountry))
		if v.SerialNumber == "" {
			return nil, fmt.Errorf("roster entry %d: %w", i, ErrMissingSerial)
		}
		if seen[v.SerialNumber] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSerial, v.SerialNumber)
		}
		seen[v.SerialNumber] = true
		if v.SpeedKph < 0 {
			v.SpeedKph = 0
		}
	}
	return vehicles, nil
}
