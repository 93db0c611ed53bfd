package db

import (
	"context"

	"github.com/ukydev/fleet-journey-sim/internal/models"
)

// VehicleCollection defines the interface for vehicle roster operations.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) error
	FindVehicles(ctx context.Context) ([]models.Vehicle, error)
}

// EventCollection defines the interface for archiving location events.
type EventCollection interface {
	InsertLocationEvent(ctx context.Context, event models.ArchivedEvent) error
}
