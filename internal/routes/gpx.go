package routes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"
	"github.com/tkrajina/gpxgo/gpx"
	"github.com/ukydev/fleet-journey-sim/internal/models"
)

// CountryCodeFromFileName extracts the country code from a sub-route file name.
// The code is the two letters following the first '-', so "01-NL.gpx" and
// "3-de_munich.gpx" give "NL" and "DE".
func CountryCodeFromFileName(name string) (string, error) {
	i := strings.Index(name, "-")
	if i < 0 || len(name) < i+3 {
		return "", fmt.Errorf("no country code in %q", name)
	}
	code := strings.ToUpper(name[i+1 : i+3])
	for _, r := range code {
		if !unicode.IsLetter(r) {
			return "", fmt.Errorf("no country code in %q", name)
		}
	}
	return code, nil
}

// LoadDir reads every route below dir. Each sub-directory is one route named
// after the directory; each .gpx file inside it is one sub-route, driven in file
// name order. Empty sub-routes and routes without any points are skipped.
func LoadDir(dir string, logger *log.Entry) ([]*models.Route, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read routes dir: %w", err)
	}

	var out []*models.Route
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r, err := loadRoute(filepath.Join(dir, e.Name()), e.Name(), logger)
		if err != nil {
			return nil, err
		}
		if r == nil {
			logger.WithField("route_id", e.Name()).Warn("Skipping route without coordinates")
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func loadRoute(path, id string, logger *log.Entry) (*models.Route, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read route %s: %w", id, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".gpx") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var subRoutes []*models.SubRoute
	for _, name := range names {
		code, err := CountryCodeFromFileName(name)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", id, err)
		}
		coords, err := ReadTrack(filepath.Join(path, name))
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", id, err)
		}
		if len(coords) == 0 {
			logger.WithFields(log.Fields{"route_id": id, "file": name}).Warn("Skipping empty sub-route")
			continue
		}
		subRoutes = append(subRoutes, models.NewSubRoute(code, coords))
	}
	if len(subRoutes) == 0 {
		return nil, nil
	}
	return models.NewRoute(id, subRoutes), nil
}

// ReadTrack returns the points of every track segment in a GPX file, in order.
func ReadTrack(path string) ([]models.Coordinate, error) {
	g, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	var coords []models.Coordinate
	for _, trk := range g.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				coords = append(coords, models.Coordinate{Lat: p.Latitude, Lon: p.Longitude})
			}
		}
	}
	return coords, nil
}
