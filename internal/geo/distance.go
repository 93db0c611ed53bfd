// Package geo holds the great-circle math used to derive distance and speed
// between consecutive route points.
package geo

import (
	"math"
	"time"

	"github.com/ukydev/fleet-journey-sim/internal/models"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// GreatCircleDistanceKm returns the haversine distance between a and b.
func GreatCircleDistanceKm(a, b models.Coordinate) float64 {
	if a == b {
		return 0
	}
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push s just outside [0,1] near antipodes
	s = math.Min(1, math.Max(0, s))
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return EarthRadiusKm * c
}

// SpeedKph returns the average speed needed to cover a->b in elapsedSeconds.
// Zero or negative elapsed time yields 0.
func SpeedKph(a, b models.Coordinate, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return GreatCircleDistanceKm(a, b) / elapsedSeconds * 3600
}

// RouteLengthKm sums the distances between consecutive points of every sub-route,
// border hops included.
func RouteLengthKm(r *models.Route) float64 {
	var (
		total float64
		prev  *models.Coordinate
	)
	for _, sr := range r.SubRoutes() {
		coords := sr.Coordinates()
		for i := range coords {
			if prev != nil {
				total += GreatCircleDistanceKm(*prev, coords[i])
			}
			prev = &coords[i]
		}
	}
	return total
}

// TravelTime projects how long distanceKm takes at speedKph. Non-positive speeds
// give 0.
func TravelTime(distanceKm, speedKph float64) time.Duration {
	if speedKph <= 0 || distanceKm <= 0 {
		return 0
	}
	return time.Duration(distanceKm / speedKph * float64(time.Hour))
}
