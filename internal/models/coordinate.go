package models

import "strconv"

// Coordinate is a WGS84 latitude/longitude pair. Values are never mutated once a
// sub-route has been loaded.
type Coordinate struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lon float64 `bson:"lon" json:"lon"`
}

// LatString formats the latitude the way it travels on the wire.
func (c Coordinate) LatString() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64)
}

// LonString formats the longitude the way it travels on the wire.
func (c Coordinate) LonString() string {
	return strconv.FormatFloat(c.Lon, 'f', -1, 64)
}
