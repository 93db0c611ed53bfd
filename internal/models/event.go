package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TimestampLayout is ISO-8601 UTC with minute precision.
const TimestampLayout = "2006-01-02T15:04Z"

// LocationEvent is the payload published for every driven coordinate.
type LocationEvent struct {
	SerialNumber string `bson:"serialNumber" json:"serialNumber"`
	Lat          string `bson:"lat" json:"lat"`
	Lon          string `bson:"lon" json:"lon"`
	Timestamp    string `bson:"timestamp" json:"timestamp"`
	CountryCode  string `bson:"countryCode" json:"countryCode"`
}

// NewLocationEvent builds the event for a vehicle standing at c inside countryCode at time at.
func NewLocationEvent(v Vehicle, c Coordinate, countryCode string, at time.Time) LocationEvent {
	return LocationEvent{
		SerialNumber: v.SerialNumber,
		Lat:          c.LatString(),
		Lon:          c.LonString(),
		Timestamp:    at.UTC().Format(TimestampLayout),
		CountryCode:  countryCode,
	}
}

// ArchivedEvent is a location event as stored by the archive channel.
type ArchivedEvent struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Destination   string             `bson:"destination" json:"destination"`
	LocationEvent `bson:",inline"`
	ArchivedAt    time.Time `bson:"archived_at" json:"archived_at"`
}
