package models

// Vehicle is a simulated car. It is created once at startup and never changes.
type Vehicle struct {
	SerialNumber  string  `bson:"serial_number" json:"id"`
	OriginCountry string  `bson:"origin_country" json:"country"`
	SpeedKph      float64 `bson:"speed_kph,omitempty" json:"speedKph,omitempty"` // optional, only used for ETA projection
}
