package models

// SubRoute is a contiguous run of coordinates lying entirely inside one country.
// It is driven by a single journey at a time and needs no locking.
type SubRoute struct {
	countryCode string
	coordinates []Coordinate
	cursor      int
	finished    bool
}

// NewSubRoute creates an undriven sub-route. The coordinate slice is shared, not
// copied, so callers must not modify it afterwards.
func NewSubRoute(countryCode string, coordinates []Coordinate) *SubRoute {
	return &SubRoute{countryCode: countryCode, coordinates: coordinates}
}

// CountryCode returns the ISO-3166 alpha-2 code of the country the sub-route lies in.
func (s *SubRoute) CountryCode() string { return s.countryCode }

// Coordinates returns the sub-route geometry.
func (s *SubRoute) Coordinates() []Coordinate { return s.coordinates }

// Len returns the number of coordinates.
func (s *SubRoute) Len() int { return len(s.coordinates) }

// Finished reports whether traversal has run past the last coordinate.
func (s *SubRoute) Finished() bool { return s.finished }

// NextCoordinate returns the coordinate under the cursor and advances it. Once the
// end is reached the sub-route is marked finished and ok is false on this and
// every later call.
func (s *SubRoute) NextCoordinate() (c Coordinate, ok bool) {
	if s.cursor >= len(s.coordinates) {
		s.finished = true
		return Coordinate{}, false
	}
	c = s.coordinates[s.cursor]
	s.cursor++
	return c, true
}

// Reset rewinds the sub-route to its undriven state.
func (s *SubRoute) Reset() {
	s.cursor = 0
	s.finished = false
}

func (s *SubRoute) clone() *SubRoute {
	return &SubRoute{countryCode: s.countryCode, coordinates: s.coordinates}
}
