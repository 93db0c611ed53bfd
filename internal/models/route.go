package models

// Route is an ordered concatenation of sub-routes, possibly crossing borders.
type Route struct {
	id        string
	subRoutes []*SubRoute
	finished  bool
}

// NewRoute creates an undriven route.
func NewRoute(id string, subRoutes []*SubRoute) *Route {
	return &Route{id: id, subRoutes: subRoutes}
}

// ID returns the route identifier.
func (r *Route) ID() string { return r.id }

// SubRoutes returns the sub-routes in driving order.
func (r *Route) SubRoutes() []*SubRoute { return r.subRoutes }

// Finished reports whether every sub-route has been driven.
func (r *Route) Finished() bool { return r.finished }

// CountryCodes returns the distinct country codes of the route in driving order.
func (r *Route) CountryCodes() []string {
	seen := make(map[string]struct{}, len(r.subRoutes))
	codes := make([]string, 0, len(r.subRoutes))
	for _, sr := range r.subRoutes {
		if _, ok := seen[sr.countryCode]; ok {
			continue
		}
		seen[sr.countryCode] = struct{}{}
		codes = append(codes, sr.countryCode)
	}
	return codes
}

// NextUnfinishedSubRoute returns the first sub-route that has not been driven yet.
//
// When every sub-route is finished the route itself is marked finished and the last
// sub-route is returned. Callers must check Finished right after the call and stop
// driving in that case. A route without sub-routes returns nil and is finished.
func (r *Route) NextUnfinishedSubRoute() *SubRoute {
	for _, sr := range r.subRoutes {
		if !sr.finished {
			return sr
		}
	}
	r.finished = true
	if len(r.subRoutes) == 0 {
		return nil
	}
	return r.subRoutes[len(r.subRoutes)-1]
}

// Reset makes the route drivable again from the first coordinate.
func (r *Route) Reset() {
	r.finished = false
	for _, sr := range r.subRoutes {
		sr.Reset()
	}
}

// Clone returns an undriven copy with its own traversal state. Geometry is shared
// since coordinates are immutable.
func (r *Route) Clone() *Route {
	subRoutes := make([]*SubRoute, len(r.subRoutes))
	for i, sr := range r.subRoutes {
		subRoutes[i] = sr.clone()
	}
	return &Route{id: r.id, subRoutes: subRoutes}
}
