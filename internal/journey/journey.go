// Package journey drives a single vehicle over route after route, emitting a
// location event for every coordinate it passes.
package journey

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-journey-sim/internal/geo"
	"github.com/ukydev/fleet-journey-sim/internal/models"
)

// Reference pacing of the simulation.
const (
	DefaultPointInterval = time.Second
	DefaultCooldown      = 15 * time.Minute
)

// RouteSupplier hands out drivable routes.
type RouteSupplier interface {
	Acquire(ctx context.Context) (*models.Route, error)
}

// Publisher accepts events keyed by the country they were emitted in.
type Publisher interface {
	Publish(countryCode string, event models.LocationEvent) error
}

// State is the phase a journey is in.
type State int32

const (
	StateIdle State = iota
	StateDriving
	StateSubRouteExhausted
	StateRouteExhausted
	StateCooldown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDriving:
		return "driving_subroute"
	case StateSubRouteExhausted:
		return "subroute_exhausted"
	case StateRouteExhausted:
		return "route_exhausted"
	case StateCooldown:
		return "cooldown"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Config tunes a journey. Zero durations fall back to the reference values.
type Config struct {
	PointInterval time.Duration
	Cooldown      time.Duration
	// Now is the wall clock; tests replace it.
	Now func() time.Time
}

// Journey is one vehicle driving forever. It is not safe to call Run twice.
type Journey struct {
	vehicle   models.Vehicle
	route     *models.Route
	supplier  RouteSupplier
	publisher Publisher
	cfg       Config
	logger    *log.Entry

	prev     *models.Coordinate
	prevTime time.Time

	state   atomic.Int32
	emitted atomic.Uint64
	routes  atomic.Uint64
}

// New creates a journey. route may be nil, in which case the first route is
// acquired from supplier when Run starts.
func New(vehicle models.Vehicle, route *models.Route, supplier RouteSupplier, publisher Publisher, cfg Config, logger *log.Entry) *Journey {
	if cfg.PointInterval <= 0 {
		cfg.PointInterval = DefaultPointInterval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Journey{
		vehicle:   vehicle,
		route:     route,
		supplier:  supplier,
		publisher: publisher,
		cfg:       cfg,
		logger: logger.WithFields(log.Fields{
			"vehicle":        vehicle.SerialNumber,
			"origin_country": vehicle.OriginCountry,
		}),
	}
}

// Vehicle returns the vehicle being driven.
func (j *Journey) Vehicle() models.Vehicle { return j.vehicle }

// State returns the current phase. Safe to call from any goroutine.
func (j *Journey) State() State { return State(j.state.Load()) }

// Emitted returns how many events were handed to the publisher.
func (j *Journey) Emitted() uint64 { return j.emitted.Load() }

// RoutesStarted returns how many routes the journey has begun driving.
func (j *Journey) RoutesStarted() uint64 { return j.routes.Load() }

// Run drives until ctx is cancelled, which is the only clean way out and yields a
// nil error. A non-nil error means no further route could be acquired.
func (j *Journey) Run(ctx context.Context) error {
	defer j.setState(StateStopped)

	if j.route == nil {
		if err := j.nextRoute(ctx); err != nil {
			return j.stop(ctx, err)
		}
	} else {
		j.startRoute()
	}

	for {
		if ctx.Err() != nil {
			return j.stop(ctx, nil)
		}

		sr := j.route.NextUnfinishedSubRoute()
		if j.route.Finished() {
			j.setState(StateRouteExhausted)
			j.logger.WithField("route_id", j.route.ID()).Info("Route exhausted")

			j.setState(StateCooldown)
			if !sleep(ctx, j.cfg.Cooldown) {
				return j.stop(ctx, nil)
			}
			if err := j.nextRoute(ctx); err != nil {
				return j.stop(ctx, err)
			}
			continue
		}

		j.setState(StateDriving)
		if !j.drive(ctx, sr) {
			return j.stop(ctx, nil)
		}
		j.setState(StateSubRouteExhausted)
		j.logger.WithFields(log.Fields{
			"route_id": j.route.ID(),
			"country":  sr.CountryCode(),
		}).Debug("Sub-route exhausted")
	}
}

// drive emits one event per coordinate of sr. It returns false when ctx ended.
func (j *Journey) drive(ctx context.Context, sr *models.SubRoute) bool {
	country := sr.CountryCode()
	for !sr.Finished() {
		if ctx.Err() != nil {
			return false
		}
		now := j.cfg.Now()
		c, ok := sr.NextCoordinate()
		if !ok {
			break
		}

		if j.prev != nil {
			elapsed := now.Sub(j.prevTime).Seconds()
			j.logger.WithFields(log.Fields{
				"country":     country,
				"distance_km": geo.GreatCircleDistanceKm(*j.prev, c),
				"speed_kph":   geo.SpeedKph(*j.prev, c, elapsed),
			}).Debug("Moved")
		}

		ev := models.NewLocationEvent(j.vehicle, c, country, now)
		if err := j.publisher.Publish(country, ev); err != nil {
			j.logger.WithError(err).WithField("country", country).Warn("Publish failed")
		} else {
			j.logger.WithFields(log.Fields{"country": country, "lat": ev.Lat, "lon": ev.Lon}).Debug("Event published")
		}
		j.emitted.Add(1)

		j.prev = &c
		j.prevTime = now

		if !sleep(ctx, j.cfg.PointInterval) {
			return false
		}
	}
	return true
}

func (j *Journey) nextRoute(ctx context.Context) error {
	r, err := j.supplier.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire route: %w", err)
	}
	j.route = r
	j.startRoute()
	return nil
}

func (j *Journey) startRoute() {
	j.routes.Add(1)
	fields := log.Fields{
		"route_id":  j.route.ID(),
		"countries": j.route.CountryCodes(),
	}
	if j.vehicle.SpeedKph > 0 {
		length := geo.RouteLengthKm(j.route)
		fields["length_km"] = length
		fields["eta"] = geo.TravelTime(length, j.vehicle.SpeedKph).Round(time.Minute).String()
	}
	j.logger.WithFields(fields).Info("Route acquired")
}

// stop logs the way out. Errors caused by cancellation are swallowed.
func (j *Journey) stop(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = nil
	}
	if err != nil {
		j.logger.WithError(err).Error("Journey aborted")
		return err
	}
	j.logger.WithField("events", j.emitted.Load()).Info("Journey stopped")
	return nil
}

func (j *Journey) setState(s State) { j.state.Store(int32(s)) }

// sleep waits for d or until ctx is done, reporting whether the full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
