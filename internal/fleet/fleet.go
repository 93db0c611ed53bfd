// Package fleet runs one journey per vehicle and supervises them until shutdown.
package fleet

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-journey-sim/internal/journey"
	"github.com/ukydev/fleet-journey-sim/internal/models"
	"golang.org/x/sync/errgroup"
)

var ErrNoVehicles = errors.New("fleet has no vehicles")

// Reference start-up stagger.
const (
	DefaultStaggerMin = time.Second
	DefaultStaggerMax = 10 * time.Second
)

// Config controls how journeys are paced and started.
type Config struct {
	Journey    journey.Config
	StaggerMin time.Duration
	StaggerMax time.Duration
	// Rand picks stagger delays; nil means a time-seeded source.
	Rand *rand.Rand
}

type member struct {
	journey *journey.Journey
	delay   time.Duration
}

// Fleet is the set of live journeys.
type Fleet struct {
	members []member
	logger  *log.Entry
}

// New creates a journey for every vehicle. Journeys pick their first route when
// they start.
func New(vehicles []models.Vehicle, supplier journey.RouteSupplier, pub journey.Publisher, cfg Config, logger *log.Entry) (*Fleet, error) {
	if len(vehicles) == 0 {
		return nil, ErrNoVehicles
	}
	rnd := cfg.Rand
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, ^seed))
	}
	lo, hi := cfg.StaggerMin, cfg.StaggerMax
	if lo < 0 {
		lo = 0
	}
	if hi < lo {
		hi = lo
	}

	f := &Fleet{logger: logger}
	for _, v := range vehicles {
		delay := lo
		if hi > lo {
			delay += time.Duration(rnd.Int64N(int64(hi-lo) + 1))
		}
		f.members = append(f.members, member{
			journey: journey.New(v, nil, supplier, pub, cfg.Journey, logger),
			delay:   delay,
		})
	}
	return f, nil
}

// Journeys returns the journeys in roster order.
func (f *Fleet) Journeys() []*journey.Journey {
	out := make([]*journey.Journey, len(f.members))
	for i, m := range f.members {
		out[i] = m.journey
	}
	return out
}

// Run starts every journey after its stagger delay and blocks until all of them
// have stopped. A failing journey does not stop the others; the first failure is
// returned once everyone is done.
func (f *Fleet) Run(ctx context.Context) error {
	f.logger.WithField("vehicles", len(f.members)).Info("Starting fleet")

	var g errgroup.Group
	for _, m := range f.members {
		g.Go(func() error {
			t := time.NewTimer(m.delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return nil
			}
			return m.journey.Run(ctx)
		})
	}
	err := g.Wait()
	f.logger.Info("Fleet stopped")
	return err
}
