// Package routes owns the immutable route catalog and hands out private,
// drivable copies of its routes to journeys.
package routes

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/ukydev/fleet-journey-sim/internal/models"
)

var (
	ErrEmptyCatalog = errors.New("route catalog is empty")
	ErrEmptyRoute   = errors.New("route has no sub-routes")
)

// Catalog is a RouteSupplier backed by a fixed set of route prototypes. The
// prototypes are never driven; every Acquire returns a fresh clone, so two
// journeys never share traversal state.
type Catalog struct {
	routes []*models.Route

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewCatalog builds a catalog. A nil rnd gets a time-seeded source.
func NewCatalog(routes []*models.Route, rnd *rand.Rand) (*Catalog, error) {
	if len(routes) == 0 {
		return nil, ErrEmptyCatalog
	}
	for _, r := range routes {
		if len(r.SubRoutes()) == 0 {
			return nil, fmt.Errorf("route %q: %w", r.ID(), ErrEmptyRoute)
		}
	}
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Catalog{routes: routes, rnd: rnd}, nil
}

// Len returns the number of known routes.
func (c *Catalog) Len() int { return len(c.routes) }

// CountryCodes returns every country code used by any route, sorted.
func (c *Catalog) CountryCodes() []string {
	seen := make(map[string]struct{})
	for _, r := range c.routes {
		for _, code := range r.CountryCodes() {
			seen[code] = struct{}{}
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Acquire picks a route uniformly at random and returns an undriven copy of it.
// Safe for concurrent use.
func (c *Catalog) Acquire(ctx context.Context) (*models.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	i := c.rnd.IntN(len(c.routes))
	c.mu.Unlock()

	r := c.routes[i].Clone()
	r.Reset()
	return r, nil
}
