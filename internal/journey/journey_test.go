package journey

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-journey-sim/internal/models"
)

type published struct {
	country string
	event   models.LocationEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) Publish(countryCode string, event models.LocationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{countryCode, event})
	return p.err
}

func (p *fakePublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

// MockSupplier is a testify mock of RouteSupplier.
type MockSupplier struct {
	mock.Mock
}

func (m *MockSupplier) Acquire(ctx context.Context) (*models.Route, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Route), args.Error(1)
}

type cloneSupplier struct{ proto *models.Route }

func (s cloneSupplier) Acquire(ctx context.Context) (*models.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.proto.Clone(), nil
}

func quietLogger() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return log.NewEntry(l)
}

func runAsync(ctx context.Context, j *Journey) <-chan error {
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("journey did not stop")
		return nil
	}
}

var car = models.Vehicle{SerialNumber: "NL-001", OriginCountry: "NL"}

func TestJourney_SingleCoordinateSubRoute(t *testing.T) {
	route := models.NewRoute("de-only", []*models.SubRoute{
		models.NewSubRoute("DE", []models.Coordinate{{Lat: 48.137, Lon: 11.575}}),
	})
	pub := &fakePublisher{}
	j := New(car, route, cloneSupplier{route}, pub, Config{PointInterval: 5 * time.Millisecond, Cooldown: time.Hour}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, j)

	assert.Eventually(t, func() bool { return j.State() == StateCooldown }, 2*time.Second, 5*time.Millisecond)
	events := pub.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "DE", events[0].country)
	assert.Equal(t, "DE", events[0].event.CountryCode)
	assert.Equal(t, "NL-001", events[0].event.SerialNumber)
	assert.Equal(t, "48.137", events[0].event.Lat)
	assert.Equal(t, "11.575", events[0].event.Lon)
	assert.True(t, route.SubRoutes()[0].Finished())

	cancel()
	assert.NoError(t, waitDone(t, done))
	assert.Equal(t, StateStopped, j.State())
	assert.Len(t, pub.snapshot(), 1)
}

func TestJourney_EmitsInTraversalOrderAndRecyclesRoutes(t *testing.T) {
	first := models.NewRoute("cross", []*models.SubRoute{
		models.NewSubRoute("NL", []models.Coordinate{{Lat: 52.0, Lon: 4.0}, {Lat: 52.1, Lon: 4.1}}),
		models.NewSubRoute("DE", []models.Coordinate{{Lat: 51.0, Lon: 7.0}}),
	})
	next := models.NewRoute("finland", []*models.SubRoute{
		models.NewSubRoute("FI", []models.Coordinate{{Lat: 60.17, Lon: 24.94}}),
	})
	pub := &fakePublisher{}
	j := New(car, first, cloneSupplier{next}, pub, Config{PointInterval: time.Millisecond, Cooldown: time.Millisecond}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, j)
	assert.Eventually(t, func() bool { return len(pub.snapshot()) >= 6 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, waitDone(t, done))

	events := pub.snapshot()
	var countries, lats []string
	for _, e := range events[:6] {
		countries = append(countries, e.country)
		lats = append(lats, e.event.Lat)
	}
	assert.Equal(t, []string{"NL", "NL", "DE", "FI", "FI", "FI"}, countries)
	assert.Equal(t, []string{"52", "52.1", "51", "60.17", "60.17", "60.17"}, lats)
	assert.GreaterOrEqual(t, j.RoutesStarted(), uint64(4))
}

func TestJourney_CancelDuringPointInterval(t *testing.T) {
	route := models.NewRoute("r", []*models.SubRoute{
		models.NewSubRoute("IT", []models.Coordinate{{Lat: 45.0, Lon: 9.0}, {Lat: 45.1, Lon: 9.1}, {Lat: 45.2, Lon: 9.2}}),
	})
	pub := &fakePublisher{}
	j := New(car, route, cloneSupplier{route}, pub, Config{PointInterval: time.Hour, Cooldown: time.Hour}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, j)
	assert.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, 2*time.Second, time.Millisecond)

	start := time.Now()
	cancel()
	assert.NoError(t, waitDone(t, done))
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, pub.snapshot(), 1)
	assert.False(t, route.SubRoutes()[0].Finished())
}

func TestJourney_CancelledBeforeStart(t *testing.T) {
	route := models.NewRoute("r", []*models.SubRoute{
		models.NewSubRoute("BE", []models.Coordinate{{Lat: 50.8, Lon: 4.3}}),
	})
	pub := &fakePublisher{}
	j := New(car, route, cloneSupplier{route}, pub, Config{}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, j.Run(ctx))
	assert.Empty(t, pub.snapshot())
}

func TestJourney_AcquiresFirstRoute(t *testing.T) {
	route := models.NewRoute("r", []*models.SubRoute{
		models.NewSubRoute("BE", []models.Coordinate{{Lat: 50.8, Lon: 4.3}}),
	})
	sup := new(MockSupplier)
	sup.On("Acquire", mock.Anything).Return(route, nil).Once()

	pub := &fakePublisher{}
	j := New(car, nil, sup, pub, Config{PointInterval: time.Millisecond, Cooldown: time.Hour}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, j)
	assert.Eventually(t, func() bool { return j.State() == StateCooldown }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, waitDone(t, done))

	sup.AssertExpectations(t)
	require.Len(t, pub.snapshot(), 1)
	assert.Equal(t, "BE", pub.snapshot()[0].country)
}

func TestJourney_SupplierFailure(t *testing.T) {
	sup := new(MockSupplier)
	sup.On("Acquire", mock.Anything).Return(nil, errors.New("catalog gone"))

	j := New(car, nil, sup, &fakePublisher{}, Config{}, quietLogger())
	err := j.Run(context.Background())
	assert.ErrorContains(t, err, "catalog gone")
	assert.Equal(t, StateStopped, j.State())
}

func TestJourney_PublishFailureKeepsDriving(t *testing.T) {
	route := models.NewRoute("r", []*models.SubRoute{
		models.NewSubRoute("NL", []models.Coordinate{{Lat: 52.0, Lon: 4.0}, {Lat: 52.1, Lon: 4.1}, {Lat: 52.2, Lon: 4.2}}),
	})
	pub := &fakePublisher{err: errors.New("unreachable")}
	j := New(car, route, cloneSupplier{route}, pub, Config{PointInterval: time.Millisecond, Cooldown: time.Hour}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, j)
	assert.Eventually(t, func() bool { return j.State() == StateCooldown }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, waitDone(t, done))

	assert.Len(t, pub.snapshot(), 3)
	assert.Equal(t, uint64(3), j.Emitted())
}

func TestJourney_TimestampFromClock(t *testing.T) {
	route := models.NewRoute("r", []*models.SubRoute{
		models.NewSubRoute("FI", []models.Coordinate{{Lat: 60.0, Lon: 25.0}, {Lat: 60.0, Lon: 25.0}}),
	})
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	pub := &fakePublisher{}
	j := New(car, route, cloneSupplier{route}, pub, Config{
		PointInterval: time.Millisecond,
		Cooldown:      time.Hour,
		Now:           func() time.Time { return at },
	}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, j)
	assert.Eventually(t, func() bool { return j.State() == StateCooldown }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, waitDone(t, done))

	// identical points at an identical time: zero elapsed, zero distance
	for _, e := range pub.snapshot() {
		assert.Equal(t, "2025-01-02T03:04Z", e.event.Timestamp)
	}
	assert.Len(t, pub.snapshot(), 2)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "driving_subroute", StateDriving.String())
	assert.Equal(t, "cooldown", StateCooldown.String())
	assert.Equal(t, "state(42)", State(42).String())
}
