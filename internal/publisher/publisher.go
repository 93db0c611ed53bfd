// Package publisher routes location events to per-country message channels.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-journey-sim/internal/models"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownCountry = errors.New("no destination configured for country")
	ErrQueueFull      = errors.New("destination queue is full")
	ErrNoDestinations = errors.New("no destinations configured")
)

// DefaultPrefix names destinations SimulationTo<CountryCode>.
const DefaultPrefix = "SimulationTo"

// Channel is the outbound transport, e.g. an AMQP queue or an MQTT topic.
type Channel interface {
	Publish(ctx context.Context, destination string, body []byte) error
}

// Stats counts what happened to published events.
type Stats struct {
	Queued    uint64
	Delivered uint64
	Dropped   uint64
	Failed    uint64
}

type destination struct {
	country string
	name    string
	queue   chan []byte
}

// Publisher is the LocationEventPublisher. Publish never waits for the channel:
// events are serialized into a bounded per-destination queue and delivered by
// one worker per destination while Run is active.
type Publisher struct {
	channel      Channel
	destinations map[string]*destination
	logger       *log.Entry

	// SendTimeout bounds a single channel publish.
	SendTimeout time.Duration
	// FlushTimeout bounds delivery of queued events after Run's context ends.
	FlushTimeout time.Duration

	queued, delivered, dropped, failed atomic.Uint64
}

// Destinations maps every country to prefix+country unless overrides names a
// destination for it.
func Destinations(countries []string, prefix string, overrides map[string]string) map[string]string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	upper := make(map[string]string, len(overrides))
	for k, v := range overrides {
		upper[strings.ToUpper(k)] = v
	}
	out := make(map[string]string, len(countries))
	for _, c := range countries {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if name, ok := upper[c]; ok && name != "" {
			out[c] = name
			continue
		}
		out[c] = prefix + c
	}
	return out
}

// New creates a publisher for the given country -> destination table.
func New(ch Channel, routes map[string]string, queueSize int, logger *log.Entry) (*Publisher, error) {
	if len(routes) == 0 {
		return nil, ErrNoDestinations
	}
	if queueSize < 1 {
		return nil, fmt.Errorf("queue size must be positive, got %d", queueSize)
	}
	dests := make(map[string]*destination, len(routes))
	for country, name := range routes {
		country = strings.ToUpper(country)
		dests[country] = &destination{country: country, name: name, queue: make(chan []byte, queueSize)}
	}
	return &Publisher{
		channel:      ch,
		destinations: dests,
		logger:       logger,
		SendTimeout:  5 * time.Second,
		FlushTimeout: 2 * time.Second,
	}, nil
}

// Countries returns the routable country codes, sorted.
func (p *Publisher) Countries() []string {
	out := make([]string, 0, len(p.destinations))
	for c := range p.destinations {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Destination returns the destination name for a country.
func (p *Publisher) Destination(countryCode string) (string, bool) {
	d, ok := p.destinations[strings.ToUpper(countryCode)]
	if !ok {
		return "", false
	}
	return d.name, true
}

// CheckRoutable returns ErrUnknownCountry for the first code without a destination.
func (p *Publisher) CheckRoutable(countryCodes []string) error {
	for _, c := range countryCodes {
		if _, ok := p.Destination(c); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCountry, c)
		}
	}
	return nil
}

// Publish enqueues event for the destination of countryCode. Unknown countries
// and full queues drop the event and return an error; nothing is retried.
func (p *Publisher) Publish(countryCode string, event models.LocationEvent) error {
	d, ok := p.destinations[strings.ToUpper(countryCode)]
	if !ok {
		p.dropped.Add(1)
		return fmt.Errorf("%w: %s", ErrUnknownCountry, countryCode)
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.dropped.Add(1)
		return fmt.Errorf("marshal location event: %w", err)
	}
	select {
	case d.queue <- body:
		p.queued.Add(1)
		return nil
	default:
		p.dropped.Add(1)
		return fmt.Errorf("%w: %s", ErrQueueFull, d.name)
	}
}

// Stats returns a snapshot of the counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Queued:    p.queued.Load(),
		Delivered: p.delivered.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
	}
}

// Run delivers queued events until ctx is done, then makes one bounded attempt
// to flush what is still queued.
func (p *Publisher) Run(ctx context.Context) error {
	var g errgroup.Group
	for _, d := range p.destinations {
		g.Go(func() error {
			p.work(ctx, d)
			return nil
		})
	}
	return g.Wait()
}

func (p *Publisher) work(ctx context.Context, d *destination) {
	logger := p.logger.WithFields(log.Fields{"country": d.country, "destination": d.name})
	logger.Debug("Destination worker started")
	for {
		select {
		case body := <-d.queue:
			// select picks at random when both cases are ready
			if ctx.Err() != nil {
				p.flush(context.WithoutCancel(ctx), logger, d, body)
				return
			}
			p.send(ctx, logger, d, body)
		case <-ctx.Done():
			p.flush(context.WithoutCancel(ctx), logger, d)
			return
		}
	}
}

// flush delivers pending and then whatever is still queued, all within FlushTimeout.
func (p *Publisher) flush(ctx context.Context, logger *log.Entry, d *destination, pending ...[]byte) {
	ctx, cancel := context.WithTimeout(ctx, p.FlushTimeout)
	defer cancel()
	for _, body := range pending {
		p.send(ctx, logger, d, body)
	}
	for {
		select {
		case body := <-d.queue:
			if ctx.Err() != nil {
				p.dropped.Add(1)
				continue
			}
			p.send(ctx, logger, d, body)
		default:
			logger.Debug("Destination worker stopped")
			return
		}
	}
}

func (p *Publisher) send(ctx context.Context, logger *log.Entry, d *destination, body []byte) {
	sendCtx, cancel := context.WithTimeout(ctx, p.SendTimeout)
	defer cancel()
	if err := p.channel.Publish(sendCtx, d.name, body); err != nil {
		p.failed.Add(1)
		logger.WithError(err).Warn("Publish failed")
		return
	}
	p.delivered.Add(1)
	logger.Debug("Event published")
}
