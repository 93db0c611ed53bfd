package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-journey-sim/internal/broker"
	"github.com/ukydev/fleet-journey-sim/internal/config"
	"github.com/ukydev/fleet-journey-sim/internal/db"
	"github.com/ukydev/fleet-journey-sim/internal/fleet"
	"github.com/ukydev/fleet-journey-sim/internal/journey"
	"github.com/ukydev/fleet-journey-sim/internal/models"
	"github.com/ukydev/fleet-journey-sim/internal/publisher"
	"github.com/ukydev/fleet-journey-sim/internal/roster"
	"github.com/ukydev/fleet-journey-sim/internal/routes"
)

func main() {
	configPath := flag.String("config", os.Getenv("SIM_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Refusing to start")
	}
	if err := cfg.Log.ApplyLogging(log.StandardLogger()); err != nil {
		log.WithError(err).Fatal("Refusing to start")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log.NewEntry(log.StandardLogger())); err != nil {
		log.WithError(err).Fatal("Simulation failed")
	}
}

// run wires the simulation together and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *log.Entry) error {
	rs, err := routes.LoadDir(cfg.Routes.Dir, logger.WithField("component", "routes"))
	if err != nil {
		return err
	}
	catalog, err := routes.NewCatalog(rs, nil)
	if err != nil {
		return err
	}

	vehicles, err := loadVehicles(ctx, cfg)
	if err != nil {
		return err
	}

	destinations := publisher.Destinations(cfg.Publisher.Countries, cfg.Publisher.DestinationPrefix, cfg.Publisher.Destinations)
	channel, closeChannel, err := openChannel(ctx, cfg, destinations, logger.WithField("component", "broker"))
	if err != nil {
		return err
	}
	defer func() {
		if err := closeChannel(); err != nil {
			logger.WithError(err).Warn("Failed to close channel")
		}
	}()

	pub, err := publisher.New(channel, destinations, cfg.Publisher.QueueSize, logger.WithField("component", "publisher"))
	if err != nil {
		return err
	}
	if err := pub.CheckRoutable(catalog.CountryCodes()); err != nil {
		return fmt.Errorf("route catalog: %w", err)
	}

	fl, err := fleet.New(vehicles, catalog, pub, fleet.Config{
		Journey: journey.Config{
			PointInterval: cfg.Simulation.PointInterval,
			Cooldown:      cfg.Simulation.Cooldown,
		},
		StaggerMin: cfg.Simulation.StaggerMin,
		StaggerMax: cfg.Simulation.StaggerMax,
	}, logger.WithField("component", "fleet"))
	if err != nil {
		return err
	}

	logger.WithFields(log.Fields{
		"routes":    catalog.Len(),
		"vehicles":  len(vehicles),
		"countries": pub.Countries(),
		"backend":   cfg.Publisher.Backend,
	}).Info("Starting simulation")

	// The publisher outlives the fleet so that the last events still get flushed.
	pubCtx, stopPublisher := context.WithCancel(context.Background())
	pubDone := make(chan error, 1)
	go func() { pubDone <- pub.Run(pubCtx) }()

	fleetErr := fl.Run(ctx)
	stopPublisher()
	if err := <-pubDone; err != nil {
		logger.WithError(err).Warn("Publisher stopped with error")
	}

	stats := pub.Stats()
	logger.WithFields(log.Fields{
		"queued":    stats.Queued,
		"delivered": stats.Delivered,
		"dropped":   stats.Dropped,
		"failed":    stats.Failed,
	}).Info("Simulation stopped")
	return fleetErr
}

func loadVehicles(ctx context.Context, cfg *config.Config) ([]models.Vehicle, error) {
	if cfg.Vehicles.Source != config.SourceMongo {
		return roster.LoadFile(cfg.Vehicles.File)
	}
	client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
	if err != nil {
		return nil, err
	}
	defer client.Disconnect(context.Background())
	coll := &db.MongoCollection{Collection: client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.VehiclesCollection)}
	return roster.FromCollection(ctx, coll)
}

// openChannel connects the configured backend and returns it with its closer.
func openChannel(ctx context.Context, cfg *config.Config, destinations map[string]string, logger *log.Entry) (publisher.Channel, func() error, error) {
	switch cfg.Publisher.Backend {
	case config.BackendAMQP:
		a, err := broker.DialAMQP(ctx, cfg.AMQP.URL, cfg.AMQP.MaxRetries, cfg.AMQP.Durable, logger)
		if err != nil {
			return nil, nil, err
		}
		names := make([]string, 0, len(destinations))
		for _, name := range destinations {
			names = append(names, name)
		}
		if err := a.DeclareQueues(names...); err != nil {
			_ = a.Close()
			return nil, nil, err
		}
		return a, a.Close, nil

	case config.BackendMQTT:
		m, err := broker.DialMQTT(ctx, cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.QoS, logger)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil

	case config.BackendMongo:
		client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, err
		}
		closer := func() error { return client.Disconnect(context.Background()) }
		return db.NewArchiveChannel(client.Database(cfg.Mongo.Database)), closer, nil

	case config.BackendLog:
		c := broker.NewLogChannel(logger)
		return c, c.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown publisher backend %q", config.ErrInvalidConfig, cfg.Publisher.Backend)
}
