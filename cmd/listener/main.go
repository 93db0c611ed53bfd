package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-journey-sim/internal/broker"
	"github.com/ukydev/fleet-journey-sim/internal/config"
	"github.com/ukydev/fleet-journey-sim/internal/listener"
	"github.com/ukydev/fleet-journey-sim/internal/models"
	"github.com/ukydev/fleet-journey-sim/internal/publisher"
)

func main() {
	configPath := flag.String("config", os.Getenv("SIM_CONFIG"), "path to a YAML config file")
	country := flag.String("country", "", "country code to listen for (required)")
	queue := flag.String("queue", "", "queue to consume, defaults to the country's simulation queue")
	url := flag.String("amqp-url", "", "RabbitMQ URL, overrides amqp.url (only the amqp backend can be consumed)")
	flag.Parse()

	if *country == "" {
		flag.Usage()
		os.Exit(2)
	}
	code := strings.ToUpper(*country)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Log.ApplyLogging(log.StandardLogger()); err != nil {
		log.WithError(err).Fatal("Refusing to start")
	}
	if err := checkBackend(cfg); err != nil {
		log.WithError(err).Fatal("Refusing to start")
	}
	if *url != "" {
		cfg.AMQP.URL = *url
	}
	if *queue == "" {
		dests := publisher.Destinations([]string{code}, cfg.Publisher.DestinationPrefix, cfg.Publisher.Destinations)
		*queue = dests[code]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.WithFields(log.Fields{"country": code, "queue": *queue})
	logger.WithField("server", cfg.AMQP.URL).Info("Created simulation listener")

	a, err := broker.DialAMQP(ctx, cfg.AMQP.URL, cfg.AMQP.MaxRetries, cfg.AMQP.Durable, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect")
	}
	defer a.Close()

	handler := listener.Filter(code, func(ev models.LocationEvent) {
		logger.WithFields(log.Fields{
			"vehicle":   ev.SerialNumber,
			"lat":       ev.Lat,
			"lon":       ev.Lon,
			"timestamp": ev.Timestamp,
		}).Info("Received location")
	})
	if err := a.Consume(ctx, *queue, "listener-"+code, handler); err != nil {
		logger.WithError(err).Error("Consumer stopped")
	}
}

// checkBackend rejects publisher backends that have no queue to consume from.
func checkBackend(cfg *config.Config) error {
	if cfg.Publisher.Backend != config.BackendAMQP {
		return fmt.Errorf("%w: listener consumes from amqp only, publisher.backend is %q",
			config.ErrInvalidConfig, cfg.Publisher.Backend)
	}
	return nil
}
