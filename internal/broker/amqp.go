// Package broker provides the message channels location events are published on.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

var ErrChannelClosed = errors.New("channel is closed")

// amqpConnection and amqpChannel are the parts of *amqp.Connection and
// *amqp.Channel in use.
type amqpConnection interface {
	Close() error
}

type amqpChannel interface {
	IsClosed() bool
	Close() error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type amqpDialer func(url string) (amqpConnection, amqpChannel, error)

// AMQP publishes to RabbitMQ queues through the default exchange, so a
// destination is simply a queue name.
type AMQP struct {
	url     string
	durable bool
	logger  *log.Entry
	dial    amqpDialer

	mu       sync.Mutex
	pubMu    sync.Mutex
	conn     amqpConnection
	ch       amqpChannel
	declared map[string]bool
	closed   bool
}

// DialAMQP connects with exponential backoff, giving up after maxRetries attempts
// or when ctx ends.
func DialAMQP(ctx context.Context, url string, maxRetries int, durable bool, logger *log.Entry) (*AMQP, error) {
	a := &AMQP{url: url, durable: durable, logger: logger, dial: dialAMQP, declared: map[string]bool{}}
	if maxRetries < 1 {
		maxRetries = 1
	}

	delay := time.Second
	for attempt := 1; ; attempt++ {
		a.mu.Lock()
		err := a.connectLocked()
		a.mu.Unlock()
		if err == nil {
			logger.WithField("attempt", attempt).Info("Connected to RabbitMQ")
			return a, nil
		}
		logger.WithError(err).WithFields(log.Fields{
			"attempt":     attempt,
			"max_retries": maxRetries,
		}).Warn("RabbitMQ connection attempt failed")
		if attempt >= maxRetries {
			return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", attempt, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(time.Duration(float64(delay)*1.5), 30*time.Second)
	}
}

func dialAMQP(url string) (amqpConnection, amqpChannel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}

// connectLocked replaces the current connection, closing the old one first.
// Callers hold a.mu.
func (a *AMQP) connectLocked() error {
	a.dropLocked()
	conn, ch, err := a.dial(a.url)
	if err != nil {
		return err
	}
	a.conn = conn
	a.ch = ch
	a.declared = map[string]bool{}
	return nil
}

func (a *AMQP) dropLocked() {
	if a.ch != nil {
		_ = a.ch.Close()
		a.ch = nil
	}
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}
}

// DeclareQueues makes sure every destination queue exists.
func (a *AMQP) DeclareQueues(names ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, name := range names {
		if err := a.declareLocked(name); err != nil {
			return err
		}
	}
	return nil
}

func (a *AMQP) declareLocked(name string) error {
	if a.declared[name] {
		return nil
	}
	if a.ch == nil {
		return ErrChannelClosed
	}
	if _, err := a.ch.QueueDeclare(name, a.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	a.declared[name] = true
	return nil
}

// channel returns a usable channel, reconnecting once if the old one died.
// Concurrent callers share a single reconnect.
func (a *AMQP) channel() (amqpChannel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrChannelClosed
	}
	if a.ch != nil && !a.ch.IsClosed() {
		return a.ch, nil
	}

	a.logger.Warn("RabbitMQ channel lost, reconnecting")
	if err := a.connectLocked(); err != nil {
		return nil, err
	}
	return a.ch, nil
}

// Publish sends body to the queue named destination.
func (a *AMQP) Publish(ctx context.Context, destination string, body []byte) error {
	ch, err := a.channel()
	if err != nil {
		return err
	}

	a.mu.Lock()
	err = a.declareLocked(destination)
	a.mu.Unlock()
	if err != nil {
		return err
	}

	a.pubMu.Lock()
	defer a.pubMu.Unlock()
	return ch.PublishWithContext(ctx, "", destination, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		DeliveryMode: amqp.Transient,
		Body:         body,
	})
}

// Consume hands every message on queue to handler until ctx ends. Messages are
// acked when handler returns nil and dropped otherwise.
func (a *AMQP) Consume(ctx context.Context, queue, consumer string, handler func([]byte) error) error {
	if err := a.DeclareQueues(queue); err != nil {
		return err
	}
	ch, err := a.channel()
	if err != nil {
		return err
	}
	msgs, err := ch.Consume(queue, consumer, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", queue, err)
	}
	a.logger.WithField("queue", queue).Info("Consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer for %s: %w", queue, ErrChannelClosed)
			}
			if err := handler(msg.Body); err != nil {
				a.logger.WithError(err).WithField("queue", queue).Warn("Dropping message")
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

// Close shuts the channel and connection. It is safe to call more than once.
func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	if a.ch != nil {
		errs = append(errs, a.ch.Close())
	}
	if a.conn != nil {
		errs = append(errs, a.conn.Close())
	}
	a.logger.Info("RabbitMQ connection closed")
	return errors.Join(errs...)
}
