package broker

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// mqttClient is the part of mqtt.Client the channel needs.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes each destination as a topic.
type MQTT struct {
	client mqttClient
	qos    byte
	logger *log.Entry
}

// DialMQTT connects to broker. An empty clientID gets a random one.
func DialMQTT(ctx context.Context, broker, clientID string, qos byte, logger *log.Entry) (*MQTT, error) {
	if clientID == "" {
		clientID = "fleet-sim-" + uuid.NewString()[:8]
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.WithField("broker", broker).Info("Connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("connect to mqtt %s: %w", broker, err)
	}
	return NewMQTT(client, qos, logger), nil
}

// NewMQTT wraps an already connected client.
func NewMQTT(client mqttClient, qos byte, logger *log.Entry) *MQTT {
	return &MQTT{client: client, qos: qos, logger: logger}
}

// Publish sends body to the topic named destination and waits for the broker
// to accept it according to the configured QoS.
func (m *MQTT) Publish(ctx context.Context, destination string, body []byte) error {
	return wait(ctx, m.client.Publish(destination, m.qos, false, body))
}

// Close disconnects, giving in-flight messages a moment to finish.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	m.logger.Info("MQTT client disconnected")
	return nil
}

func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
