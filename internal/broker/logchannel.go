package broker

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogChannel writes every message to the log instead of a broker. Handy for dry runs.
type LogChannel struct {
	logger *log.Entry
}

func NewLogChannel(logger *log.Entry) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Publish(ctx context.Context, destination string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.logger.WithFields(log.Fields{"destination": destination, "body": string(body)}).Info("Location event")
	return nil
}

func (c *LogChannel) Close() error { return nil }
