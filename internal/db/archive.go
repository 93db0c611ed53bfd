package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ukydev/fleet-journey-sim/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
)

// ArchiveChannel is a message channel that stores every event in a collection
// named after its destination, e.g. SimulationToNL.
type ArchiveChannel struct {
	collection func(name string) EventCollection
	now        func() time.Time
}

// NewArchiveChannel archives into database.
func NewArchiveChannel(database *mongo.Database) *ArchiveChannel {
	return newArchiveChannel(func(name string) EventCollection {
		return &MongoCollection{Collection: database.Collection(name)}
	})
}

func newArchiveChannel(collection func(name string) EventCollection) *ArchiveChannel {
	return &ArchiveChannel{collection: collection, now: time.Now}
}

// Publish decodes body and inserts it into the destination collection.
func (a *ArchiveChannel) Publish(ctx context.Context, destination string, body []byte) error {
	var ev models.LocationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode location event: %w", err)
	}
	return a.collection(destination).InsertLocationEvent(ctx, models.ArchivedEvent{
		Destination:   destination,
		LocationEvent: ev,
		ArchivedAt:    a.now().UTC(),
	})
}
