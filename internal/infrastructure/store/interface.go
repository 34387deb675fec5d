package store

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned when an append does not match the current
// version of one of its aggregates.
var ErrVersionConflict = errors.New("aggregate version conflict")

// EventStoreInterface defines the interface for event stores
type EventStoreInterface interface {
	// Append stores all events atomically: either every event is written or none is.
	Append(ctx context.Context, events ...PendingEvent) ([]Event, error)
	GetEvents(ctx context.Context, aggregateID string) ([]Event, error)
	GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) ([]Event, error)
	GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
}

// Publisher forwards stored events to an event bus
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}
