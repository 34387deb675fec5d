package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
}

// PendingEvent is an event waiting to be appended.
// ExpectedVersion is the version the aggregate must be at before this event.
type PendingEvent struct {
	AggregateID     string
	AggregateType   string
	EventType       string
	ExpectedVersion int
	Data            any
}

// newEvents validates and materializes pending events. Versions for
// consecutive events on the same aggregate must chain.
func newEvents(pending []PendingEvent, now time.Time) ([]Event, error) {
	if len(pending) == 0 {
		return nil, fmt.Errorf("no events to append")
	}

	next := make(map[string]int)
	events := make([]Event, 0, len(pending))
	for _, p := range pending {
		if p.AggregateID == "" || p.EventType == "" {
			return nil, fmt.Errorf("aggregate_id and event_type are required")
		}
		if v, ok := next[p.AggregateID]; ok && v != p.ExpectedVersion {
			return nil, fmt.Errorf("%w: batch expects version %d for %s, previous event leaves %d",
				ErrVersionConflict, p.ExpectedVersion, p.AggregateID, v)
		}

		data, err := json.Marshal(p.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", p.EventType, err)
		}

		events = append(events, Event{
			ID:            uuid.New().String(),
			AggregateID:   p.AggregateID,
			AggregateType: p.AggregateType,
			EventType:     p.EventType,
			Data:          data,
			Timestamp:     now,
			Version:       p.ExpectedVersion + 1,
		})
		next[p.AggregateID] = p.ExpectedVersion + 1
	}
	return events, nil
}

// publishAll forwards committed events. The store is the source of truth, so
// publish failures are logged rather than returned.
func publishAll(ctx context.Context, publisher Publisher, events []Event) {
	if publisher == nil {
		return
	}
	for _, event := range events {
		if err := publisher.Publish(ctx, event.AggregateID, event); err != nil {
			log.Printf("[EventStore] Failed to publish %s for %s: %v", event.EventType, event.AggregateID, err)
		}
	}
}

// MemoryEventStore keeps events in memory
type MemoryEventStore struct {
	mu        sync.RWMutex
	events    map[string][]Event // aggregateID -> events
	snapshots map[string]Snapshot
	publisher Publisher
}

func NewMemoryEventStore(publisher Publisher) *MemoryEventStore {
	return &MemoryEventStore{
		events:    make(map[string][]Event),
		snapshots: make(map[string]Snapshot),
		publisher: publisher,
	}
}

// Append stores the events and publishes them
func (es *MemoryEventStore) Append(ctx context.Context, pending ...PendingEvent) ([]Event, error) {
	events, err := newEvents(pending, time.Now())
	if err != nil {
		return nil, err
	}

	es.mu.Lock()
	checked := make(map[string]bool)
	for _, p := range pending {
		if checked[p.AggregateID] {
			continue
		}
		checked[p.AggregateID] = true
		if current := len(es.events[p.AggregateID]); current != p.ExpectedVersion {
			es.mu.Unlock()
			return nil, fmt.Errorf("%w: %s is at version %d, expected %d",
				ErrVersionConflict, p.AggregateID, current, p.ExpectedVersion)
		}
	}
	for _, event := range events {
		es.events[event.AggregateID] = append(es.events[event.AggregateID], event)
	}
	es.mu.Unlock()

	publishAll(ctx, es.publisher, events)
	return events, nil
}

// GetEvents returns all events for an aggregate
func (es *MemoryEventStore) GetEvents(ctx context.Context, aggregateID string) ([]Event, error) {
	return es.GetEventsFromVersion(ctx, aggregateID, 0)
}

// GetEventsFromVersion returns events with a version greater than fromVersion
func (es *MemoryEventStore) GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) ([]Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	var events []Event
	for _, event := range es.events[aggregateID] {
		if event.Version > fromVersion {
			events = append(events, event)
		}
	}
	return events, nil
}

// GetSnapshot returns the latest snapshot, or nil if none exists
func (es *MemoryEventStore) GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	snapshot, ok := es.snapshots[aggregateID]
	if !ok {
		return nil, nil
	}
	return &snapshot, nil
}

// SaveSnapshot replaces the snapshot of an aggregate
func (es *MemoryEventStore) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.snapshots[snapshot.AggregateID] = *snapshot
	return nil
}
