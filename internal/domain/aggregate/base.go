package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
)

// Aggregate is an event-sourced entity rebuilt by replay.
type Aggregate interface {
	GetID() string
	GetVersion() int
	ApplyEvent(store.Event) error
}

// LoadAggregate rebuilds the aggregate stored under id, starting from its
// snapshot when one exists. The bool reports whether a stream of the given
// aggregateType was found. A stream written by another aggregate type is
// reported as not found rather than replayed, so an order lookup with a cart
// ID behaves like a missing order.
func LoadAggregate[T Aggregate](
	ctx context.Context,
	eventStore store.EventStoreInterface,
	aggregateType, id string,
	newAggregate func() T,
) (T, bool, error) {
	var zero T

	snapshot, err := eventStore.GetSnapshot(ctx, id)
	if err != nil {
		return zero, false, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if snapshot != nil && snapshot.AggregateType != "" && snapshot.AggregateType != aggregateType {
		return zero, false, nil
	}

	agg := newAggregate()
	var events []store.Event
	if snapshot != nil {
		if err := json.Unmarshal(snapshot.State, agg); err != nil {
			return zero, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		events, err = eventStore.GetEventsFromVersion(ctx, id, snapshot.Version)
	} else {
		events, err = eventStore.GetEvents(ctx, id)
	}
	if err != nil {
		return zero, false, fmt.Errorf("failed to get events: %w", err)
	}
	if snapshot == nil && len(events) == 0 {
		return zero, false, nil
	}

	for _, event := range events {
		if event.AggregateType != aggregateType {
			return zero, false, nil
		}
		if err := agg.ApplyEvent(event); err != nil {
			return zero, false, fmt.Errorf("failed to apply %s event %d of %s: %w", event.EventType, event.Version, id, err)
		}
	}

	return agg, true, nil
}

// MaybeCreateSnapshot stores the aggregate state every SnapshotThreshold versions.
func MaybeCreateSnapshot(
	ctx context.Context,
	eventStore store.EventStoreInterface,
	agg Aggregate,
	aggregateType string,
) error {
	version := agg.GetVersion()
	if version == 0 || version%store.SnapshotThreshold != 0 {
		return nil
	}

	state, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s state: %w", aggregateType, err)
	}
	err = eventStore.SaveSnapshot(ctx, &store.Snapshot{
		AggregateID:   agg.GetID(),
		AggregateType: aggregateType,
		Version:       version,
		State:         state,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
