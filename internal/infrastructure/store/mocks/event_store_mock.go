package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
)

// MockEventStore is a mock implementation of EventStoreInterface for testing
type MockEventStore struct {
	*store.MemoryEventStore

	mu sync.Mutex

	// For tracking calls in tests
	AppendCalls    []store.PendingEvent
	AppendErr      error
	AppendCallback func(ctx context.Context, events ...store.PendingEvent) ([]store.Event, error)
	GetEventsErr   error
}

// NewMockEventStore creates a new MockEventStore
func NewMockEventStore() *MockEventStore {
	return &MockEventStore{
		MemoryEventStore: store.NewMemoryEventStore(nil),
		AppendCalls:      make([]store.PendingEvent, 0),
	}
}

// Append records the call and stores the events in memory
func (m *MockEventStore) Append(ctx context.Context, events ...store.PendingEvent) ([]store.Event, error) {
	m.mu.Lock()
	m.AppendCalls = append(m.AppendCalls, events...)
	callback, appendErr := m.AppendCallback, m.AppendErr
	m.mu.Unlock()

	if callback != nil {
		return callback(ctx, events...)
	}
	if appendErr != nil {
		return nil, appendErr
	}
	return m.MemoryEventStore.Append(ctx, events...)
}

// GetEvents returns GetEventsErr when set
func (m *MockEventStore) GetEvents(ctx context.Context, aggregateID string) ([]store.Event, error) {
	if m.GetEventsErr != nil {
		return nil, m.GetEventsErr
	}
	return m.MemoryEventStore.GetEvents(ctx, aggregateID)
}

// GetEventsFromVersion returns GetEventsErr when set
func (m *MockEventStore) GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) ([]store.Event, error) {
	if m.GetEventsErr != nil {
		return nil, m.GetEventsErr
	}
	return m.MemoryEventStore.GetEventsFromVersion(ctx, aggregateID, fromVersion)
}

// AddEvent seeds an event without recording an Append call
func (m *MockEventStore) AddEvent(aggregateID, aggregateType, eventType string, data any) error {
	events, err := m.MemoryEventStore.GetEvents(context.Background(), aggregateID)
	if err != nil {
		return err
	}
	_, err = m.MemoryEventStore.Append(context.Background(), store.PendingEvent{
		AggregateID:     aggregateID,
		AggregateType:   aggregateType,
		EventType:       eventType,
		ExpectedVersion: len(events),
		Data:            data,
	})
	return err
}

// EventTypes returns the event types passed to Append, in order
func (m *MockEventStore) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	types := make([]string, 0, len(m.AppendCalls))
	for _, call := range m.AppendCalls {
		types = append(types, call.EventType)
	}
	return types
}

// Reset clears recorded calls and injected errors
func (m *MockEventStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls = make([]store.PendingEvent, 0)
	m.AppendErr = nil
	m.AppendCallback = nil
	m.GetEventsErr = nil
}
