package notification

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when a notification does not exist for the given
// user. Another user's notification is reported the same way.
var ErrNotFound = errors.New("notification not found")

// Store persists notifications. Every method is scoped to userID and must
// apply the owner filter in the same operation that reads or writes the row.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	// List returns the user's notifications newest first
	List(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
	MarkAsRead(ctx context.Context, userID, id string) error
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type memoryEntry struct {
	n   Notification
	seq uint64
}

// MemoryStore keeps notifications in memory
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry // id -> entry
	seq     uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Create(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.entries[n.ID] = memoryEntry{n: *n, seq: s.seq}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []memoryEntry
	for _, e := range s.entries {
		if e.n.UserID != userID || (unreadOnly && e.n.Read) {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].n.CreatedAt.Equal(entries[j].n.CreatedAt) {
			return entries[i].n.CreatedAt.After(entries[j].n.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})

	result := make([]Notification, len(entries))
	for i, e := range entries {
		result[i] = e.n
	}
	return result, nil
}

func (s *MemoryStore) MarkAsRead(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.n.UserID != userID {
		return ErrNotFound
	}
	e.n.Read = true
	s.entries[id] = e
	return nil
}

func (s *MemoryStore) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, e := range s.entries {
		if e.n.UserID == userID && !e.n.Read {
			e.n.Read = true
			s.entries[id] = e
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.n.UserID != userID {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, e := range s.entries {
		if e.n.UserID == userID {
			delete(s.entries, id)
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entries {
		if e.n.UserID == userID && !e.n.Read {
			count++
		}
	}
	return count, nil
}
