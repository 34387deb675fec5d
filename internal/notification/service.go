package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-order-lifecycle/internal/apperror"
	"github.com/google/uuid"
)

// ListResult is a user's notification list with the unread count of the
// full set, whatever filter produced the list.
type ListResult struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Create(ctx context.Context, userID, title, message string, typ Type) (*Notification, error) {
	if userID == "" {
		return nil, &apperror.ValidationError{Field: "userId", Reason: "is required"}
	}
	if title == "" {
		return nil, &apperror.ValidationError{Field: "title", Reason: "is required"}
	}
	if !typ.Valid() {
		return nil, &apperror.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown notification type %q", typ)}
	}

	n := &Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool) (*ListResult, error) {
	notifications, err := s.store.List(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	unread, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	if notifications == nil {
		notifications = []Notification{}
	}
	return &ListResult{Notifications: notifications, UnreadCount: unread}, nil
}

func (s *Service) MarkAsRead(ctx context.Context, userID, id string) error {
	return s.scoped(id, s.store.MarkAsRead(ctx, userID, id))
}

// MarkAllAsRead is idempotent and returns how many notifications changed
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	count, err := s.store.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return count, nil
}

func (s *Service) Remove(ctx context.Context, userID, id string) error {
	return s.scoped(id, s.store.Delete(ctx, userID, id))
}

// RemoveAll deletes every notification of the user and returns the count
func (s *Service) RemoveAll(ctx context.Context, userID string) (int, error) {
	count, err := s.store.DeleteAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", err)
	}
	return count, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *Service) scoped(id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return &apperror.NotFoundError{Resource: "notification", ID: id}
	}
	return err
}
