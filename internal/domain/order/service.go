package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/ec-order-lifecycle/internal/apperror"
	"github.com/example/ec-order-lifecycle/internal/domain/aggregate"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
)

// Transition describes an applied status change
type Transition struct {
	OrderID string
	UserID  string
	From    Status
	To      Status
	By      string
	At      time.Time
}

// TransitionListener is told about every applied transition. Its errors are
// logged and never undo the transition.
type TransitionListener interface {
	OrderTransitioned(ctx context.Context, t Transition) error
}

type Service struct {
	eventStore store.EventStoreInterface
	listener   TransitionListener
	now        func() time.Time
}

func NewService(es store.EventStoreInterface, listener TransitionListener) *Service {
	return &Service{eventStore: es, listener: listener, now: time.Now}
}

// Get loads an order by replaying its events
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	o, found, err := aggregate.LoadAggregate(ctx, s.eventStore, AggregateType, orderID, func() *Order {
		return &Order{}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if !found {
		return nil, &apperror.NotFoundError{Resource: "order", ID: orderID}
	}
	return o, nil
}

// Transition moves an order to a new status. The write only succeeds if the
// order is still at the version that was validated, so two racing admins
// can never both apply a change: the loser gets a ConflictError.
func (s *Service) Transition(ctx context.Context, orderID string, to Status, actor string) (*Order, error) {
	if !to.Valid() {
		return nil, &apperror.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", to)}
	}

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !o.CanTransitionTo(to) {
		return nil, o.transitionError(to)
	}

	event := OrderStatusChanged{
		OrderID:   o.ID,
		UserID:    o.UserID,
		From:      o.Status,
		To:        to,
		ChangedBy: actor,
		ChangedAt: s.now(),
	}

	stored, err := s.eventStore.Append(ctx, store.PendingEvent{
		AggregateID:     o.ID,
		AggregateType:   AggregateType,
		EventType:       EventOrderStatusChanged,
		ExpectedVersion: o.Version,
		Data:            event,
	})
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, s.conflict(ctx, orderID, err)
		}
		return nil, fmt.Errorf("failed to store transition: %w", err)
	}

	o.applyStatusChanged(event)
	o.Version = stored[len(stored)-1].Version

	// An order stream ends after at most three events, so orders are always
	// replayed from the start and never snapshotted.
	log.Printf("[Order] Order %s: %s -> %s by %s", o.ID, event.From, event.To, actor)

	if s.listener != nil {
		t := Transition{
			OrderID: o.ID,
			UserID:  o.UserID,
			From:    event.From,
			To:      event.To,
			By:      actor,
			At:      event.ChangedAt,
		}
		if err := s.listener.OrderTransitioned(ctx, t); err != nil {
			log.Printf("[Order] Notification for order %s (%s -> %s) failed: %v", o.ID, t.From, t.To, err)
		}
	}

	return o, nil
}

// conflict reports a lost race with the status the order has now
func (s *Service) conflict(ctx context.Context, orderID string, cause error) error {
	conflictErr := &apperror.ConflictError{Resource: "order", ID: orderID, Err: cause}
	if current, err := s.Get(ctx, orderID); err == nil {
		conflictErr.Current = string(current.Status)
	}
	return conflictErr
}
