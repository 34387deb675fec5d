package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/ec-order-lifecycle/internal/apperror"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/metrics"
	"github.com/sony/gobreaker/v2"
)

// Event is a domain event that produces notifications. The set is closed.
type Event interface {
	eventName() string
}

// OrderPlaced announces a new order to staff
type OrderPlaced struct {
	OrderID string
	UserID  string
	Total   int64
}

// OrderTransitioned informs the owner of a status change
type OrderTransitioned struct {
	OrderID string
	UserID  string
	From    order.Status
	To      order.Status
}

// LowStock warns staff that a product is running out
type LowStock struct {
	ProductID   string
	ProductName string
	Remaining   int
}

func (OrderPlaced) eventName() string       { return "order_placed" }
func (OrderTransitioned) eventName() string { return "order_transitioned" }
func (LowStock) eventName() string          { return "low_stock" }

// Draft is notification content before it is stored
type Draft struct {
	UserID  string
	Title   string
	Message string
	Type    Type
}

// Render maps an event to the notifications it produces. It has no side effects.
func Render(event Event, staff []string) []Draft {
	switch e := event.(type) {
	case OrderPlaced:
		return toStaff(staff, "Nouvelle commande", fmt.Sprintf("New order #%s received", e.OrderID), TypeOrder)
	case OrderTransitioned:
		var title, message string
		switch e.To {
		case order.StatusLivraison:
			title, message = "En livraison", fmt.Sprintf("Your order #%s is on its way", e.OrderID)
		case order.StatusLivre:
			title, message = "Commande livrée", fmt.Sprintf("Your order #%s was delivered", e.OrderID)
		case order.StatusAnnule:
			title, message = "Commande annulée", fmt.Sprintf("Your order #%s was cancelled", e.OrderID)
		default:
			return nil
		}
		return []Draft{{UserID: e.UserID, Title: title, Message: message, Type: TypeOrder}}
	case LowStock:
		return toStaff(staff, "Stock faible", fmt.Sprintf("%s has only %d left", e.ProductName, e.Remaining), TypeStock)
	}
	return nil
}

func toStaff(staff []string, title, message string, typ Type) []Draft {
	drafts := make([]Draft, 0, len(staff))
	for _, userID := range staff {
		drafts = append(drafts, Draft{UserID: userID, Title: title, Message: message, Type: typ})
	}
	return drafts
}

// Dispatcher renders events and stores the resulting notifications. Store
// writes go through a circuit breaker so an unavailable store fails fast.
type Dispatcher struct {
	notifications *Service
	staff         []string
	breaker       *gobreaker.CircuitBreaker[*Notification]
	metrics       *metrics.Metrics
}

func NewDispatcher(notifications *Service, staff []string, m *metrics.Metrics) *Dispatcher {
	breaker := gobreaker.NewCircuitBreaker[*Notification](gobreaker.Settings{
		Name:        "notification-store",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var validationErr *apperror.ValidationError
			return err == nil || errors.As(err, &validationErr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[Dispatcher] Circuit %s: %s -> %s", name, from, to)
		},
	})
	return &Dispatcher{notifications: notifications, staff: staff, breaker: breaker, metrics: m}
}

// Dispatch stores every notification the event renders to. It returns the
// notifications that were stored and a joined error for those that were not.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) ([]Notification, error) {
	drafts := Render(event, d.staff)

	var stored []Notification
	var errs []error
	for _, draft := range drafts {
		n, err := d.breaker.Execute(func() (*Notification, error) {
			return d.notifications.Create(ctx, draft.UserID, draft.Title, draft.Message, draft.Type)
		})
		if err != nil {
			d.metrics.ObserveDispatchFailure(event.eventName())
			errs = append(errs, fmt.Errorf("notify %s: %w", draft.UserID, err))
			continue
		}
		stored = append(stored, *n)
	}
	return stored, errors.Join(errs...)
}

// OrderTransitioned implements order.TransitionListener
func (d *Dispatcher) OrderTransitioned(ctx context.Context, t order.Transition) error {
	d.metrics.ObserveTransition(string(t.From), string(t.To))
	_, err := d.Dispatch(ctx, OrderTransitioned{
		OrderID: t.OrderID,
		UserID:  t.UserID,
		From:    t.From,
		To:      t.To,
	})
	return err
}
