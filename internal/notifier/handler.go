// Package notifier emails customers about their orders from the event stream.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/example/ec-order-lifecycle/internal/apperror"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/email"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
)

// Mailer sends customer emails
type Mailer interface {
	SendOrderConfirmation(to string, c email.Confirmation) error
	SendStatusUpdate(to string, u email.StatusUpdate) error
}

// OrderReader loads the current state of an order
type OrderReader interface {
	Get(ctx context.Context, orderID string) (*order.Order, error)
}

var statusMessages = map[order.Status]string{
	order.StatusLivraison: "Votre commande a été expédiée et est en route.",
	order.StatusLivre:     "Votre commande a été livrée. Merci pour votre confiance.",
	order.StatusAnnule:    "Votre commande a été annulée. Contactez-nous si vous avez une question.",
}

// Handler processes events for sending emails
type Handler struct {
	mailer Mailer
	orders OrderReader
}

func NewHandler(mailer Mailer, orders OrderReader) *Handler {
	return &Handler{mailer: mailer, orders: orders}
}

// HandleEvent processes an event from Kafka. Malformed messages are dropped
// with an error; events about other aggregates are ignored.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event %s: %w", key, err)
	}

	switch event.EventType {
	case order.EventOrderPlaced:
		return h.handleOrderPlaced(event)
	case order.EventOrderStatusChanged:
		return h.handleStatusChanged(ctx, event)
	}
	return nil
}

func (h *Handler) handleOrderPlaced(event store.Event) error {
	var e order.OrderPlaced
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
	}

	log.Printf("[Notifier] Processing OrderPlaced event for order %s, user %s", e.OrderID, e.UserID)

	if e.CustomerEmail == "" {
		log.Printf("[Notifier] No email for user %s, skipping order %s", e.UserID, e.OrderID)
		return nil
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		items[i] = email.OrderItem{
			Name:      name,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	err := h.mailer.SendOrderConfirmation(e.CustomerEmail, email.Confirmation{
		OrderID:     e.OrderID,
		Items:       items,
		Subtotal:    e.Subtotal,
		ShippingFee: e.ShippingFee,
		Total:       e.Total,
		City:        e.Address.City,
	})
	if err != nil {
		return fmt.Errorf("failed to send confirmation for order %s: %w", e.OrderID, err)
	}

	log.Printf("[Notifier] Order confirmation email sent to %s for order %s", e.CustomerEmail, e.OrderID)
	return nil
}

func (h *Handler) handleStatusChanged(ctx context.Context, event store.Event) error {
	var e order.OrderStatusChanged
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return fmt.Errorf("failed to unmarshal OrderStatusChanged event: %w", err)
	}

	message, ok := statusMessages[e.To]
	if !ok {
		return nil
	}

	o, err := h.orders.Get(ctx, e.OrderID)
	if err != nil {
		var notFound *apperror.NotFoundError
		if errors.As(err, &notFound) {
			log.Printf("[Notifier] Order %s not found, skipping status email", e.OrderID)
			return nil
		}
		return fmt.Errorf("failed to load order %s: %w", e.OrderID, err)
	}
	if o.CustomerEmail == "" {
		log.Printf("[Notifier] No email for user %s, skipping order %s", o.UserID, o.ID)
		return nil
	}

	err = h.mailer.SendStatusUpdate(o.CustomerEmail, email.StatusUpdate{
		OrderID: e.OrderID,
		Label:   e.To.Label(),
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("failed to send status email for order %s: %w", e.OrderID, err)
	}

	log.Printf("[Notifier] Status email (%s) sent to %s for order %s", e.To, o.CustomerEmail, e.OrderID)
	return nil
}
