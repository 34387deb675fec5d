package order

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/ec-order-lifecycle/internal/apperror"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
)

const AggregateType = "Order"

type Order struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	CustomerEmail  string         `json:"customer_email,omitempty"`
	Items          []OrderItem    `json:"items"`
	Address        Address        `json:"address"`
	PaymentMethod  PaymentMethod  `json:"payment_method"`
	PaymentProof   PaymentProof   `json:"payment_proof"`
	Subtotal       int64          `json:"subtotal"`
	ShippingFee    int64          `json:"shipping_fee"`
	Total          int64          `json:"total"`
	Status         Status         `json:"status"`
	History        []StatusChange `json:"history"`
	TrackingSteps  []TrackingStep `json:"tracking_steps"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Version        int            `json:"version"` // Current event version
}

// Aggregate interface implementation
func (o *Order) GetID() string   { return o.ID }
func (o *Order) GetVersion() int { return o.Version }

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	return CanTransition(o.Status, target)
}

// transitionError describes why the order cannot move to target
func (o *Order) transitionError(target Status) error {
	return &apperror.InvalidTransitionError{
		OrderID:   o.ID,
		Current:   string(o.Status),
		Requested: string(target),
	}
}

// ApplyEvent applies a single event to the order state (implements aggregate.Aggregate)
func (o *Order) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventOrderPlaced:
		var data OrderPlaced
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.applyPlaced(data)
	case EventOrderStatusChanged:
		var data OrderStatusChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.applyStatusChanged(data)
	default:
		return fmt.Errorf("unknown order event %q", event.EventType)
	}
	o.Version = event.Version
	return nil
}

func (o *Order) applyPlaced(data OrderPlaced) {
	o.ID = data.OrderID
	o.UserID = data.UserID
	o.CustomerEmail = data.CustomerEmail
	o.Items = data.Items
	o.Address = data.Address
	o.PaymentMethod = data.PaymentMethod
	o.PaymentProof = data.PaymentProof
	o.Subtotal = data.Subtotal
	o.ShippingFee = data.ShippingFee
	o.Total = data.Total
	o.IdempotencyKey = data.IdempotencyKey
	o.Status = StatusEnCours
	o.History = []StatusChange{{Status: StatusEnCours, At: data.PlacedAt}}
	o.TrackingSteps = DeriveTrackingSteps(o.History)
	o.CreatedAt = data.PlacedAt
	o.UpdatedAt = data.PlacedAt
}

func (o *Order) applyStatusChanged(data OrderStatusChanged) {
	o.Status = data.To
	o.History = append(o.History, StatusChange{Status: data.To, At: data.ChangedAt, By: data.ChangedBy})
	o.TrackingSteps = DeriveTrackingSteps(o.History)
	o.UpdatedAt = data.ChangedAt
}

// Placement carries everything needed to create an order
type Placement struct {
	OrderID        string
	UserID         string
	CustomerEmail  string
	Items          []OrderItem
	Address        Address
	PaymentMethod  PaymentMethod
	PaymentProof   PaymentProof
	ShippingFee    int64
	IdempotencyKey string
	PlacedAt       time.Time
}

// Place validates a placement and returns the resulting order together with
// the event that records it. Nothing is persisted.
func Place(p Placement) (*Order, store.PendingEvent, error) {
	if len(p.Items) == 0 {
		return nil, store.PendingEvent{}, &apperror.InvalidStateError{Reason: "order must have at least one item"}
	}
	if p.OrderID == "" || p.UserID == "" {
		return nil, store.PendingEvent{}, &apperror.ValidationError{Reason: "order id and user id are required"}
	}
	if !p.PaymentMethod.Valid() {
		return nil, store.PendingEvent{}, &apperror.ValidationError{Field: "paymentMethod", Reason: "must be OM or MOMO"}
	}
	if p.PaymentProof.Digest == "" {
		return nil, store.PendingEvent{}, &apperror.ValidationError{Field: "paymentScreenshot", Reason: "is required"}
	}
	if p.ShippingFee < 0 {
		return nil, store.PendingEvent{}, &apperror.ValidationError{Field: "shippingFee", Reason: "must not be negative"}
	}

	var subtotal int64
	for _, item := range p.Items {
		if item.Quantity <= 0 {
			return nil, store.PendingEvent{}, &apperror.ValidationError{Field: "quantity", Reason: "must be positive"}
		}
		if item.UnitPrice < 0 {
			return nil, store.PendingEvent{}, &apperror.ValidationError{Field: "unitPrice", Reason: "must not be negative"}
		}
		subtotal += item.UnitPrice * int64(item.Quantity)
	}

	event := OrderPlaced{
		OrderID:        p.OrderID,
		UserID:         p.UserID,
		CustomerEmail:  p.CustomerEmail,
		Items:          p.Items,
		Address:        p.Address,
		PaymentMethod:  p.PaymentMethod,
		PaymentProof:   p.PaymentProof,
		Subtotal:       subtotal,
		ShippingFee:    p.ShippingFee,
		Total:          subtotal + p.ShippingFee,
		IdempotencyKey: p.IdempotencyKey,
		PlacedAt:       p.PlacedAt,
	}

	o := &Order{}
	o.applyPlaced(event)
	o.Version = 1

	return o, store.PendingEvent{
		AggregateID:     p.OrderID,
		AggregateType:   AggregateType,
		EventType:       EventOrderPlaced,
		ExpectedVersion: 0,
		Data:            event,
	}, nil
}
