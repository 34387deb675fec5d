package order

import "time"

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Address is the shipping address as it was when the order was placed
type Address struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Street   string `json:"street"`
	City     string `json:"city"`
	Country  string `json:"country"`
}

// PaymentProof points at the payment screenshot held in the proof store.
// Only the digest travels with the order; the image never enters the stream.
type PaymentProof struct {
	Digest      string `json:"digest"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

type OrderPlaced struct {
	OrderID        string        `json:"order_id"`
	UserID         string        `json:"user_id"`
	CustomerEmail  string        `json:"customer_email,omitempty"`
	Items          []OrderItem   `json:"items"`
	Address        Address       `json:"address"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	PaymentProof   PaymentProof  `json:"payment_proof"`
	Subtotal       int64         `json:"subtotal"`
	ShippingFee    int64         `json:"shipping_fee"`
	Total          int64         `json:"total"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	PlacedAt       time.Time     `json:"placed_at"`
}

type OrderStatusChanged struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ChangedBy string    `json:"changed_by,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}
