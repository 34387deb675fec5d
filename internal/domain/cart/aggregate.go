package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/ec-order-lifecycle/internal/apperror"
	"github.com/example/ec-order-lifecycle/internal/domain/aggregate"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
)

const AggregateType = "Cart"

var (
	ErrInvalidQuantity = &apperror.ValidationError{Field: "quantity", Reason: "must be positive"}
	ErrInvalidProduct  = &apperror.ValidationError{Field: "productId", Reason: "is required"}
)

// CartItem is one cart line. Lines are keyed by product and size.
type CartItem struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity"`
}

type Cart struct {
	ID      string     `json:"id"`
	UserID  string     `json:"user_id"`
	Items   []CartItem `json:"items"`
	Version int        `json:"version"`
}

func newCart(userID string) *Cart {
	return &Cart{ID: GetCartID(userID), UserID: userID, Items: []CartItem{}}
}

// Aggregate interface implementation
func (c *Cart) GetID() string   { return c.ID }
func (c *Cart) GetVersion() int { return c.Version }

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

func (c *Cart) indexOf(productID, size string) int {
	for i, item := range c.Items {
		if item.ProductID == productID && item.Size == size {
			return i
		}
	}
	return -1
}

// ApplyEvent applies a single event to the cart state
func (c *Cart) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventItemAdded:
		var data ItemAddedToCart
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.ID = data.CartID
		c.UserID = data.UserID
		// Add or update item quantity
		if i := c.indexOf(data.ProductID, data.Size); i >= 0 {
			c.Items[i].Quantity += data.Quantity
		} else {
			c.Items = append(c.Items, CartItem{
				ProductID: data.ProductID,
				Size:      data.Size,
				Quantity:  data.Quantity,
			})
		}
	case EventItemRemoved:
		var data ItemRemovedFromCart
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if i := c.indexOf(data.ProductID, data.Size); i >= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
	case EventCartCleared:
		c.Items = []CartItem{}
	default:
		return fmt.Errorf("unknown cart event %q", event.EventType)
	}
	c.Version = event.Version
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
	now        func() time.Time
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es, now: time.Now}
}

// GetCartID returns the cart ID for a user (using userID as cartID for simplicity)
func GetCartID(userID string) string {
	return "cart-" + userID
}

// Get returns the user's cart. A user without cart events has an empty cart
// at version 0.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, found, err := aggregate.LoadAggregate(ctx, s.eventStore, AggregateType, GetCartID(userID), func() *Cart {
		return newCart(userID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if !found {
		return newCart(userID), nil
	}
	return c, nil
}

func (s *Service) AddItem(ctx context.Context, userID, productID, size string, quantity int) (*Cart, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	event := ItemAddedToCart{
		CartID:    c.ID,
		UserID:    userID,
		ProductID: productID,
		Size:      size,
		Quantity:  quantity,
		AddedAt:   s.now(),
	}
	return s.append(ctx, c, EventItemAdded, event)
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID, size string) (*Cart, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.indexOf(productID, size) < 0 {
		return nil, &apperror.NotFoundError{Resource: "cart item", ID: productID}
	}

	event := ItemRemovedFromCart{
		CartID:    c.ID,
		UserID:    userID,
		ProductID: productID,
		Size:      size,
		RemovedAt: s.now(),
	}
	return s.append(ctx, c, EventItemRemoved, event)
}

// ClearEvent returns the event that empties c, expecting c's current version.
// Checkout appends it in the same batch as the order it places.
func ClearEvent(c *Cart, orderID string, at time.Time) store.PendingEvent {
	return store.PendingEvent{
		AggregateID:     c.ID,
		AggregateType:   AggregateType,
		EventType:       EventCartCleared,
		ExpectedVersion: c.Version,
		Data: CartCleared{
			CartID:    c.ID,
			UserID:    c.UserID,
			OrderID:   orderID,
			ClearedAt: at,
		},
	}
}

func (s *Service) Clear(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return c, nil
	}
	pending := ClearEvent(c, "", s.now())
	return s.append(ctx, c, pending.EventType, pending.Data)
}

// append stores one event against the loaded version and applies it locally
func (s *Service) append(ctx context.Context, c *Cart, eventType string, data any) (*Cart, error) {
	stored, err := s.eventStore.Append(ctx, store.PendingEvent{
		AggregateID:     c.ID,
		AggregateType:   AggregateType,
		EventType:       eventType,
		ExpectedVersion: c.Version,
		Data:            data,
	})
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, &apperror.ConflictError{Resource: "cart", ID: c.ID, Err: err}
		}
		return nil, err
	}

	for _, event := range stored {
		if err := c.ApplyEvent(event); err != nil {
			return nil, fmt.Errorf("failed to apply event: %w", err)
		}
	}

	// Check if we need to create a snapshot
	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, c, AggregateType); err != nil {
		log.Printf("[Cart] Failed to create snapshot for cart %s: %v", c.ID, err)
	}

	return c, nil
}
