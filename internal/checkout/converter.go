package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/example/ec-order-lifecycle/internal/address"
	"github.com/example/ec-order-lifecycle/internal/apperror"
	"github.com/example/ec-order-lifecycle/internal/catalog"
	"github.com/example/ec-order-lifecycle/internal/domain/cart"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
	"github.com/example/ec-order-lifecycle/internal/metrics"
	"github.com/example/ec-order-lifecycle/internal/notification"
	"github.com/example/ec-order-lifecycle/internal/payment"
	"github.com/google/uuid"
)

// orderNamespace scopes idempotent order ids
var orderNamespace = uuid.MustParse("9b4f6c1e-5f63-4d55-9a0e-2f1d7c3b8e41")

// Notifier receives the notifications a checkout produces
type Notifier interface {
	Dispatch(ctx context.Context, event notification.Event) ([]notification.Notification, error)
}

type Config struct {
	ShippingFee        int64
	LowStockThreshold  int
	MaxScreenshotBytes int
}

type Request struct {
	UserID            string
	CustomerEmail     string
	AddressID         string
	PaymentMethod     order.PaymentMethod
	PaymentScreenshot string
	IdempotencyKey    string
}

type Result struct {
	Order *order.Order
	// Replayed is true when the idempotency key matched an existing order
	Replayed bool
}

// Converter turns a user's cart into an order
type Converter struct {
	eventStore store.EventStoreInterface
	carts      *cart.Service
	orders     *order.Service
	catalog    catalog.Catalog
	addresses  address.Book
	proofs     payment.ProofStore
	notifier   Notifier
	metrics    *metrics.Metrics
	cfg        Config
	now        func() time.Time
}

func NewConverter(
	es store.EventStoreInterface,
	carts *cart.Service,
	orders *order.Service,
	products catalog.Catalog,
	addresses address.Book,
	proofs payment.ProofStore,
	notifier Notifier,
	m *metrics.Metrics,
	cfg Config,
) *Converter {
	return &Converter{
		eventStore: es,
		carts:      carts,
		orders:     orders,
		catalog:    products,
		addresses:  addresses,
		proofs:     proofs,
		notifier:   notifier,
		metrics:    m,
		cfg:        cfg,
		now:        time.Now,
	}
}

// OrderID returns the id an order placed with the given idempotency key gets
func OrderID(userID, idempotencyKey string) string {
	if idempotencyKey == "" {
		return uuid.New().String()
	}
	return uuid.NewSHA1(orderNamespace, []byte(userID+":"+idempotencyKey)).String()
}

// Checkout places an order from the user's cart and empties the cart in the
// same atomic write. With an idempotency key, repeating the call returns the
// order the first call created.
func (c *Converter) Checkout(ctx context.Context, req Request) (*Result, error) {
	result, err := c.checkout(ctx, req)
	switch {
	case err == nil && result.Replayed:
		c.metrics.ObserveCheckout("replayed")
	case err == nil:
		c.metrics.ObserveCheckout("created")
	case isDomainError(err):
		c.metrics.ObserveCheckout("rejected")
	default:
		c.metrics.ObserveCheckout("failed")
	}
	return result, err
}

func (c *Converter) checkout(ctx context.Context, req Request) (*Result, error) {
	screenshot, err := c.validate(req)
	if err != nil {
		return nil, err
	}

	orderID := OrderID(req.UserID, req.IdempotencyKey)
	if req.IdempotencyKey != "" {
		if existing, ok := c.existing(ctx, orderID, req.UserID); ok {
			log.Printf("[Checkout] Replaying order %s for user %s", orderID, req.UserID)
			return &Result{Order: existing, Replayed: true}, nil
		}
	}

	userCart, err := c.carts.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if userCart.IsEmpty() {
		return nil, &apperror.InvalidStateError{Reason: "cart is empty"}
	}

	addr, err := c.addresses.Get(ctx, req.UserID, req.AddressID)
	if err != nil {
		if errors.Is(err, address.ErrNotFound) {
			return nil, &apperror.NotFoundError{Resource: "address", ID: req.AddressID}
		}
		return nil, fmt.Errorf("failed to load address: %w", err)
	}

	items, lowStock, err := c.priceItems(ctx, userCart.Items)
	if err != nil {
		return nil, err
	}

	now := c.now()
	proof := payment.NewProof(http.DetectContentType(screenshot), screenshot, now)

	placed, placedEvent, err := order.Place(order.Placement{
		OrderID:       orderID,
		UserID:        req.UserID,
		CustomerEmail: req.CustomerEmail,
		Items:         items,
		Address: order.Address{
			ID:       addr.ID,
			FullName: addr.FullName,
			Phone:    addr.Phone,
			Street:   addr.Street,
			City:     addr.City,
			Country:  addr.Country,
		},
		PaymentMethod: req.PaymentMethod,
		PaymentProof: order.PaymentProof{
			Digest:      proof.Digest,
			ContentType: proof.ContentType,
			Size:        len(screenshot),
		},
		ShippingFee:    c.cfg.ShippingFee,
		IdempotencyKey: req.IdempotencyKey,
		PlacedAt:       now,
	})
	if err != nil {
		return nil, err
	}

	// The image is stored before the order that references it. A failed
	// append leaves an unreferenced proof, which a retry reuses by digest.
	if err := c.proofs.Put(ctx, proof); err != nil {
		return nil, fmt.Errorf("failed to store payment screenshot: %w", err)
	}

	if _, err := c.eventStore.Append(ctx, placedEvent, cart.ClearEvent(userCart, orderID, now)); err != nil {
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, fmt.Errorf("failed to store order: %w", err)
		}
		if req.IdempotencyKey != "" {
			if existing, ok := c.existing(ctx, orderID, req.UserID); ok {
				log.Printf("[Checkout] Concurrent duplicate of order %s, replaying", orderID)
				return &Result{Order: existing, Replayed: true}, nil
			}
		}
		return nil, &apperror.ConflictError{Resource: "cart", ID: userCart.ID, Err: err}
	}

	log.Printf("[Checkout] Order %s placed by %s: %d items, total %d", orderID, req.UserID, len(items), placed.Total)

	c.notify(ctx, notification.OrderPlaced{OrderID: orderID, UserID: req.UserID, Total: placed.Total})
	for _, event := range lowStock {
		c.notify(ctx, event)
	}

	return &Result{Order: placed}, nil
}

// validate checks the request and returns the decoded screenshot
func (c *Converter) validate(req Request) ([]byte, error) {
	if req.UserID == "" {
		return nil, &apperror.ValidationError{Field: "userId", Reason: "is required"}
	}
	if req.AddressID == "" {
		return nil, &apperror.ValidationError{Field: "addressId", Reason: "is required"}
	}
	if !req.PaymentMethod.Valid() {
		return nil, &apperror.ValidationError{Field: "paymentMethod", Reason: "must be OM or MOMO"}
	}
	return DecodeScreenshot(req.PaymentScreenshot, c.cfg.MaxScreenshotBytes)
}

// existing returns the order with orderID if it belongs to userID
func (c *Converter) existing(ctx context.Context, orderID, userID string) (*order.Order, bool) {
	o, err := c.orders.Get(ctx, orderID)
	if err != nil {
		var notFound *apperror.NotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("[Checkout] Failed to look up order %s: %v", orderID, err)
		}
		return nil, false
	}
	return o, o.UserID == userID
}

// priceItems captures current catalog prices and collects low stock warnings.
// Stock is checked per product across all sizes in the cart.
func (c *Converter) priceItems(ctx context.Context, lines []cart.CartItem) ([]order.OrderItem, []notification.LowStock, error) {
	items := make([]order.OrderItem, 0, len(lines))
	products := make(map[string]*catalog.Product)
	ordered := make(map[string]int)
	var productOrder []string

	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			var err error
			p, err = c.catalog.GetProduct(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, catalog.ErrProductNotFound) {
					return nil, nil, &apperror.InvalidStateError{Reason: fmt.Sprintf("product %s is no longer available", line.ProductID)}
				}
				return nil, nil, fmt.Errorf("failed to load product %s: %w", line.ProductID, err)
			}
			products[p.ID] = p
			productOrder = append(productOrder, p.ID)
		}

		ordered[p.ID] += line.Quantity
		if p.Stock < ordered[p.ID] {
			return nil, nil, &apperror.InvalidStateError{Reason: fmt.Sprintf("only %d of %s left in stock", p.Stock, p.Name)}
		}

		items = append(items, order.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: p.Price,
		})
	}

	var lowStock []notification.LowStock
	for _, id := range productOrder {
		p := products[id]
		if remaining := p.Stock - ordered[id]; remaining < c.cfg.LowStockThreshold {
			lowStock = append(lowStock, notification.LowStock{ProductID: id, ProductName: p.Name, Remaining: remaining})
		}
	}
	return items, lowStock, nil
}

func (c *Converter) notify(ctx context.Context, event notification.Event) {
	if c.notifier == nil {
		return
	}
	if _, err := c.notifier.Dispatch(ctx, event); err != nil {
		log.Printf("[Checkout] Notification for %T failed: %v", event, err)
	}
}

func isDomainError(err error) bool {
	var (
		validationErr *apperror.ValidationError
		notFoundErr   *apperror.NotFoundError
		stateErr      *apperror.InvalidStateError
		conflictErr   *apperror.ConflictError
	)
	return errors.As(err, &validationErr) || errors.As(err, &notFoundErr) ||
		errors.As(err, &stateErr) || errors.As(err, &conflictErr)
}
