package checkout

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/ec-order-lifecycle/internal/address"
	"github.com/example/ec-order-lifecycle/internal/apperror"
	"github.com/example/ec-order-lifecycle/internal/catalog"
	"github.com/example/ec-order-lifecycle/internal/domain/cart"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store/mocks"
	"github.com/example/ec-order-lifecycle/internal/notification"
	"github.com/example/ec-order-lifecycle/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngScreenshot = base64.StdEncoding.EncodeToString(append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...))

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
	err    error
}

func (n *recordingNotifier) Dispatch(_ context.Context, event notification.Event) ([]notification.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil, n.err
}

type fixture struct {
	converter *Converter
	es        *mocks.MockEventStore
	carts     *cart.Service
	orders    *order.Service
	catalog   *catalog.MemoryCatalog
	proofs    *payment.MemoryProofStore
	notifier  *recordingNotifier
}

type failingProofStore struct {
	*payment.MemoryProofStore
}

func (s failingProofStore) Put(context.Context, *payment.Proof) error {
	return errors.New("disk full")
}

func newTestConverter(t *testing.T) *fixture {
	t.Helper()
	es := mocks.NewMockEventStore()
	f := &fixture{
		es:     es,
		carts:  cart.NewService(es),
		orders: order.NewService(es, nil),
		catalog: catalog.NewMemoryCatalog(
			catalog.Product{ID: "p1", Name: "Eau de parfum", Price: 10000, Stock: 50},
			catalog.Product{ID: "p2", Name: "Savon noir", Price: 2500, Stock: 4},
		),
		proofs:   payment.NewMemoryProofStore(),
		notifier: &recordingNotifier{},
	}
	addresses := address.NewMemoryBook(
		address.Address{ID: "addr-1", UserID: "user-1", FullName: "Awa Diallo", Street: "Rue 12", City: "Douala"},
		address.Address{ID: "addr-2", UserID: "user-2", FullName: "Jean Mbarga", Street: "Av. Kennedy", City: "Yaoundé"},
	)
	f.converter = NewConverter(es, f.carts, f.orders, f.catalog, addresses, f.proofs, f.notifier, nil, Config{
		ShippingFee:        1500,
		LowStockThreshold:  3,
		MaxScreenshotBytes: 1024,
	})
	f.converter.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) addToCart(t *testing.T, userID, productID, size string, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), userID, productID, size, qty)
	require.NoError(t, err)
}

func validRequest() Request {
	return Request{
		UserID:            "user-1",
		CustomerEmail:     "awa@example.com",
		AddressID:         "addr-1",
		PaymentMethod:     order.PaymentOrangeMoney,
		PaymentScreenshot: pngScreenshot,
	}
}

// ============================================
// Success Tests
// ============================================

func TestConverter_Checkout_Success(t *testing.T) {
	f := newTestConverter(t)
	f.addToCart(t, "user-1", "p1", "50ml", 2)
	ctx := context.Background()

	result, err := f.converter.Checkout(ctx, validRequest())

	require.NoError(t, err)
	assert.False(t, result.Replayed)
	o := result.Order
	assert.Equal(t, order.StatusEnCours, o.Status)
	assert.Equal(t, int64(20000), o.Subtotal)
	assert.Equal(t, int64(21500), o.Total)
	assert.Equal(t, "awa@example.com", o.CustomerEmail)
	assert.Equal(t, "addr-1", o.Address.ID)
	assert.Equal(t, "Douala", o.Address.City)
	require.Len(t, o.Items, 1)
	assert.Equal(t, order.OrderItem{ProductID: "p1", Name: "Eau de parfum", Size: "50ml", Quantity: 2, UnitPrice: 10000}, o.Items[0])
	require.Len(t, o.TrackingSteps, 3)
	assert.True(t, o.TrackingSteps[0].Completed)
	assert.False(t, o.TrackingSteps[1].Completed)

	// Order and cart clear are written in one batch
	assert.Equal(t, []string{cart.EventItemAdded, order.EventOrderPlaced, cart.EventCartCleared}, f.es.EventTypes())

	c, err := f.carts.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	stored, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Total, stored.Total)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, notification.OrderPlaced{OrderID: o.ID, UserID: "user-1", Total: 21500}, f.notifier.events[0])
}

func TestConverter_Checkout_DataURLScreenshot(t *testing.T) {
	f := newTestConverter(t)
	f.addToCart(t, "user-1", "p1", "", 1)
	req := validRequest()
	req.PaymentScreenshot = "data:image/png;base64," + pngScreenshot
	req.PaymentMethod = order.PaymentMTNMoMo

	result, err := f.converter.Checkout(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, order.PaymentMTNMoMo, result.Order.PaymentMethod)
}

func TestConverter_Checkout_ScreenshotKeptOutOfTheEventStream(t *testing.T) {
	f := newTestConverter(t)
	f.addToCart(t, "user-1", "p1", "", 1)
	ctx := context.Background()
	raw, err := base64.StdEncoding.DecodeString(pngScreenshot)
	require.NoError(t, err)

	result, err := f.converter.Checkout(ctx, validRequest())
	require.NoError(t, err)

	assert.Equal(t, order.PaymentProof{Digest: payment.Digest(raw), ContentType: "image/png", Size: len(raw)}, result.Order.PaymentProof)

	proof, err := f.proofs.Get(ctx, result.Order.PaymentProof.Digest)
	require.NoError(t, err)
	assert.Equal(t, raw, proof.Data)

	events, err := f.es.GetEvents(ctx, result.Order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, string(events[0].Data), payment.Digest(raw))
	assert.False(t, strings.Contains(string(events[0].Data), pngScreenshot), "event data must not embed the image")
}

func TestConverter_Checkout_ProofStoreFailure(t *testing.T) {
	f := newTestConverter(t)
	f.addToCart(t, "user-1", "p1", "", 1)
	f.converter.proofs = failingProofStore{payment.NewMemoryProofStore()}
	f.es.Reset()

	_, err := f.converter.Checkout(context.Background(), validRequest())

	require.Error(t, err)
	assert.Empty(t, f.es.AppendCalls, "no order without its screenshot")
}

func TestConverter_Checkout_PricesCapturedAtCheckout(t *testing.T) {
	f := newTestConverter(t)
	f.addToCart(t, "user-1", "p1", "", 1)
	f.catalog.Put(catalog.Product{ID: "p1", Name: "Eau de parfum", Price: 12000, Stock: 50})

	result, err := f.converter.Checkout(context.Background(), validRequest())
	require.NoError(t, err)
	f.catalog.Put(catalog.Product{ID: "p1", Name: "Eau de parfum", Price: 15000, Stock: 50})

	stored, err := f.orders.Get(context.Background(), result.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), stored.Items[0].UnitPrice)
}

func TestConverter_Checkout_LowStock(t *testing.T) {
	f := newTestConverter(t)
	f.addToCart(t, "user-1", "p2", "S", 1)
	f.addToCart(t, "user-1", "p2", "M", 1)

	_, err := f.converter.Checkout(context.Background(), validRequest())

	require.NoError(t, err)
	require.Len(t, f.notifier.events, 2)
	assert.Equal(t, notification.LowStock{ProductID: "p2", ProductName: "Savon noir", Remaining: 2}, f.notifier.events[1])
}

func TestConverter_Checkout_NotifierFailureIgnored(t *testing.T) {
	f := newTestConverter(t)
	f.addToCart(t, "user-1", "p1", "", 1)
	f.notifier.err = errors.New("notification store down")

	result, err := f.converter.Checkout(context.Background(), validRequest())

	require.NoError(t, err)
	assert.NotNil(t, result.Order)
}

// ============================================
// Rejection Tests
// ============================================

func TestConverter_Checkout_EmptyCart(t *testing.T) {
	f := newTestConverter(t)

	_, err := f.converter.Checkout(context.Background(), validRequest())

	var stateErr *apperror.InvalidStateError
	assert.ErrorAs(t, err, &stateErr)
	assert.Empty(t, f.es.AppendCalls)
	assert.Empty(t, f.notifier.events)
}

func TestConverter_Checkout_AddressOfAnotherUser(t *testing.T) {
	f := newTestConverter(t)
	f.addToCart(t, "user-1", "p1", "", 1)
	req := validRequest()
	req.AddressID = "addr-2"

	_, err := f.converter.Checkout(context.Background(), req)

	var notFound *apperror.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "address", notFound.Resource)
}

func TestConverter_Checkout_InvalidRequest(t *testing.T) {
	notImage := base64.StdEncoding.EncodeToString([]byte("just some text, not a picture"))
	tooLarge := base64.StdEncoding.EncodeToString(append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 2048)...))

	tests := []struct {
		name   string
		mutate func(*Request)
		field  string
	}{
		{"unknown payment method", func(r *Request) { r.PaymentMethod = "CASH" }, "paymentMethod"},
		{"missing screenshot", func(r *Request) { r.PaymentScreenshot = "" }, "paymentScreenshot"},
		{"screenshot not base64", func(r *Request) { r.PaymentScreenshot = "%%%" }, "paymentScreenshot"},
		{"screenshot not an image", func(r *Request) { r.PaymentScreenshot = notImage }, "paymentScreenshot"},
		{"screenshot too large", func(r *Request) { r.PaymentScreenshot = tooLarge }, "paymentScreenshot"},
		{"data URL not base64", func(r *Request) { r.PaymentScreenshot = "data:image/png," + pngScreenshot }, "paymentScreenshot"},
		{"missing address", func(r *Request) { r.AddressID = "" }, "addressId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestConverter(t)
			f.addToCart(t, "user-1", "p1", "", 1)
			req := validRequest()
			tt.mutate(&req)

			_, err := f.converter.Checkout(context.Background(), req)

			var validationErr *apperror.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
			assert.Len(t, f.es.AppendCalls, 1)
		})
	}
}

func TestConverter_Checkout_ProductNoLongerAvailable(t *testing.T) {
	f := newTestConverter(t)
	f.addToCart(t, "user-1", "discontinued", "", 1)

	_, err := f.converter.Checkout(context.Background(), validRequest())

	var stateErr *apperror.InvalidStateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestConverter_Checkout_InsufficientStock(t *testing.T) {
	f := newTestConverter(t)
	f.addToCart(t, "user-1", "p2", "S", 3)
	f.addToCart(t, "user-1", "p2", "M", 2)

	_, err := f.converter.Checkout(context.Background(), validRequest())

	var stateErr *apperror.InvalidStateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestConverter_Checkout_CartChangedConcurrently(t *testing.T) {
	f := newTestConverter(t)
	f.addToCart(t, "user-1", "p1", "", 1)
	ctx := context.Background()

	f.es.AppendCallback = func(ctx context.Context, events ...store.PendingEvent) ([]store.Event, error) {
		// The user adds an item in another tab before the batch lands.
		_, err := f.es.MemoryEventStore.Append(ctx, store.PendingEvent{
			AggregateID:     cart.GetCartID("user-1"),
			AggregateType:   cart.AggregateType,
			EventType:       cart.EventItemAdded,
			ExpectedVersion: 1,
			Data:            cart.ItemAddedToCart{CartID: cart.GetCartID("user-1"), UserID: "user-1", ProductID: "p2", Quantity: 1},
		})
		require.NoError(t, err)
		return f.es.MemoryEventStore.Append(ctx, events...)
	}

	_, err := f.converter.Checkout(ctx, validRequest())

	var conflictErr *apperror.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Empty(t, f.notifier.events)

	c, err := f.carts.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)
}

// ============================================
// Idempotency Tests
// ============================================

func TestConverter_Checkout_IdempotentReplay(t *testing.T) {
	f := newTestConverter(t)
	f.addToCart(t, "user-1", "p1", "", 2)
	req := validRequest()
	req.IdempotencyKey = "key-1"
	ctx := context.Background()

	first, err := f.converter.Checkout(ctx, req)
	require.NoError(t, err)
	second, err := f.converter.Checkout(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, OrderID("user-1", "key-1"), first.Order.ID)
	assert.Equal(t, []string{cart.EventItemAdded, order.EventOrderPlaced, cart.EventCartCleared}, f.es.EventTypes())
	assert.Len(t, f.notifier.events, 1)
}

func TestConverter_Checkout_SameKeyDifferentUsers(t *testing.T) {
	assert.NotEqual(t, OrderID("user-1", "key-1"), OrderID("user-2", "key-1"))
	assert.NotEqual(t, OrderID("user-1", ""), OrderID("user-1", ""))
}

func TestConverter_Checkout_ConcurrentDuplicate(t *testing.T) {
	f := newTestConverter(t)
	f.addToCart(t, "user-1", "p1", "", 1)
	req := validRequest()
	req.IdempotencyKey = "key-1"

	f.es.AppendCallback = func(ctx context.Context, events ...store.PendingEvent) ([]store.Event, error) {
		// A retried request wins the race with an identical batch.
		_, err := f.es.MemoryEventStore.Append(ctx, events...)
		require.NoError(t, err)
		return f.es.MemoryEventStore.Append(ctx, events...)
	}

	result, err := f.converter.Checkout(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, result.Replayed)
	events, err := f.es.GetEvents(context.Background(), result.Order.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
