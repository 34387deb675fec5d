package cart

import (
	"context"
	"testing"
	"time"

	"github.com/example/ec-order-lifecycle/internal/apperror"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCartService() (*Service, *mocks.MockEventStore) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)
	return service, eventStore
}

// ============================================
// GetCartID Tests
// ============================================

func TestGetCartID(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		expectedID string
	}{
		{"normal user ID", "user-123", "cart-user-123"},
		{"UUID user ID", "550e8400-e29b-41d4-a716-446655440000", "cart-550e8400-e29b-41d4-a716-446655440000"},
		{"user with special chars", "user@example.com", "cart-user@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedID, GetCartID(tt.userID))
		})
	}
}

// ============================================
// Get Tests
// ============================================

func TestService_Get_EmptyCart(t *testing.T) {
	service, _ := newTestCartService()

	c, err := service.Get(context.Background(), "user-123")

	require.NoError(t, err)
	assert.Equal(t, "cart-user-123", c.ID)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, 0, c.Version)
}

// ============================================
// Add Item Tests
// ============================================

func TestService_AddItem_Success(t *testing.T) {
	service, eventStore := newTestCartService()
	ctx := context.Background()

	c, err := service.AddItem(ctx, "user-123", "prod-456", "M", 2)

	require.NoError(t, err)
	require.Len(t, eventStore.AppendCalls, 1)
	call := eventStore.AppendCalls[0]
	assert.Equal(t, EventItemAdded, call.EventType)
	assert.Equal(t, AggregateType, call.AggregateType)
	assert.Equal(t, "cart-user-123", call.AggregateID)
	assert.Equal(t, 0, call.ExpectedVersion)

	data := call.Data.(ItemAddedToCart)
	assert.Equal(t, "user-123", data.UserID)
	assert.Equal(t, "prod-456", data.ProductID)
	assert.Equal(t, "M", data.Size)
	assert.Equal(t, 2, data.Quantity)

	assert.Equal(t, []CartItem{{ProductID: "prod-456", Size: "M", Quantity: 2}}, c.Items)
	assert.Equal(t, 1, c.Version)
}

func TestService_AddItem_MergesSameProductAndSize(t *testing.T) {
	service, _ := newTestCartService()
	ctx := context.Background()

	_, err := service.AddItem(ctx, "user-123", "prod-1", "M", 1)
	require.NoError(t, err)
	_, err = service.AddItem(ctx, "user-123", "prod-1", "L", 1)
	require.NoError(t, err)
	_, err = service.AddItem(ctx, "user-123", "prod-1", "M", 2)
	require.NoError(t, err)

	c, err := service.Get(ctx, "user-123")
	require.NoError(t, err)
	assert.Equal(t, []CartItem{
		{ProductID: "prod-1", Size: "M", Quantity: 3},
		{ProductID: "prod-1", Size: "L", Quantity: 1},
	}, c.Items)
	assert.Equal(t, 3, c.Version)
}

func TestService_AddItem_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		productID string
		quantity  int
		expected  error
	}{
		{"empty product", "", 2, ErrInvalidProduct},
		{"zero quantity", "prod-456", 0, ErrInvalidQuantity},
		{"negative quantity", "prod-456", -1, ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, eventStore := newTestCartService()

			_, err := service.AddItem(context.Background(), "user-123", tt.productID, "", tt.quantity)

			assert.ErrorIs(t, err, tt.expected)
			var validationErr *apperror.ValidationError
			assert.ErrorAs(t, err, &validationErr)
			assert.Empty(t, eventStore.AppendCalls)
		})
	}
}

func TestService_AddItem_ConcurrentEdit(t *testing.T) {
	service, eventStore := newTestCartService()
	eventStore.AppendErr = store.ErrVersionConflict

	_, err := service.AddItem(context.Background(), "user-123", "prod-1", "", 1)

	var conflictErr *apperror.ConflictError
	assert.ErrorAs(t, err, &conflictErr)
}

// ============================================
// Remove Item Tests
// ============================================

func TestService_RemoveItem_Success(t *testing.T) {
	service, eventStore := newTestCartService()
	ctx := context.Background()
	_, err := service.AddItem(ctx, "user-123", "prod-1", "M", 1)
	require.NoError(t, err)
	_, err = service.AddItem(ctx, "user-123", "prod-2", "", 1)
	require.NoError(t, err)

	c, err := service.RemoveItem(ctx, "user-123", "prod-1", "M")

	require.NoError(t, err)
	assert.Equal(t, []CartItem{{ProductID: "prod-2", Quantity: 1}}, c.Items)
	assert.Equal(t, []string{EventItemAdded, EventItemAdded, EventItemRemoved}, eventStore.EventTypes())
}

func TestService_RemoveItem_NotInCart(t *testing.T) {
	service, eventStore := newTestCartService()
	ctx := context.Background()
	_, err := service.AddItem(ctx, "user-123", "prod-1", "M", 1)
	require.NoError(t, err)

	_, err = service.RemoveItem(ctx, "user-123", "prod-1", "L")

	var notFound *apperror.NotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Len(t, eventStore.AppendCalls, 1)
}

func TestService_RemoveItem_EmptyProductID(t *testing.T) {
	service, _ := newTestCartService()

	_, err := service.RemoveItem(context.Background(), "user-123", "", "")

	assert.ErrorIs(t, err, ErrInvalidProduct)
}

// ============================================
// Clear Tests
// ============================================

func TestService_Clear_Success(t *testing.T) {
	service, _ := newTestCartService()
	ctx := context.Background()
	_, err := service.AddItem(ctx, "user-123", "prod-1", "", 1)
	require.NoError(t, err)

	c, err := service.Clear(ctx, "user-123")

	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, 2, c.Version)
}

func TestService_Clear_EmptyCartIsNoop(t *testing.T) {
	service, eventStore := newTestCartService()

	c, err := service.Clear(context.Background(), "user-123")

	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Empty(t, eventStore.AppendCalls)
}

func TestClearEvent_ExpectsCurrentVersion(t *testing.T) {
	c := &Cart{ID: "cart-user-123", UserID: "user-123", Version: 4}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	pending := ClearEvent(c, "order-1", at)

	assert.Equal(t, "cart-user-123", pending.AggregateID)
	assert.Equal(t, EventCartCleared, pending.EventType)
	assert.Equal(t, 4, pending.ExpectedVersion)
	assert.Equal(t, CartCleared{CartID: c.ID, UserID: c.UserID, OrderID: "order-1", ClearedAt: at}, pending.Data)
}

func TestService_Get_ReplaysFromSnapshot(t *testing.T) {
	service, eventStore := newTestCartService()
	ctx := context.Background()
	for i := 0; i < store.SnapshotThreshold; i++ {
		_, err := service.AddItem(ctx, "user-123", "prod-1", "", 1)
		require.NoError(t, err)
	}
	snapshot, err := eventStore.GetSnapshot(ctx, "cart-user-123")
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	_, err = service.AddItem(ctx, "user-123", "prod-2", "", 1)
	require.NoError(t, err)

	c, err := service.Get(ctx, "user-123")
	require.NoError(t, err)
	assert.Equal(t, []CartItem{
		{ProductID: "prod-1", Quantity: store.SnapshotThreshold},
		{ProductID: "prod-2", Quantity: 1},
	}, c.Items)
	assert.Equal(t, store.SnapshotThreshold+1, c.Version)
}
