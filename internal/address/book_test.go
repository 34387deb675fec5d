package address

import (
	"context"
	"testing"

	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var home = Address{
	ID:       "addr-1",
	UserID:   "user-1",
	FullName: "Awa Diallo",
	Phone:    "+237600000000",
	Street:   "Rue 12",
	City:     "Douala",
	Country:  "CM",
}

func TestMemoryBook_OwnerOnly(t *testing.T) {
	b := NewMemoryBook(home)
	ctx := context.Background()

	a, err := b.Get(ctx, "user-1", "addr-1")
	require.NoError(t, err)
	assert.Equal(t, home, *a)

	_, err = b.Get(ctx, "user-2", "addr-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = b.Get(ctx, "user-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresBook_OwnerOnly(t *testing.T) {
	db := storetest.Postgres(t)
	require.NoError(t, store.RunMigrations(db))
	b := NewPostgresBook(db)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, home))

	a, err := b.Get(ctx, "user-1", "addr-1")
	require.NoError(t, err)
	assert.Equal(t, home, *a)

	_, err = b.Get(ctx, "user-2", "addr-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
