package notification

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T, s Store, id, userID string, minute int, read bool) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), &Notification{
		ID:        id,
		UserID:    userID,
		Title:     "t-" + id,
		Message:   "m-" + id,
		Type:      TypeOrder,
		Read:      read,
		CreatedAt: base.Add(time.Duration(minute) * time.Minute),
	}))
}

func ids(notifications []Notification) []string {
	result := make([]string, len(notifications))
	for i, n := range notifications {
		result[i] = n.ID
	}
	return result
}

// runStoreContract checks the behavior every backend must share
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("ListNewestFirst", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "n1", "alice", 1, false)
		seed(t, s, "n2", "alice", 3, true)
		seed(t, s, "n3", "alice", 2, false)
		seed(t, s, "x1", "bob", 5, false)

		all, err := s.List(context.Background(), "alice", false)
		require.NoError(t, err)
		assert.Equal(t, []string{"n2", "n3", "n1"}, ids(all))

		unread, err := s.List(context.Background(), "alice", true)
		require.NoError(t, err)
		assert.Equal(t, []string{"n3", "n1"}, ids(unread))
	})

	t.Run("OwnershipIsolation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seed(t, s, "a1", "alice", 1, false)

		assert.ErrorIs(t, s.MarkAsRead(ctx, "bob", "a1"), ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "bob", "a1"), ErrNotFound)
		count, err := s.DeleteAll(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
		marked, err := s.MarkAllAsRead(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, 0, marked)

		list, err := s.List(ctx, "alice", true)
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, ids(list))
	})

	t.Run("MarkAsRead", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seed(t, s, "a1", "alice", 1, false)
		seed(t, s, "a2", "alice", 2, false)

		require.NoError(t, s.MarkAsRead(ctx, "alice", "a1"))
		require.NoError(t, s.MarkAsRead(ctx, "alice", "a1"))

		count, err := s.UnreadCount(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.ErrorIs(t, s.MarkAsRead(ctx, "alice", "missing"), ErrNotFound)
	})

	t.Run("MarkAllAsReadIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seed(t, s, "a1", "alice", 1, false)
		seed(t, s, "a2", "alice", 2, false)
		seed(t, s, "b1", "bob", 1, false)

		first, err := s.MarkAllAsRead(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 2, first)
		second, err := s.MarkAllAsRead(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 0, second)

		count, err := s.UnreadCount(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
		count, err = s.UnreadCount(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seed(t, s, "a1", "alice", 1, false)
		seed(t, s, "a2", "alice", 2, false)
		seed(t, s, "b1", "bob", 1, false)

		require.NoError(t, s.Delete(ctx, "alice", "a1"))
		assert.ErrorIs(t, s.Delete(ctx, "alice", "a1"), ErrNotFound)

		count, err := s.DeleteAll(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		list, err := s.List(ctx, "alice", false)
		require.NoError(t, err)
		assert.Empty(t, list)
		list, err = s.List(ctx, "bob", false)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// cachedCount returns the count cached for the user's current generation
func cachedCount(t *testing.T, mr *miniredis.Miniredis, userID string) (string, bool) {
	t.Helper()
	var gen int64
	if v, err := mr.Get(generationKey(userID)); err == nil {
		gen, err = strconv.ParseInt(v, 10, 64)
		require.NoError(t, err)
	}
	v, err := mr.Get(unreadKey(userID, gen))
	return v, err == nil
}

// interleavingStore runs during once, right after the inner unread count was
// read and before the caller caches it
type interleavingStore struct {
	Store
	during func()
}

func (s *interleavingStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.Store.UnreadCount(ctx, userID)
	if during := s.during; during != nil {
		s.during = nil
		during()
	}
	return count, err
}

func TestCachedStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		client, _ := newTestRedis(t)
		return NewCachedStore(NewMemoryStore(), client, time.Minute)
	})
}

func TestCachedStore_ServesCachedCount(t *testing.T) {
	client, mr := newTestRedis(t)
	inner := NewMemoryStore()
	s := NewCachedStore(inner, client, time.Minute)
	ctx := context.Background()
	seed(t, s, "a1", "alice", 1, false)

	count, err := s.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	cached, ok := cachedCount(t, mr, "alice")
	require.True(t, ok)
	assert.Equal(t, "1", cached)

	// A write that bypasses the cache is not seen until the key expires.
	seed(t, inner, "a2", "alice", 2, false)
	count, err = s.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	mr.FastForward(2 * time.Minute)
	count, err = s.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCachedStore_MutationsInvalidate(t *testing.T) {
	client, mr := newTestRedis(t)
	s := NewCachedStore(NewMemoryStore(), client, time.Minute)
	ctx := context.Background()
	seed(t, s, "a1", "alice", 1, false)

	_, err := s.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	_, ok := cachedCount(t, mr, "alice")
	require.True(t, ok)

	require.NoError(t, s.MarkAsRead(ctx, "alice", "a1"))
	_, ok = cachedCount(t, mr, "alice")
	assert.False(t, ok)
	assert.True(t, mr.TTL(generationKey("alice")) > 0, "generation key expires")

	count, err := s.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCachedStore_MutationDuringRecacheIsNotLost(t *testing.T) {
	client, _ := newTestRedis(t)
	inner := &interleavingStore{Store: NewMemoryStore()}
	s := NewCachedStore(inner, client, time.Minute)
	ctx := context.Background()
	seed(t, s, "a1", "alice", 1, false)

	// The notification is read while this UnreadCount is between loading
	// the count and caching it.
	inner.during = func() { require.NoError(t, s.MarkAsRead(ctx, "alice", "a1")) }
	count, err := s.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "the count cached before the mutation must not be served")
}

func TestCachedStore_RedisDownFallsBack(t *testing.T) {
	client, mr := newTestRedis(t)
	s := NewCachedStore(NewMemoryStore(), client, time.Minute)
	seed(t, s, "a1", "alice", 1, false)
	mr.Close()

	count, err := s.UnreadCount(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMongoStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Skipf("MongoDB container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	n := 0
	runStoreContract(t, func(t *testing.T) Store {
		n++
		db, err := ConnectMongoDB(ctx, uri, "notifications_test_"+string(rune('a'+n)))
		require.NoError(t, err)
		s := NewMongoStore(db)
		require.NoError(t, s.CreateIndexes(ctx))
		return s
	})
}
