package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore serves unread counts from Redis and delegates everything else.
//
// Counts are cached under a per-user generation. Every mutation bumps the
// generation after writing, so a reader that computed its count before the
// mutation can only cache it under a generation nobody reads any more.
type CachedStore struct {
	Store
	client *redis.Client
	ttl    time.Duration
	// genTTL outlives every count key, so an expired generation can never
	// resurrect a stale count
	genTTL time.Duration
}

func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{Store: inner, client: client, ttl: ttl, genTTL: max(24*time.Hour, 2*ttl)}
}

func generationKey(userID string) string {
	return fmt.Sprintf("notifications:unread:%s:gen", userID)
}

func unreadKey(userID string, generation int64) string {
	return fmt.Sprintf("notifications:unread:%s:%d", userID, generation)
}

func (s *CachedStore) generation(ctx context.Context, userID string) (int64, error) {
	gen, err := s.client.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (s *CachedStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	gen, err := s.generation(ctx, userID)
	if err != nil {
		log.Printf("[NotificationCache] Failed to read cache generation for %s: %v", userID, err)
		return s.Store.UnreadCount(ctx, userID)
	}
	key := unreadKey(userID, gen)

	cached, err := s.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if count, convErr := strconv.Atoi(cached); convErr == nil {
			return count, nil
		}
	case !errors.Is(err, redis.Nil):
		log.Printf("[NotificationCache] Failed to read unread count for %s: %v", userID, err)
	}

	count, err := s.Store.UnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.client.Set(ctx, key, count, s.ttl).Err(); err != nil {
		log.Printf("[NotificationCache] Failed to cache unread count for %s: %v", userID, err)
	}
	return count, nil
}

func (s *CachedStore) invalidate(ctx context.Context, userID string) {
	pipe := s.client.TxPipeline()
	pipe.Incr(ctx, generationKey(userID))
	pipe.Expire(ctx, generationKey(userID), s.genTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[NotificationCache] Failed to invalidate unread count for %s: %v", userID, err)
	}
}

func (s *CachedStore) Create(ctx context.Context, n *Notification) error {
	defer s.invalidate(ctx, n.UserID)
	return s.Store.Create(ctx, n)
}

func (s *CachedStore) MarkAsRead(ctx context.Context, userID, id string) error {
	defer s.invalidate(ctx, userID)
	return s.Store.MarkAsRead(ctx, userID, id)
}

func (s *CachedStore) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	defer s.invalidate(ctx, userID)
	return s.Store.MarkAllAsRead(ctx, userID)
}

func (s *CachedStore) Delete(ctx context.Context, userID, id string) error {
	defer s.invalidate(ctx, userID)
	return s.Store.Delete(ctx, userID, id)
}

func (s *CachedStore) DeleteAll(ctx context.Context, userID string) (int, error) {
	defer s.invalidate(ctx, userID)
	return s.Store.DeleteAll(ctx, userID)
}
