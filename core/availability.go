package core

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvailabilityStore is the external worker-availability collaborator behind
// the update_availability pass-through event. It is not part of the presence
// logic; presence tracks connections, availability is a business flag.
type AvailabilityStore interface {
	SetAvailability(ctx context.Context, userID string, available bool) error
}

// NoopAvailabilityStore is used when no store is configured.
type NoopAvailabilityStore struct{}

func (NoopAvailabilityStore) SetAvailability(context.Context, string, bool) error {
	return nil
}

// RedisAvailabilityStore keeps worker availability in Redis: a set of
// available workers plus a per-worker status hash with a TTL, so a crashed
// worker's flag ages out.
type RedisAvailabilityStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAvailabilityStore(client *redis.Client, ttl time.Duration) *RedisAvailabilityStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisAvailabilityStore{client: client, ttl: ttl}
}

func (s *RedisAvailabilityStore) SetAvailability(ctx context.Context, userID string, available bool) error {
	statusKey := fmt.Sprintf("worker:%s:availability", userID)

	pipe := s.client.Pipeline()
	if available {
		pipe.SAdd(ctx, "available_workers", userID)
	} else {
		pipe.SRem(ctx, "available_workers", userID)
	}
	pipe.HSet(ctx, statusKey, map[string]interface{}{
		"available":  available,
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, statusKey, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("setting availability: %w", err)
	}
	return nil
}
