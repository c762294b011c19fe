package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kycgate/internal/ratelimit/models"
)

// RedisBucketStore is a fixed-window counter shared by every replica. The
// first request of a window sets the key's expiry; later ones only count.
type RedisBucketStore struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *RedisBucketStore {
	return &RedisBucketStore{client: client}
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit pipeline for %s: %w", key, err)
	}

	count := int(incr.Val())
	ttl := pttl.Val()
	if ttl <= 0 {
		ttl = window
	}
	now := time.Now()

	result := &models.Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   now.Add(ttl),
	}
	if !result.Allowed {
		result.RetryAfter = models.RetryAfterSeconds(ttl)
	}
	return result, nil
}

// Reset clears the counter for key.
func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset rate limit %s: %w", key, err)
	}
	return nil
}
