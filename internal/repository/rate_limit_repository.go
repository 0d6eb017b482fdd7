package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitRepository keeps fixed-window request counters in Redis.
type RateLimitRepository struct {
	client *redis.Client
}

// NewRateLimitRepository constructs the repository. A nil client disables limiting.
func NewRateLimitRepository(client *redis.Client) *RateLimitRepository {
	return &RateLimitRepository{client: client}
}

// Enabled reports whether a backing store is configured.
func (r *RateLimitRepository) Enabled() bool {
	return r != nil && r.client != nil
}

// Incr bumps the counter for key and returns the new count together with the
// remaining window. The expiry is only set when the window opens.
func (r *RateLimitRepository) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, nil
	}
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("rate limit incr %s: %w", key, err)
	}
	return incr.Val(), ttl.Val(), nil
}
