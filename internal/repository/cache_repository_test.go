package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/whistleblower-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "k"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}

func TestRateLimitRepositoryWithoutClient(t *testing.T) {
	repo := NewRateLimitRepository(nil)
	assert.False(t, repo.Enabled())

	count, ttl, err := repo.Incr(context.Background(), "k", time.Minute)
	assert.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, ttl)
}

func TestCacheKeyIsNamespaced(t *testing.T) {
	assert.Equal(t, "whistleblower:cache:reports:stats", cacheKey("reports:stats"))
}
