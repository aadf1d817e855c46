package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
)

type cachedPayload struct {
	Value float64 `json:"value"`
}

func TestMemoryCacheRepositoryExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	repo := NewMemoryCacheRepository().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "analytics:a", cachedPayload{Value: 42}, time.Minute))

	var got cachedPayload
	require.NoError(t, repo.Get(ctx, "analytics:a", &got))
	assert.Equal(t, 42.0, got.Value)

	now = now.Add(time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "analytics:a", &got), appErrors.ErrCacheMiss)
}

func TestMemoryCacheRepositoryMissAndZeroTTL(t *testing.T) {
	repo := NewMemoryCacheRepository()
	ctx := context.Background()

	var got cachedPayload
	assert.ErrorIs(t, repo.Get(ctx, "missing", &got), appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "k", cachedPayload{Value: 1}, 0))
	assert.ErrorIs(t, repo.Get(ctx, "k", &got), appErrors.ErrCacheMiss)
}

func TestMemoryCacheRepositoryDeleteByPattern(t *testing.T) {
	repo := NewMemoryCacheRepository()
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "analytics:faculty:1", cachedPayload{Value: 1}, time.Hour))
	require.NoError(t, repo.Set(ctx, "analytics:admin:1", cachedPayload{Value: 2}, time.Hour))

	require.NoError(t, repo.DeleteByPattern(ctx, "analytics:faculty:*"))

	var got cachedPayload
	assert.ErrorIs(t, repo.Get(ctx, "analytics:faculty:1", &got), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Get(ctx, "analytics:admin:1", &got))
	assert.Equal(t, 2.0, got.Value)
}
