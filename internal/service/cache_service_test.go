package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	"github.com/noah-isme/mind-analytics-api/internal/repository"
)

func TestGetOrComputeMemoises(t *testing.T) {
	metrics := NewMetricsService()
	cache := NewCacheService(&stubCacheRepo{}, metrics, time.Minute, zap.NewNop(), true)

	calls := 0
	compute := func(context.Context) (*models.MetricResult, error) {
		calls++
		return scalarResult(42), nil
	}

	first, hit, err := GetOrCompute(context.Background(), cache, "k", 0, compute)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := GetOrCompute(context.Background(), cache, "k", 0, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
}

func TestGetOrComputeNeverStoresFailures(t *testing.T) {
	repo := &stubCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	_, _, err := GetOrCompute(context.Background(), cache, "k", 0, func(context.Context) (*models.MetricResult, error) {
		return nil, assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, repo.sets)
	assert.Empty(t, repo.store)
}

func TestGetOrComputeDegradesOnBackendFailure(t *testing.T) {
	repo := &stubCacheRepo{getErr: assert.AnError, setErr: assert.AnError}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	calls := 0
	for i := 0; i < 2; i++ {
		value, hit, err := GetOrCompute(context.Background(), cache, "k", 0, func(context.Context) (*models.MetricResult, error) {
			calls++
			return scalarResult(1), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, 1.0, *value.Value)
	}
	assert.Equal(t, 2, calls)
}

func TestGetOrComputeRecomputesAfterExpiry(t *testing.T) {
	now := testNow
	repo := repository.NewMemoryCacheRepository().WithClock(func() time.Time { return now })
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	calls := 0
	compute := func(context.Context) (*models.MetricResult, error) {
		calls++
		return scalarResult(float64(calls)), nil
	}

	_, _, err := GetOrCompute(context.Background(), cache, "k", 0, compute)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	value, hit, err := GetOrCompute(context.Background(), cache, "k", 0, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1.0, *value.Value)

	now = now.Add(time.Minute)
	value, hit, err = GetOrCompute(context.Background(), cache, "k", 0, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2.0, *value.Value)
	assert.Equal(t, 2, calls)
}

func TestDisabledCacheAlwaysComputes(t *testing.T) {
	cache := NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	calls := 0
	for i := 0; i < 2; i++ {
		_, hit, err := GetOrCompute(context.Background(), cache, "k", 0, func(context.Context) (int, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 2, calls)
}

func TestResultKeyIsolatesRoles(t *testing.T) {
	filter := models.CanonicalFilter{Start: testNow.AddDate(0, -1, 0), End: testNow}
	admin := models.AccessScope{Role: models.RoleAdmin, Unrestricted: true}
	developer := models.AccessScope{Role: models.RoleDeveloper, Unrestricted: true}

	assert.NotEqual(t, ResultKey(admin, filter, MetricLatencyTrend), ResultKey(developer, filter, MetricLatencyTrend))
	assert.NotEqual(t, ResultKey(admin, filter, MetricLatencyTrend), ResultKey(admin, filter, MetricLatencyPercentiles))
	assert.Equal(t, ResultKey(admin, filter, MetricLatencyTrend), ResultKey(admin, filter, MetricLatencyTrend))
}
