package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
)

const resultKeyPrefix = "analytics:result"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// TTL returns the default entry lifetime.
func (s *CacheService) TTL() time.Duration {
	if s == nil {
		return 0
	}
	return s.defaultTTL
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("cache_key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("cache_key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// GetOrCompute returns the live cached value for key, or runs compute and stores its result.
// A failed computation is never stored. Cache backend failures degrade to computing.
// Concurrent misses may compute the same key more than once; the last write wins.
func GetOrCompute[T any](ctx context.Context, s *CacheService, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	var cached T
	if hit, _ := s.Get(ctx, key, &cached); hit {
		return cached, true, nil
	}

	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	_ = s.Set(ctx, key, value, ttl)
	return value, false, nil
}

// ResultKey builds the cache key for a metric result. Identity enters only through the scope fingerprint.
func ResultKey(scope models.AccessScope, filter models.CanonicalFilter, metricID string) string {
	return strings.Join([]string{resultKeyPrefix, string(scope.Role), scope.Fingerprint(), filter.Fingerprint(), metricID}, ":")
}

// RolePattern matches every cached result computed for a role.
func RolePattern(role models.Role) string {
	return resultKeyPrefix + ":" + string(role) + ":*"
}
