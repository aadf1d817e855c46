package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
)

type scopeAuthorizer interface {
	Authorize(ctx context.Context, principal models.Principal, req models.ScopeRequest) (models.AccessScope, error)
}

type filterResolver interface {
	Resolve(ctx context.Context, raw models.RawFilters, entity models.EntityKind) (models.CanonicalFilter, error)
}

type metricComputer interface {
	Compute(ctx context.Context, def models.MetricDefinition, scope models.AccessScope, filter models.CanonicalFilter) (*models.MetricResult, error)
}

// QueryService is the inbound query operation: authorize, resolve filters, then serve from cache or compute.
type QueryService struct {
	policy   scopeAuthorizer
	resolver filterResolver
	engine   metricComputer
	cache    *CacheService
	metrics  *MetricsService
	ttl      time.Duration
	logger   *zap.Logger
}

// NewQueryService wires the query pipeline. A nil cache disables memoisation.
func NewQueryService(policy scopeAuthorizer, resolver filterResolver, engine metricComputer, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		policy:   policy,
		resolver: resolver,
		engine:   engine,
		cache:    cache,
		metrics:  metrics,
		ttl:      cache.TTL(),
		logger:   logger,
	}
}

// Query returns the metric for the caller and whether it was served from cache.
// Authorization and filter validation both complete before any fact is read.
func (s *QueryService) Query(ctx context.Context, principal models.Principal, metricID string, raw models.RawFilters) (*models.MetricResult, bool, error) {
	def, ok := LookupMetric(metricID)
	if !ok {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "unknown metric "+metricID)
	}
	if !def.AllowedFor(principal.Role) {
		s.metrics.RecordDenial(principal.Role)
		return nil, false, appErrors.Denied("metric " + metricID + " is not available to role " + string(principal.Role))
	}

	scope, err := s.policy.Authorize(ctx, principal, raw.ScopeRequest())
	if err != nil {
		return nil, false, err
	}
	if !scope.Permits(def.Entity) {
		s.metrics.RecordDenial(principal.Role)
		return nil, false, appErrors.Denied("metric " + metricID + " is outside the role's entity classes")
	}

	filter, err := s.resolver.Resolve(ctx, raw, def.Entity)
	if err != nil {
		return nil, false, err
	}

	key := ResultKey(scope, filter, def.ID)
	result, hit, err := GetOrCompute(ctx, s.cache, key, s.ttl, func(ctx context.Context) (*models.MetricResult, error) {
		return s.engine.Compute(ctx, def, scope, filter)
	})
	if err != nil {
		return nil, false, err
	}

	s.logger.Debug("metric served",
		zap.String("metric", def.ID),
		zap.String("role", string(principal.Role)),
		zap.String("cache_key", key),
		zap.Bool("cache_hit", hit),
		zap.String("status", string(result.Status)))
	return result, hit, nil
}

// Catalog lists the metrics visible to the caller.
func (s *QueryService) Catalog(principal models.Principal) []models.MetricDefinition {
	return CatalogFor(principal.Role)
}

// Invalidate drops cached results for a role, or for every role when role is empty.
func (s *QueryService) Invalidate(ctx context.Context, role models.Role) error {
	pattern := resultKeyPrefix + ":*"
	if role != "" {
		pattern = RolePattern(role)
	}
	return s.cache.Invalidate(ctx, pattern)
}
