package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
)

const (
	aggregateMeanScore      = "avg_score"
	aggregateActiveStudents = "active_students"

	sourceLive      = "live"
	sourceAggregate = "aggregate"
)

// FactReader is the schema adapter surface the engine reads from.
type FactReader interface {
	Attempts(ctx context.Context, q models.FactQuery) ([]models.Attempt, error)
	RubricScores(ctx context.Context, q models.FactQuery) ([]models.RubricScore, error)
	EngagementEvents(ctx context.Context, q models.FactQuery) ([]models.EngagementEvent, error)
	EnvironmentMetrics(ctx context.Context, q models.FactQuery) ([]models.EnvironmentMetric, error)
	ReliabilityLogs(ctx context.Context, q models.FactQuery) ([]models.ReliabilityLog, error)
	LatestAggregates(ctx context.Context, q models.AggregateQuery) ([]models.AdminAggregate, error)
}

// MetricEngineConfig carries the tunables of the computations.
type MetricEngineConfig struct {
	AtRisk             AtRiskRule
	Reliability        ReliabilityWeights
	AggregateFreshness time.Duration
	LowSampleThreshold int
}

// MetricEngine computes catalog metrics from raw facts under an access scope and canonical filter.
type MetricEngine struct {
	facts   FactReader
	cfg     MetricEngineConfig
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewMetricEngine constructs the engine, filling unset tunables with defaults.
func NewMetricEngine(facts FactReader, cfg MetricEngineConfig, metrics *MetricsService, logger *zap.Logger) *MetricEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AtRisk.ScoreThreshold <= 0 {
		cfg.AtRisk.ScoreThreshold = 60
	}
	if cfg.AtRisk.MinAttempts <= 0 {
		cfg.AtRisk.MinAttempts = 2
	}
	if cfg.AtRisk.WindowDays <= 0 {
		cfg.AtRisk.WindowDays = 14
	}
	if cfg.Reliability.Error+cfg.Reliability.Latency <= 0 {
		cfg.Reliability.Error = 0.7
		cfg.Reliability.Latency = 0.3
	}
	if cfg.Reliability.LatencyTargetMs <= 0 {
		cfg.Reliability.LatencyTargetMs = 500
	}
	if cfg.AggregateFreshness <= 0 {
		cfg.AggregateFreshness = time.Hour
	}
	if cfg.LowSampleThreshold <= 0 {
		cfg.LowSampleThreshold = 5
	}
	return &MetricEngine{facts: facts, cfg: cfg, metrics: metrics, logger: logger, now: time.Now}
}

// WithClock overrides the time source.
func (e *MetricEngine) WithClock(now func() time.Time) *MetricEngine {
	if now != nil {
		e.now = now
	}
	return e
}

// Compute evaluates one metric. The scope must already permit the metric's entity class.
func (e *MetricEngine) Compute(ctx context.Context, def models.MetricDefinition, scope models.AccessScope, filter models.CanonicalFilter) (*models.MetricResult, error) {
	if !scope.Permits(def.Entity) {
		return nil, appErrors.Denied("metric " + def.ID + " is outside the role's entity classes")
	}

	start := time.Now()
	result, err := e.dispatch(ctx, def, scope, filter)
	if err != nil {
		e.logger.Warn("metric computation failed", zap.String("metric", def.ID), zap.String("role", string(scope.Role)), zap.Error(err))
		return nil, err
	}

	result.MetricID = def.ID
	result.Kind = def.Kind
	if result.Source == "" {
		result.Source = sourceLive
	}
	result.GeneratedAt = e.now().UTC()
	e.metrics.RecordComputation(def.ID, result.Status, time.Since(start))
	return result, nil
}

func (e *MetricEngine) dispatch(ctx context.Context, def models.MetricDefinition, scope models.AccessScope, filter models.CanonicalFilter) (*models.MetricResult, error) {
	q, ok := factQuery(scope, filter)
	if !ok {
		return emptyFor(def), nil
	}

	switch def.Entity {
	case models.EntityAttempts:
		if def.ID == MetricDepartmentSummary || def.ID == MetricCampusSummary {
			if result, ok := e.fromAggregates(ctx, def, scope, filter); ok {
				return result, nil
			}
		}
		attempts, err := e.facts.Attempts(ctx, q)
		if err != nil {
			return nil, err
		}
		return e.attemptMetric(def.ID, attempts, filter)
	case models.EntityRubric:
		rubric, err := e.facts.RubricScores(ctx, q)
		if err != nil {
			return nil, err
		}
		switch def.ID {
		case MetricRubricMastery:
			return computeRubricMastery(rubric), nil
		case MetricCohortHeatmap:
			return computeCohortHeatmap(rubric), nil
		}
	case models.EntityEngagement:
		events, err := e.facts.EngagementEvents(ctx, q)
		if err != nil {
			return nil, err
		}
		switch def.ID {
		case MetricEngagementByAction:
			return computeEngagementByAction(events), nil
		case MetricDailyEngagement:
			return computeDailyEngagement(events), nil
		case MetricDailyActiveStudents:
			return computeDailyActiveStudents(events), nil
		}
	case models.EntityReliability:
		logs, err := e.facts.ReliabilityLogs(ctx, q)
		if err != nil {
			return nil, err
		}
		switch def.ID {
		case MetricLatencyPercentiles:
			return computeLatencyPercentiles(logs), nil
		case MetricReliabilityIndex:
			return computeReliabilityTable(logs, e.cfg.Reliability), nil
		case MetricSystemReliabilityIndex:
			return computeSystemReliability(logs, e.cfg.Reliability), nil
		case MetricErrorRateBySeverity:
			return computeErrorRateBySeverity(logs), nil
		case MetricLatencyTrend:
			return computeLatencyTrend(logs), nil
		case MetricReliabilityLog:
			return computeReliabilityLog(logs, "", reliabilityLogLimit), nil
		case MetricCriticalIncidents:
			return computeReliabilityLog(logs, models.SeverityCritical, criticalIncidentsLimit), nil
		}
	case models.EntityEnvironment:
		env, err := e.facts.EnvironmentMetrics(ctx, q)
		if err != nil {
			return nil, err
		}
		switch def.ID {
		case MetricEnvironmentImpact:
			return computeEnvironmentImpact(env, networkCategories(filter), e.cfg.LowSampleThreshold), nil
		case MetricDeviceDistribution:
			return computeDeviceDistribution(env), nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "metric "+def.ID+" is not implemented")
}

func (e *MetricEngine) attemptMetric(id string, attempts []models.Attempt, filter models.CanonicalFilter) (*models.MetricResult, error) {
	switch id {
	case MetricAvgScore:
		return computeAvgScore(attempts), nil
	case MetricImprovementRate:
		return computeImprovement(attempts), nil
	case MetricAvgDuration:
		return computeAvgDuration(attempts), nil
	case MetricTotalAttempts:
		return computeTotalAttempts(attempts), nil
	case MetricActiveStudents:
		return computeActiveStudents(attempts), nil
	case MetricScoreTrend:
		return computeScoreTrend(attempts), nil
	case MetricAttemptHistory:
		return computeAttemptHistory(attempts), nil
	case MetricCaseStudySummary:
		return computeCaseStudySummary(attempts), nil
	case MetricAtRiskStudents:
		return computeAtRisk(attempts, filter.End, e.cfg.AtRisk), nil
	case MetricDepartmentSummary:
		return computeDimensionSummary(attempts, "department", func(a models.Attempt) string { return a.Department }), nil
	case MetricCampusSummary:
		return computeDimensionSummary(attempts, "campus", func(a models.Attempt) string { return a.Campus }), nil
	case MetricCaseImprovement:
		return computeCaseImprovement(attempts), nil
	case MetricStudentPerformance:
		return computeStudentPerformance(attempts), nil
	case MetricLearningHoursTrend:
		return computeLearningHoursTrend(attempts), nil
	case MetricCohortDistribution:
		return computeCohortDistribution(attempts), nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "metric "+id+" is not implemented")
}

// fromAggregates serves department and campus summaries from admin_aggregates when the request
// covers the whole platform over the full horizon and fresh snapshots exist for every requested
// value. Any other case, including a snapshot read failure, falls back to live aggregation.
func (e *MetricEngine) fromAggregates(ctx context.Context, def models.MetricDefinition, scope models.AccessScope, filter models.CanonicalFilter) (*models.MetricResult, bool) {
	if scope.Role != models.RoleAdmin || !filter.FullHorizon {
		return nil, false
	}

	dimension, column, values := models.DimensionDepartment, "department", filter.Departments
	narrowing := len(filter.Campuses) > 0 || len(scope.Campuses) > 0
	if def.ID == MetricCampusSummary {
		dimension, column, values = models.DimensionCampus, "campus", filter.Campuses
		narrowing = len(filter.Departments) > 0
	}
	if narrowing || len(filter.StudentIDs) > 0 || len(filter.Cohorts) > 0 || len(filter.CaseStudies) > 0 ||
		len(scope.StudentIDs) > 0 || len(scope.Cohorts) > 0 {
		return nil, false
	}

	means, err := e.facts.LatestAggregates(ctx, models.AggregateQuery{MetricName: aggregateMeanScore, Dimension: dimension, Values: values})
	if err != nil || !e.fresh(means) {
		if err != nil {
			e.logger.Warn("aggregate snapshot read failed, aggregating live", zap.String("metric", def.ID), zap.Error(err))
		}
		return nil, false
	}
	students, err := e.facts.LatestAggregates(ctx, models.AggregateQuery{MetricName: aggregateActiveStudents, Dimension: dimension, Values: values})
	if err != nil || !e.fresh(students) {
		return nil, false
	}
	if !covers(means, values) || !covers(students, values) {
		return nil, false
	}

	result := aggregateSummary(column, means, students)
	result.Source = sourceAggregate
	return result, true
}

func (e *MetricEngine) fresh(aggregates []models.AdminAggregate) bool {
	if len(aggregates) == 0 {
		return false
	}
	cutoff := e.now().Add(-e.cfg.AggregateFreshness)
	for _, agg := range aggregates {
		if agg.ComputedAt.Before(cutoff) {
			return false
		}
	}
	return true
}

// covers reports whether every requested dimension value has a snapshot. An empty request
// asks for whatever the snapshot holds.
func covers(aggregates []models.AdminAggregate, values []string) bool {
	present := make(map[string]struct{}, len(aggregates))
	for _, agg := range aggregates {
		present[agg.DimensionValue] = struct{}{}
	}
	for _, v := range values {
		if _, ok := present[v]; !ok {
			return false
		}
	}
	return true
}

// factQuery intersects the access scope with the caller's filter. It returns false when the
// two are disjoint so nothing outside the scope can ever be read.
func factQuery(scope models.AccessScope, filter models.CanonicalFilter) (models.FactQuery, bool) {
	q := models.FactQuery{
		Start:            filter.Start,
		End:              filter.End,
		Departments:      filter.Departments,
		CaseStudies:      filter.CaseStudies,
		Severities:       filter.Severities,
		DeviceTypes:      filter.DeviceTypes,
		NetworkQualities: filter.NetworkQualities,
	}
	var ok bool
	if q.StudentIDs, ok = narrow(scope.StudentIDs, filter.StudentIDs); !ok {
		return q, false
	}
	if q.Cohorts, ok = narrow(scope.Cohorts, filter.Cohorts); !ok {
		return q, false
	}
	if q.Campuses, ok = narrow(scope.Campuses, filter.Campuses); !ok {
		return q, false
	}
	if q.APINames, ok = narrow(scope.APINames, filter.APINames); !ok {
		return q, false
	}
	return q, true
}

func narrow(allowed, requested []string) ([]string, bool) {
	if len(allowed) == 0 {
		return requested, true
	}
	if len(requested) == 0 {
		return allowed, true
	}
	set := toSet(allowed)
	var out []string
	for _, v := range requested {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out, len(out) > 0
}

func networkCategories(filter models.CanonicalFilter) []models.NetworkQuality {
	if len(filter.NetworkQualities) == 0 {
		return models.NetworkQualities
	}
	requested := toSet(filter.NetworkQualities)
	var out []models.NetworkQuality
	for _, q := range models.NetworkQualities {
		if _, ok := requested[string(q)]; ok {
			out = append(out, q)
		}
	}
	return out
}

func emptyFor(def models.MetricDefinition) *models.MetricResult {
	return statusResult(def.Kind, models.StatusNoData)
}
