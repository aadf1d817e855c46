package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
)

func newTestEngine(facts *fakeFacts) *MetricEngine {
	return NewMetricEngine(facts, MetricEngineConfig{}, NewMetricsService(), nil).WithClock(fixedClock)
}

func adminScope() models.AccessScope {
	return models.AccessScope{Role: models.RoleAdmin, Unrestricted: true, Entities: RoleEntities(models.RoleAdmin)}
}

func TestMetricEngineRejectsEntityOutsideScope(t *testing.T) {
	facts := &fakeFacts{}
	engine := newTestEngine(facts)
	def, _ := LookupMetric(MetricAvgScore)
	scope := models.AccessScope{Role: models.RoleDeveloper, Unrestricted: true, Entities: RoleEntities(models.RoleDeveloper)}

	_, err := engine.Compute(context.Background(), def, scope, models.CanonicalFilter{})
	require.Error(t, err)
	assert.True(t, appErrors.IsAuthorization(err))
	assert.Zero(t, facts.attemptCalls)
}

func TestMetricEngineScopeNarrowsQuery(t *testing.T) {
	facts := &fakeFacts{}
	engine := newTestEngine(facts)
	def, _ := LookupMetric(MetricAvgScore)
	scope := models.AccessScope{Role: models.RoleFaculty, Cohorts: []string{"2025A", "2025B"}, Entities: RoleEntities(models.RoleFaculty)}

	result, err := engine.Compute(context.Background(), def, scope, models.CanonicalFilter{Cohorts: []string{"2025B"}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoData, result.Status)
	require.Len(t, facts.queries, 1)
	assert.Equal(t, []string{"2025B"}, facts.queries[0].Cohorts)

	student := models.AccessScope{Role: models.RoleStudent, StudentIDs: []string{"stu-1"}, Entities: RoleEntities(models.RoleStudent)}
	_, err = engine.Compute(context.Background(), def, student, models.CanonicalFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-1"}, facts.queries[1].StudentIDs)
}

func TestMetricEngineDisjointScopeReadsNothing(t *testing.T) {
	facts := &fakeFacts{}
	engine := newTestEngine(facts)
	def, _ := LookupMetric(MetricTotalAttempts)
	scope := models.AccessScope{Role: models.RoleFaculty, Cohorts: []string{"2025A"}, Entities: RoleEntities(models.RoleFaculty)}

	result, err := engine.Compute(context.Background(), def, scope, models.CanonicalFilter{Cohorts: []string{"2025B"}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoData, result.Status)
	assert.Equal(t, MetricTotalAttempts, result.MetricID)
	assert.Zero(t, facts.attemptCalls)
}

func TestMetricEngineStoreFailureSurfaces(t *testing.T) {
	facts := &fakeFacts{err: appErrors.Unavailable(assert.AnError)}
	engine := newTestEngine(facts)
	def, _ := LookupMetric(MetricLatencyTrend)

	_, err := engine.Compute(context.Background(), def, adminScope(), models.CanonicalFilter{})
	require.Error(t, err)
	assert.True(t, appErrors.IsDataUnavailable(err))
}

func TestMetricEngineAggregateFastPath(t *testing.T) {
	fresh := testNow.Add(-10 * time.Minute)
	facts := &fakeFacts{
		aggregates: []models.AdminAggregate{
			{MetricName: "avg_score", Dimension: models.DimensionDepartment, DimensionValue: "nursing", Value: 71.5, ComputedAt: fresh},
			{MetricName: "avg_score", Dimension: models.DimensionDepartment, DimensionValue: "medicine", Value: 64, ComputedAt: fresh},
			{MetricName: "active_students", Dimension: models.DimensionDepartment, DimensionValue: "nursing", Value: 120, ComputedAt: fresh},
		},
	}
	engine := newTestEngine(facts)
	def, _ := LookupMetric(MetricDepartmentSummary)

	result, err := engine.Compute(context.Background(), def, adminScope(), models.CanonicalFilter{FullHorizon: true})
	require.NoError(t, err)
	assert.Equal(t, sourceAggregate, result.Source)
	assert.Zero(t, facts.attemptCalls)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, []interface{}{"medicine", 64.0, nil}, result.Rows[0])
	assert.Equal(t, []interface{}{"nursing", 71.5, 120.0}, result.Rows[1])
}

func TestMetricEngineStaleAggregatesFallBackToLive(t *testing.T) {
	stale := testNow.Add(-3 * time.Hour)
	facts := &fakeFacts{
		aggregates: []models.AdminAggregate{
			{MetricName: "avg_score", Dimension: models.DimensionCampus, DimensionValue: "north", Value: 10, ComputedAt: stale},
		},
		attempts: []models.Attempt{
			attempt("a1", "stu-1", "2025A", 80, "2025-02-01T10:00:00Z"),
			attempt("a2", "stu-2", "2025A", 60, "2025-02-02T10:00:00Z"),
		},
	}
	engine := newTestEngine(facts)
	def, _ := LookupMetric(MetricCampusSummary)

	result, err := engine.Compute(context.Background(), def, adminScope(), models.CanonicalFilter{FullHorizon: true})
	require.NoError(t, err)
	assert.Equal(t, sourceLive, result.Source)
	assert.Equal(t, 1, facts.attemptCalls)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, []interface{}{"north", 70.0, 2.0}, result.Rows[0])

	facts.attemptCalls, facts.aggregateCalls = 0, 0
	_, err = engine.Compute(context.Background(), def, adminScope(), models.CanonicalFilter{})
	require.NoError(t, err)
	assert.Zero(t, facts.aggregateCalls)
	assert.Equal(t, 1, facts.attemptCalls)
}

func TestMetricEngineStampsResult(t *testing.T) {
	facts := &fakeFacts{attempts: []models.Attempt{attempt("a1", "stu-1", "2025A", 80, "2025-02-01T10:00:00Z")}}
	engine := newTestEngine(facts)
	def, _ := LookupMetric(MetricAvgScore)

	result, err := engine.Compute(context.Background(), def, adminScope(), models.CanonicalFilter{})
	require.NoError(t, err)
	assert.Equal(t, MetricAvgScore, result.MetricID)
	assert.Equal(t, models.KindScalar, result.Kind)
	assert.Equal(t, testNow, result.GeneratedAt)
	assert.Equal(t, sourceLive, result.Source)
}

func TestMetricEnginePartialSnapshotsFallBackToLive(t *testing.T) {
	fresh := testNow.Add(-10 * time.Minute)
	d2 := attempt("a2", "stu-2", "2025A", 50, "2025-02-02T10:00:00Z")
	d2.Department = "medicine"
	facts := &fakeFacts{
		aggregates: []models.AdminAggregate{
			{MetricName: "avg_score", Dimension: models.DimensionDepartment, DimensionValue: "nursing", Value: 70, ComputedAt: fresh},
			{MetricName: "active_students", Dimension: models.DimensionDepartment, DimensionValue: "nursing", Value: 1, ComputedAt: fresh},
		},
		attempts: []models.Attempt{
			attempt("a1", "stu-1", "2025A", 80, "2025-02-01T10:00:00Z"),
			d2,
		},
	}
	engine := newTestEngine(facts)
	def, _ := LookupMetric(MetricDepartmentSummary)

	filter := models.CanonicalFilter{FullHorizon: true, Departments: []string{"medicine", "nursing"}}
	result, err := engine.Compute(context.Background(), def, adminScope(), filter)
	require.NoError(t, err)
	assert.Equal(t, sourceLive, result.Source)
	assert.Equal(t, 1, facts.attemptCalls)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, []interface{}{"medicine", 50.0, 1.0}, result.Rows[0])
	assert.Equal(t, []interface{}{"nursing", 80.0, 1.0}, result.Rows[1])

	facts.attemptCalls = 0
	result, err = engine.Compute(context.Background(), def, adminScope(), models.CanonicalFilter{FullHorizon: true, Departments: []string{"nursing"}})
	require.NoError(t, err)
	assert.Equal(t, sourceAggregate, result.Source)
	assert.Zero(t, facts.attemptCalls)
	assert.Equal(t, []interface{}{"nursing", 70.0, 1.0}, result.Rows[0])
}

func TestMetricEngineServesEveryCatalogMetric(t *testing.T) {
	facts := &fakeFacts{
		attempts: []models.Attempt{attempt("a1", "stu-1", "2025A", 80, "2025-02-01T10:00:00Z")},
		logs: []models.ReliabilityLog{
			{LogID: "l1", APIName: "X", LatencyMs: 120, Status: models.StatusError, Severity: models.SeverityCritical, OccurredAt: ts("2025-02-01T10:00:00Z")},
		},
	}
	engine := newTestEngine(facts)

	for _, def := range CatalogFor(models.RoleAdmin) {
		result, err := engine.Compute(context.Background(), def, adminScope(), models.CanonicalFilter{})
		require.NoError(t, err, def.ID)
		assert.Equal(t, def.Kind, result.Kind, def.ID)
	}

	def, _ := LookupMetric(MetricCriticalIncidents)
	result, err := engine.Compute(context.Background(), def, adminScope(), models.CanonicalFilter{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "X", result.Rows[0][1])
}
