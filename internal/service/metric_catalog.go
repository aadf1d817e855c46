package service

import (
	"sort"

	"github.com/noah-isme/mind-analytics-api/internal/models"
)

// Metric identifiers served by the engine.
const (
	MetricAvgScore               = "avg_score"
	MetricImprovementRate        = "improvement_rate"
	MetricAvgDuration            = "avg_duration"
	MetricTotalAttempts          = "total_attempts"
	MetricActiveStudents         = "active_students"
	MetricScoreTrend             = "score_trend"
	MetricAttemptHistory         = "attempt_history"
	MetricCaseStudySummary       = "case_study_summary"
	MetricAtRiskStudents         = "at_risk_students"
	MetricDepartmentSummary      = "department_summary"
	MetricCampusSummary          = "campus_summary"
	MetricRubricMastery          = "rubric_mastery"
	MetricCohortHeatmap          = "cohort_heatmap"
	MetricEngagementByAction     = "engagement_by_action"
	MetricDailyEngagement        = "daily_engagement"
	MetricLatencyPercentiles     = "latency_percentiles"
	MetricReliabilityIndex       = "reliability_index"
	MetricSystemReliabilityIndex = "system_reliability_index"
	MetricErrorRateBySeverity    = "error_rate_by_severity"
	MetricLatencyTrend           = "latency_trend"
	MetricEnvironmentImpact      = "environment_impact"
	MetricDeviceDistribution     = "device_distribution"
	MetricCaseImprovement        = "case_attempt_improvement"
	MetricStudentPerformance     = "student_performance_summary"
	MetricLearningHoursTrend     = "learning_hours_trend"
	MetricCohortDistribution     = "cohort_distribution"
	MetricDailyActiveStudents    = "daily_active_students"
	MetricReliabilityLog         = "reliability_log"
	MetricCriticalIncidents      = "critical_incidents"
)

var (
	learners  = []models.Role{models.RoleStudent, models.RoleFaculty, models.RoleAdmin}
	educators = []models.Role{models.RoleFaculty, models.RoleAdmin}
	operators = []models.Role{models.RoleDeveloper, models.RoleAdmin}
	admins    = []models.Role{models.RoleAdmin}
)

var catalog = map[string]models.MetricDefinition{
	MetricAvgScore:               {ID: MetricAvgScore, Kind: models.KindScalar, Entity: models.EntityAttempts, Roles: learners, Description: "Mean attempt score"},
	MetricImprovementRate:        {ID: MetricImprovementRate, Kind: models.KindScalar, Entity: models.EntityAttempts, Roles: learners, Description: "Mean score of the later half of attempts minus the earlier half"},
	MetricAvgDuration:            {ID: MetricAvgDuration, Kind: models.KindScalar, Entity: models.EntityAttempts, Roles: learners, Description: "Mean attempt duration in seconds"},
	MetricTotalAttempts:          {ID: MetricTotalAttempts, Kind: models.KindScalar, Entity: models.EntityAttempts, Roles: educators, Description: "Number of attempts"},
	MetricActiveStudents:         {ID: MetricActiveStudents, Kind: models.KindScalar, Entity: models.EntityAttempts, Roles: educators, Description: "Distinct students with at least one attempt"},
	MetricScoreTrend:             {ID: MetricScoreTrend, Kind: models.KindSeries, Entity: models.EntityAttempts, Roles: learners, Description: "Daily mean score"},
	MetricAttemptHistory:         {ID: MetricAttemptHistory, Kind: models.KindTable, Entity: models.EntityAttempts, Roles: learners, Description: "Attempts in chronological order"},
	MetricCaseStudySummary:       {ID: MetricCaseStudySummary, Kind: models.KindTable, Entity: models.EntityAttempts, Roles: educators, Description: "Attempts, students, mean score and duration per case study"},
	MetricAtRiskStudents:         {ID: MetricAtRiskStudents, Kind: models.KindTable, Entity: models.EntityAttempts, Roles: educators, Description: "Students with a low mean score and low recent activity"},
	MetricDepartmentSummary:      {ID: MetricDepartmentSummary, Kind: models.KindTable, Entity: models.EntityAttempts, Roles: admins, Description: "Mean score and active students per department"},
	MetricCampusSummary:          {ID: MetricCampusSummary, Kind: models.KindTable, Entity: models.EntityAttempts, Roles: admins, Description: "Mean score and active students per campus"},
	MetricRubricMastery:          {ID: MetricRubricMastery, Kind: models.KindTable, Entity: models.EntityRubric, Roles: learners, Description: "Mean criterion percentage per rubric criterion"},
	MetricCohortHeatmap:          {ID: MetricCohortHeatmap, Kind: models.KindTable, Entity: models.EntityRubric, Roles: educators, Description: "Mean criterion percentage per cohort and criterion"},
	MetricEngagementByAction:     {ID: MetricEngagementByAction, Kind: models.KindTable, Entity: models.EntityEngagement, Roles: learners, Description: "Events, students and sessions per action type"},
	MetricDailyEngagement:        {ID: MetricDailyEngagement, Kind: models.KindSeries, Entity: models.EntityEngagement, Roles: learners, Description: "Events per day"},
	MetricLatencyPercentiles:     {ID: MetricLatencyPercentiles, Kind: models.KindTable, Entity: models.EntityReliability, Roles: operators, Description: "p50 and p95 latency per API"},
	MetricReliabilityIndex:       {ID: MetricReliabilityIndex, Kind: models.KindTable, Entity: models.EntityReliability, Roles: operators, Description: "Error rate, p95 latency and reliability index per API"},
	MetricSystemReliabilityIndex: {ID: MetricSystemReliabilityIndex, Kind: models.KindScalar, Entity: models.EntityReliability, Roles: operators, Description: "Reliability index across all APIs in scope"},
	MetricErrorRateBySeverity:    {ID: MetricErrorRateBySeverity, Kind: models.KindTable, Entity: models.EntityReliability, Roles: operators, Description: "Requests, errors and error rate per severity"},
	MetricLatencyTrend:           {ID: MetricLatencyTrend, Kind: models.KindSeries, Entity: models.EntityReliability, Roles: operators, Description: "Daily p95 latency"},
	MetricEnvironmentImpact:      {ID: MetricEnvironmentImpact, Kind: models.KindTable, Entity: models.EntityEnvironment, Roles: operators, Description: "Mean attempt score and sample count per network quality"},
	MetricDeviceDistribution:     {ID: MetricDeviceDistribution, Kind: models.KindTable, Entity: models.EntityEnvironment, Roles: operators, Description: "Samples, mean latency and mean score per device type"},
	MetricCaseImprovement:        {ID: MetricCaseImprovement, Kind: models.KindTable, Entity: models.EntityAttempts, Roles: learners, Description: "First versus second attempt score per case study"},
	MetricStudentPerformance:     {ID: MetricStudentPerformance, Kind: models.KindTable, Entity: models.EntityAttempts, Roles: educators, Description: "Cases, attempts, score range and learning hours per student"},
	MetricLearningHoursTrend:     {ID: MetricLearningHoursTrend, Kind: models.KindSeries, Entity: models.EntityAttempts, Roles: educators, Description: "Hours spent on attempts per day"},
	MetricCohortDistribution:     {ID: MetricCohortDistribution, Kind: models.KindTable, Entity: models.EntityAttempts, Roles: admins, Description: "Active students per cohort"},
	MetricDailyActiveStudents:    {ID: MetricDailyActiveStudents, Kind: models.KindSeries, Entity: models.EntityEngagement, Roles: educators, Description: "Distinct engaged students per day"},
	MetricReliabilityLog:         {ID: MetricReliabilityLog, Kind: models.KindTable, Entity: models.EntityReliability, Roles: operators, Description: "Most recent API call observations"},
	MetricCriticalIncidents:      {ID: MetricCriticalIncidents, Kind: models.KindTable, Entity: models.EntityReliability, Roles: operators, Description: "Most recent critical-severity API call observations"},
}

// LookupMetric returns the definition for id.
func LookupMetric(id string) (models.MetricDefinition, bool) {
	def, ok := catalog[id]
	return def, ok
}

// CatalogFor lists the metrics a role may request, ordered by id.
func CatalogFor(role models.Role) []models.MetricDefinition {
	defs := make([]models.MetricDefinition, 0, len(catalog))
	for _, def := range catalog {
		if def.AllowedFor(role) {
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}
