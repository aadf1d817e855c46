package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
)

// QueryObserver receives the latency of every store read.
type QueryObserver interface {
	ObserveDBQuery(name string, duration time.Duration)
}

// TelemetryRepository is the read-only schema adapter over the learner and system telemetry tables.
type TelemetryRepository struct {
	db       *sqlx.DB
	guard    *StoreGuard
	observer QueryObserver
	maxRows  int
}

// NewTelemetryRepository instantiates the repository. maxRows caps a single read.
func NewTelemetryRepository(db *sqlx.DB, guard *StoreGuard, observer QueryObserver, maxRows int) *TelemetryRepository {
	if maxRows <= 0 {
		maxRows = 100000
	}
	return &TelemetryRepository{db: db, guard: guard, observer: observer, maxRows: maxRows}
}

// MaxRows reports the per-read row cap.
func (r *TelemetryRepository) MaxRows() int {
	return r.maxRows
}

const attemptOccurredAt = "COALESCE(a.completed_at, a.started_at)"

// Attempts returns attempts joined with the owning student's directory dimensions.
func (r *TelemetryRepository) Attempts(ctx context.Context, q models.FactQuery) ([]models.Attempt, error) {
	w := newWhere()
	w.timeRange(attemptOccurredAt, q.Start, q.End)
	w.learnerScope(q)

	var builder strings.Builder
	builder.WriteString(`SELECT a.attempt_id, a.student_id, a.case_study_id, a.score, a.started_at, a.completed_at, a.duration_seconds,
        s.cohort, s.campus, s.department
        FROM attempts a
        JOIN students s ON s.student_id = a.student_id`)
	builder.WriteString(w.String())
	builder.WriteString(" ORDER BY " + attemptOccurredAt + ", a.attempt_id")

	var rows []models.Attempt
	if err := selectCapped(ctx, r, "attempts", &rows, &builder, w.args); err != nil {
		return nil, err
	}
	return rows, nil
}

// RubricScores returns criterion scores of attempts inside the window.
func (r *TelemetryRepository) RubricScores(ctx context.Context, q models.FactQuery) ([]models.RubricScore, error) {
	w := newWhere()
	w.timeRange(attemptOccurredAt, q.Start, q.End)
	w.learnerScope(q)

	var builder strings.Builder
	builder.WriteString(`SELECT r.rubric_score_id, r.attempt_id, r.criterion, r.score, r.max_score, r.feedback_text,
        a.student_id, a.case_study_id, s.cohort, ` + attemptOccurredAt + ` AS occurred_at
        FROM rubric_scores r
        JOIN attempts a ON a.attempt_id = r.attempt_id
        JOIN students s ON s.student_id = a.student_id`)
	builder.WriteString(w.String())
	builder.WriteString(" ORDER BY occurred_at, r.rubric_score_id")

	var rows []models.RubricScore
	if err := selectCapped(ctx, r, "rubric_scores", &rows, &builder, w.args); err != nil {
		return nil, err
	}
	return rows, nil
}

// EngagementEvents returns learner interactions ordered by time.
func (r *TelemetryRepository) EngagementEvents(ctx context.Context, q models.FactQuery) ([]models.EngagementEvent, error) {
	w := newWhere()
	w.timeRange("e.occurred_at", q.Start, q.End)
	w.in("e.student_id", q.StudentIDs)
	w.in("s.cohort", q.Cohorts)
	w.in("s.campus", q.Campuses)
	w.in("s.department", q.Departments)

	var builder strings.Builder
	builder.WriteString(`SELECT e.event_id, e.student_id, e.action_type, e.occurred_at, e.session_id, s.cohort
        FROM engagement_logs e
        JOIN students s ON s.student_id = e.student_id`)
	builder.WriteString(w.String())
	builder.WriteString(" ORDER BY e.occurred_at, e.event_id")

	var rows []models.EngagementEvent
	if err := selectCapped(ctx, r, "engagement_logs", &rows, &builder, w.args); err != nil {
		return nil, err
	}
	return rows, nil
}

// EnvironmentMetrics returns device and network captures joined with their attempt score.
func (r *TelemetryRepository) EnvironmentMetrics(ctx context.Context, q models.FactQuery) ([]models.EnvironmentMetric, error) {
	w := newWhere()
	w.timeRange(attemptOccurredAt, q.Start, q.End)
	w.learnerScope(q)
	w.in("m.device_type", q.DeviceTypes)
	w.in("m.network_quality", q.NetworkQualities)

	var builder strings.Builder
	builder.WriteString(`SELECT m.metric_id, m.attempt_id, m.device_type, m.network_quality, m.browser, m.latency_ms,
        a.score AS attempt_score, a.student_id, ` + attemptOccurredAt + ` AS occurred_at
        FROM environment_metrics m
        JOIN attempts a ON a.attempt_id = m.attempt_id
        JOIN students s ON s.student_id = a.student_id`)
	builder.WriteString(w.String())
	builder.WriteString(" ORDER BY occurred_at, m.metric_id")

	var rows []models.EnvironmentMetric
	if err := selectCapped(ctx, r, "environment_metrics", &rows, &builder, w.args); err != nil {
		return nil, err
	}
	return rows, nil
}

// ReliabilityLogs returns API call observations. They carry no learner identity.
func (r *TelemetryRepository) ReliabilityLogs(ctx context.Context, q models.FactQuery) ([]models.ReliabilityLog, error) {
	w := newWhere()
	w.timeRange("occurred_at", q.Start, q.End)
	w.in("api_name", q.APINames)
	w.in("severity", q.Severities)

	var builder strings.Builder
	builder.WriteString("SELECT log_id, api_name, occurred_at, latency_ms, status, severity FROM system_reliability")
	builder.WriteString(w.String())
	builder.WriteString(" ORDER BY occurred_at, log_id")

	var rows []models.ReliabilityLog
	if err := selectCapped(ctx, r, "system_reliability", &rows, &builder, w.args); err != nil {
		return nil, err
	}
	return rows, nil
}

// LatestAggregates returns the newest snapshot per dimension value of a precomputed rollup.
func (r *TelemetryRepository) LatestAggregates(ctx context.Context, q models.AggregateQuery) ([]models.AdminAggregate, error) {
	w := newWhere()
	w.eq("metric_name", q.MetricName)
	w.eq("dimension", string(q.Dimension))
	w.in("dimension_value", q.Values)

	var builder strings.Builder
	builder.WriteString("SELECT DISTINCT ON (dimension_value) aggregate_id, metric_name, dimension, dimension_value, value, computed_at FROM admin_aggregates")
	builder.WriteString(w.String())
	builder.WriteString(" ORDER BY dimension_value, computed_at DESC")

	var rows []models.AdminAggregate
	if err := selectCapped(ctx, r, "admin_aggregates", &rows, &builder, w.args); err != nil {
		return nil, err
	}
	return rows, nil
}

// selectCapped runs the query with LIMIT cap+1 so an oversized result is detected
// without materialising more than one extra row.
func selectCapped[T any](ctx context.Context, r *TelemetryRepository, table string, dest *[]T, builder *strings.Builder, args []interface{}) error {
	args = append(args, r.maxRows+1)
	builder.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	query := builder.String()

	start := time.Now()
	err := r.guard.Do(ctx, func(ctx context.Context) error {
		return r.db.SelectContext(ctx, dest, query, args...)
	})
	if r.observer != nil {
		r.observer.ObserveDBQuery(table, time.Since(start))
	}
	if err != nil {
		return appErrors.Unavailable(fmt.Errorf("query %s: %w", table, err))
	}
	if len(*dest) > r.maxRows {
		*dest = nil
		return appErrors.Clone(appErrors.ErrResultTooLarge,
			fmt.Sprintf("%s read exceeds the %d row limit; narrow the date range or filters", table, r.maxRows))
	}
	return nil
}

type where struct {
	clauses []string
	args    []interface{}
}

func newWhere() *where {
	return &where{}
}

func (w *where) add(clause string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) eq(column, value string) {
	if value == "" {
		return
	}
	w.add(column+" = $%d", value)
}

func (w *where) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	w.add(column+" = ANY($%d)", pq.Array(values))
}

func (w *where) timeRange(column string, start, end time.Time) {
	if !start.IsZero() {
		w.add(column+" >= $%d", start)
	}
	if !end.IsZero() {
		w.add(column+" < $%d", end)
	}
}

func (w *where) learnerScope(q models.FactQuery) {
	w.in("a.student_id", q.StudentIDs)
	w.in("s.cohort", q.Cohorts)
	w.in("s.campus", q.Campuses)
	w.in("s.department", q.Departments)
	w.in("a.case_study_id", q.CaseStudies)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
