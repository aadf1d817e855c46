package models

import "time"

// Attempt is one scored submission of a student against a case study,
// enriched with the student's directory dimensions.
type Attempt struct {
	AttemptID       string     `db:"attempt_id" json:"attempt_id"`
	StudentID       string     `db:"student_id" json:"student_id"`
	CaseStudyID     string     `db:"case_study_id" json:"case_study_id"`
	Score           float64    `db:"score" json:"score"`
	StartedAt       time.Time  `db:"started_at" json:"started_at"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	DurationSeconds *float64   `db:"duration_seconds" json:"duration_seconds,omitempty"`
	Cohort          string     `db:"cohort" json:"cohort"`
	Campus          string     `db:"campus" json:"campus"`
	Department      string     `db:"department" json:"department"`
}

// OccurredAt is the attempt's position on the timeline: completion when known, start otherwise.
func (a Attempt) OccurredAt() time.Time {
	if a.CompletedAt != nil && !a.CompletedAt.IsZero() {
		return *a.CompletedAt
	}
	return a.StartedAt
}

// RubricScore is one criterion evaluation of an attempt, joined with the attempt's owner.
type RubricScore struct {
	RubricScoreID string    `db:"rubric_score_id" json:"rubric_score_id"`
	AttemptID     string    `db:"attempt_id" json:"attempt_id"`
	Criterion     string    `db:"criterion" json:"criterion"`
	Score         float64   `db:"score" json:"score"`
	MaxScore      float64   `db:"max_score" json:"max_score"`
	FeedbackText  *string   `db:"feedback_text" json:"feedback_text,omitempty"`
	StudentID     string    `db:"student_id" json:"student_id"`
	CaseStudyID   string    `db:"case_study_id" json:"case_study_id"`
	Cohort        string    `db:"cohort" json:"cohort"`
	OccurredAt    time.Time `db:"occurred_at" json:"occurred_at"`
}

// Percentage normalises the criterion score to 0-100. It returns false for an invalid max_score.
func (r RubricScore) Percentage() (float64, bool) {
	if r.MaxScore <= 0 || r.Score < 0 || r.Score > r.MaxScore {
		return 0, false
	}
	return r.Score / r.MaxScore * 100, true
}

// EngagementEvent is a single learner interaction.
type EngagementEvent struct {
	EventID    string    `db:"event_id" json:"event_id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	ActionType string    `db:"action_type" json:"action_type"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
	SessionID  string    `db:"session_id" json:"session_id"`
	Cohort     string    `db:"cohort" json:"cohort"`
}

// NetworkQuality enumerates the connection quality buckets.
type NetworkQuality string

const (
	NetworkPoor NetworkQuality = "poor"
	NetworkFair NetworkQuality = "fair"
	NetworkGood NetworkQuality = "good"
)

// NetworkQualities lists the buckets in reporting order.
var NetworkQualities = []NetworkQuality{NetworkPoor, NetworkFair, NetworkGood}

// EnvironmentMetric captures the learner's device and network for an attempt,
// joined with the attempt score it is correlated against.
type EnvironmentMetric struct {
	MetricID       string         `db:"metric_id" json:"metric_id"`
	AttemptID      string         `db:"attempt_id" json:"attempt_id"`
	DeviceType     string         `db:"device_type" json:"device_type"`
	NetworkQuality NetworkQuality `db:"network_quality" json:"network_quality"`
	Browser        string         `db:"browser" json:"browser"`
	LatencyMs      *float64       `db:"latency_ms" json:"latency_ms,omitempty"`
	AttemptScore   float64        `db:"attempt_score" json:"attempt_score"`
	StudentID      string         `db:"student_id" json:"student_id"`
	OccurredAt     time.Time      `db:"occurred_at" json:"occurred_at"`
}

// ReliabilityStatus is the outcome of an API call.
type ReliabilityStatus string

const (
	StatusSuccess ReliabilityStatus = "success"
	StatusError   ReliabilityStatus = "error"
)

// Severity classifies reliability log entries.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Severities lists severities in reporting order.
var Severities = []Severity{SeverityInfo, SeverityWarning, SeverityCritical}

// ReliabilityLog is one API call observation; it carries no learner identity.
type ReliabilityLog struct {
	LogID      string            `db:"log_id" json:"log_id"`
	APIName    string            `db:"api_name" json:"api_name"`
	OccurredAt time.Time         `db:"occurred_at" json:"occurred_at"`
	LatencyMs  float64           `db:"latency_ms" json:"latency_ms"`
	Status     ReliabilityStatus `db:"status" json:"status"`
	Severity   Severity          `db:"severity" json:"severity"`
}

// AdminAggregate is a precomputed platform rollup.
type AdminAggregate struct {
	AggregateID    string    `db:"aggregate_id" json:"aggregate_id"`
	MetricName     string    `db:"metric_name" json:"metric_name"`
	Dimension      Dimension `db:"dimension" json:"dimension"`
	DimensionValue string    `db:"dimension_value" json:"dimension_value"`
	Value          float64   `db:"value" json:"value"`
	ComputedAt     time.Time `db:"computed_at" json:"computed_at"`
}

// Dimension names a directory grouping used by filters and aggregates.
type Dimension string

const (
	DimensionCohort     Dimension = "cohort"
	DimensionCampus     Dimension = "campus"
	DimensionDepartment Dimension = "department"
	DimensionCaseStudy  Dimension = "case_study"
	DimensionAPI        Dimension = "api_name"
	DimensionStudent    Dimension = "student_id"
)

// FactQuery scopes a read against one raw table. Empty slices mean no restriction.
type FactQuery struct {
	Start            time.Time
	End              time.Time
	StudentIDs       []string
	Cohorts          []string
	Campuses         []string
	Departments      []string
	CaseStudies      []string
	APINames         []string
	Severities       []string
	DeviceTypes      []string
	NetworkQualities []string
}

// AggregateQuery selects admin_aggregates rows.
type AggregateQuery struct {
	MetricName string
	Dimension  Dimension
	Values     []string
}
