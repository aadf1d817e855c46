package models

import "time"

// ResultKind distinguishes the shapes a metric can take.
type ResultKind string

const (
	KindScalar ResultKind = "scalar"
	KindSeries ResultKind = "series"
	KindTable  ResultKind = "table"
)

// ResultStatus separates a real answer from an unknown one.
type ResultStatus string

const (
	StatusOK               ResultStatus = "ok"
	StatusNoData           ResultStatus = "no_data"
	StatusInsufficientData ResultStatus = "insufficient_data"
)

// SeriesPoint is one observation of a trend series.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricResult is a fully materialised answer to one metric query.
// Table cells hold strings, float64 numbers, booleans, or nil for "no data".
type MetricResult struct {
	MetricID    string          `json:"metric_id"`
	Kind        ResultKind      `json:"kind"`
	Status      ResultStatus    `json:"status"`
	Value       *float64        `json:"value,omitempty"`
	Series      []SeriesPoint   `json:"series,omitempty"`
	Columns     []string        `json:"columns,omitempty"`
	Rows        [][]interface{} `json:"rows,omitempty"`
	Source      string          `json:"source,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// HasData reports whether the result carries an answer.
func (r MetricResult) HasData() bool {
	return r.Status == StatusOK
}

// MetricDefinition describes one entry of the metric catalog.
type MetricDefinition struct {
	ID          string     `json:"id"`
	Kind        ResultKind `json:"kind"`
	Entity      EntityKind `json:"entity"`
	Roles       []Role     `json:"-"`
	Description string     `json:"description"`
}

// AllowedFor reports whether the role may request the metric.
func (d MetricDefinition) AllowedFor(role Role) bool {
	for _, r := range d.Roles {
		if r == role {
			return true
		}
	}
	return false
}
