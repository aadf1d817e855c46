package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func ts(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

type fakeAssignments struct {
	cohorts  map[string][]string
	students map[string]string
	err      error
	calls    int
}

func (f *fakeAssignments) AssignedCohorts(_ context.Context, facultyID string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.cohorts[facultyID], nil
}

func (f *fakeAssignments) StudentCohorts(_ context.Context, ids []string) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string)
	for _, id := range ids {
		if cohort, ok := f.students[id]; ok {
			out[id] = cohort
		}
	}
	return out, nil
}

type fakeDimensions struct {
	known map[models.Dimension][]string
	err   error
	calls int
}

func (f *fakeDimensions) ExistingValues(_ context.Context, dimension models.Dimension, values []string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	known := toSet(f.known[dimension])
	var out []string
	for _, v := range values {
		if _, ok := known[v]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// fakeFacts mimics the schema adapter: it applies the time range and partition filters of the query.
type fakeFacts struct {
	attempts    []models.Attempt
	rubric      []models.RubricScore
	events      []models.EngagementEvent
	environment []models.EnvironmentMetric
	logs        []models.ReliabilityLog
	aggregates  []models.AdminAggregate

	attemptCalls   int
	logCalls       int
	aggregateCalls int
	queries        []models.FactQuery
	err            error
}

func inRange(t time.Time, q models.FactQuery) bool {
	if !q.Start.IsZero() && t.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && !t.Before(q.End) {
		return false
	}
	return true
}

func allowed(value string, set []string) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}

func (f *fakeFacts) Attempts(_ context.Context, q models.FactQuery) ([]models.Attempt, error) {
	f.attemptCalls++
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Attempt
	for _, a := range f.attempts {
		if inRange(a.OccurredAt(), q) && allowed(a.StudentID, q.StudentIDs) && allowed(a.Cohort, q.Cohorts) &&
			allowed(a.Campus, q.Campuses) && allowed(a.Department, q.Departments) && allowed(a.CaseStudyID, q.CaseStudies) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeFacts) RubricScores(_ context.Context, q models.FactQuery) ([]models.RubricScore, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.RubricScore
	for _, r := range f.rubric {
		if inRange(r.OccurredAt, q) && allowed(r.StudentID, q.StudentIDs) && allowed(r.Cohort, q.Cohorts) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeFacts) EngagementEvents(_ context.Context, q models.FactQuery) ([]models.EngagementEvent, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.EngagementEvent
	for _, e := range f.events {
		if inRange(e.OccurredAt, q) && allowed(e.StudentID, q.StudentIDs) && allowed(e.Cohort, q.Cohorts) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeFacts) EnvironmentMetrics(_ context.Context, q models.FactQuery) ([]models.EnvironmentMetric, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.EnvironmentMetric
	for _, m := range f.environment {
		if inRange(m.OccurredAt, q) && allowed(string(m.NetworkQuality), q.NetworkQualities) && allowed(m.DeviceType, q.DeviceTypes) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeFacts) ReliabilityLogs(_ context.Context, q models.FactQuery) ([]models.ReliabilityLog, error) {
	f.logCalls++
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.ReliabilityLog
	for _, l := range f.logs {
		if inRange(l.OccurredAt, q) && allowed(l.APIName, q.APINames) && allowed(string(l.Severity), q.Severities) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeFacts) LatestAggregates(_ context.Context, q models.AggregateQuery) ([]models.AdminAggregate, error) {
	f.aggregateCalls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.AdminAggregate
	for _, a := range f.aggregates {
		if a.MetricName == q.MetricName && a.Dimension == q.Dimension && allowed(a.DimensionValue, q.Values) {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubCacheRepo struct {
	store  map[string][]byte
	getErr error
	setErr error
	sets   int
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	s.store = nil
	return nil
}

func attempt(id, student, cohort string, score float64, at string) models.Attempt {
	completed := ts(at)
	return models.Attempt{
		AttemptID:   id,
		StudentID:   student,
		CaseStudyID: "case-1",
		Score:       score,
		StartedAt:   completed.Add(-30 * time.Minute),
		CompletedAt: &completed,
		Cohort:      cohort,
		Campus:      "north",
		Department:  "nursing",
	}
}

func floatPtr(v float64) *float64 { return &v }
