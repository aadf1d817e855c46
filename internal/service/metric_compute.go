package service

import (
	"math"
	"sort"
	"time"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	"github.com/noah-isme/mind-analytics-api/pkg/stats"
)

// AtRiskRule is the joint low-score/low-activity classification. Both conditions must hold.
type AtRiskRule struct {
	ScoreThreshold float64
	MinAttempts    int
	WindowDays     int
}

// ReliabilityWeights blends error rate and latency into the reliability index.
type ReliabilityWeights struct {
	Error           float64
	Latency         float64
	LatencyTargetMs float64
}

func scalarResult(v float64) *models.MetricResult {
	return &models.MetricResult{Kind: models.KindScalar, Status: models.StatusOK, Value: &v}
}

func statusResult(kind models.ResultKind, status models.ResultStatus) *models.MetricResult {
	return &models.MetricResult{Kind: kind, Status: status}
}

func tableResult(columns []string, rows [][]interface{}) *models.MetricResult {
	status := models.StatusOK
	if len(rows) == 0 {
		status = models.StatusNoData
		rows = nil
	}
	return &models.MetricResult{Kind: models.KindTable, Status: status, Columns: columns, Rows: rows}
}

func seriesResult(points []models.SeriesPoint) *models.MetricResult {
	if len(points) == 0 {
		return statusResult(models.KindSeries, models.StatusNoData)
	}
	return &models.MetricResult{Kind: models.KindSeries, Status: models.StatusOK, Series: points}
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// optional renders a mean as a table cell: nil when there was nothing to average.
func optional(v float64, ok bool) interface{} {
	if !ok {
		return nil
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// chronological orders attempts by occurrence, breaking ties by id so the split is stable.
func chronological(attempts []models.Attempt) []models.Attempt {
	ordered := append([]models.Attempt(nil), attempts...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ti, tj := ordered[i].OccurredAt(), ordered[j].OccurredAt()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ordered[i].AttemptID < ordered[j].AttemptID
	})
	return ordered
}

func scores(attempts []models.Attempt) []float64 {
	values := make([]float64, len(attempts))
	for i, a := range attempts {
		values[i] = a.Score
	}
	return values
}

func attemptDuration(a models.Attempt) (float64, bool) {
	if a.DurationSeconds != nil {
		return *a.DurationSeconds, true
	}
	if a.CompletedAt != nil && a.CompletedAt.After(a.StartedAt) {
		return a.CompletedAt.Sub(a.StartedAt).Seconds(), true
	}
	return 0, false
}

func computeAvgScore(attempts []models.Attempt) *models.MetricResult {
	mean, ok := stats.Mean(scores(attempts))
	if !ok {
		return statusResult(models.KindScalar, models.StatusNoData)
	}
	return scalarResult(mean)
}

// computeImprovement splits the time-ordered attempts at the median timestamp: the later half mean
// minus the earlier half mean. With an odd count the middle attempt belongs to the later half.
// Attempts sharing a timestamp are never separated; a tie at the split moves it forward, or backward
// when forward would empty the later half.
func computeImprovement(attempts []models.Attempt) *models.MetricResult {
	switch len(attempts) {
	case 0:
		return statusResult(models.KindScalar, models.StatusNoData)
	case 1:
		return statusResult(models.KindScalar, models.StatusInsufficientData)
	}
	ordered := chronological(attempts)
	split, ok := medianSplit(ordered)
	if !ok {
		return statusResult(models.KindScalar, models.StatusInsufficientData)
	}
	earlier, _ := stats.Mean(scores(ordered[:split]))
	recent, _ := stats.Mean(scores(ordered[split:]))
	return scalarResult(recent - earlier)
}

// medianSplit returns the index dividing ordered into two non-empty halves without splitting a
// group of equal timestamps. It returns false when every attempt shares one timestamp.
func medianSplit(ordered []models.Attempt) (int, bool) {
	n := len(ordered)
	tied := func(i int) bool { return ordered[i-1].OccurredAt().Equal(ordered[i].OccurredAt()) }

	split := n / 2
	for split < n && tied(split) {
		split++
	}
	if split < n {
		return split, true
	}
	split = n / 2
	for split > 0 && tied(split) {
		split--
	}
	return split, split > 0
}

func computeAvgDuration(attempts []models.Attempt) *models.MetricResult {
	var durations []float64
	for _, a := range attempts {
		if d, ok := attemptDuration(a); ok {
			durations = append(durations, d)
		}
	}
	mean, ok := stats.Mean(durations)
	if !ok {
		return statusResult(models.KindScalar, models.StatusNoData)
	}
	return scalarResult(mean)
}

func computeTotalAttempts(attempts []models.Attempt) *models.MetricResult {
	if len(attempts) == 0 {
		return statusResult(models.KindScalar, models.StatusNoData)
	}
	return scalarResult(float64(len(attempts)))
}

func computeActiveStudents(attempts []models.Attempt) *models.MetricResult {
	students := make(map[string]struct{})
	for _, a := range attempts {
		students[a.StudentID] = struct{}{}
	}
	if len(students) == 0 {
		return statusResult(models.KindScalar, models.StatusNoData)
	}
	return scalarResult(float64(len(students)))
}

// computeScoreTrend emits one point per day that has attempts; empty days are not filled.
func computeScoreTrend(attempts []models.Attempt) *models.MetricResult {
	byDay := make(map[time.Time][]float64)
	for _, a := range attempts {
		d := day(a.OccurredAt())
		byDay[d] = append(byDay[d], a.Score)
	}
	points := make([]models.SeriesPoint, 0, len(byDay))
	for d, values := range byDay {
		mean, _ := stats.Mean(values)
		points = append(points, models.SeriesPoint{Timestamp: d, Value: mean})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return seriesResult(points)
}

func computeAttemptHistory(attempts []models.Attempt) *models.MetricResult {
	columns := []string{"attempt_id", "student_id", "case_study_id", "score", "duration_seconds", "occurred_at"}
	rows := make([][]interface{}, 0, len(attempts))
	for _, a := range chronological(attempts) {
		d, ok := attemptDuration(a)
		rows = append(rows, []interface{}{
			a.AttemptID, a.StudentID, a.CaseStudyID, a.Score, optional(d, ok),
			a.OccurredAt().UTC().Format(time.RFC3339),
		})
	}
	return tableResult(columns, rows)
}

func computeCaseStudySummary(attempts []models.Attempt) *models.MetricResult {
	type bucket struct {
		scores    []float64
		durations []float64
		students  map[string]struct{}
	}
	cases := make(map[string]*bucket)
	for _, a := range attempts {
		b, ok := cases[a.CaseStudyID]
		if !ok {
			b = &bucket{students: make(map[string]struct{})}
			cases[a.CaseStudyID] = b
		}
		b.scores = append(b.scores, a.Score)
		b.students[a.StudentID] = struct{}{}
		if d, ok := attemptDuration(a); ok {
			b.durations = append(b.durations, d)
		}
	}

	columns := []string{"case_study_id", "attempts", "students", "mean_score", "mean_duration_seconds"}
	rows := make([][]interface{}, 0, len(cases))
	for _, id := range sortedKeys(cases) {
		b := cases[id]
		mean, _ := stats.Mean(b.scores)
		rows = append(rows, []interface{}{
			id, float64(len(b.scores)), float64(len(b.students)), mean, optional(stats.Mean(b.durations)),
		})
	}
	return tableResult(columns, rows)
}

// computeAtRisk flags students whose mean score is below the threshold AND whose attempt count in the
// trailing window [end - WindowDays, end) is below the minimum. A student who is only one of
// low-scoring or low-activity is not at risk. With attempts present but nobody flagged the table is
// empty with status ok.
func computeAtRisk(attempts []models.Attempt, end time.Time, rule AtRiskRule) *models.MetricResult {
	columns := []string{"student_id", "cohort", "mean_score", "attempts_in_window", "total_attempts"}
	if len(attempts) == 0 {
		return &models.MetricResult{Kind: models.KindTable, Status: models.StatusNoData, Columns: columns}
	}

	windowStart := end.AddDate(0, 0, -rule.WindowDays)
	type student struct {
		cohort   string
		scores   []float64
		inWindow int
	}
	students := make(map[string]*student)
	for _, a := range attempts {
		s, ok := students[a.StudentID]
		if !ok {
			s = &student{cohort: a.Cohort}
			students[a.StudentID] = s
		}
		s.scores = append(s.scores, a.Score)
		at := a.OccurredAt()
		if !at.Before(windowStart) && at.Before(end) {
			s.inWindow++
		}
	}

	var rows [][]interface{}
	for _, id := range sortedKeys(students) {
		s := students[id]
		mean, _ := stats.Mean(s.scores)
		if mean < rule.ScoreThreshold && s.inWindow < rule.MinAttempts {
			rows = append(rows, []interface{}{id, s.cohort, mean, float64(s.inWindow), float64(len(s.scores))})
		}
	}
	return &models.MetricResult{Kind: models.KindTable, Status: models.StatusOK, Columns: columns, Rows: rows}
}

// computeDimensionSummary groups attempts live by a directory dimension.
func computeDimensionSummary(attempts []models.Attempt, column string, key func(models.Attempt) string) *models.MetricResult {
	type bucket struct {
		scores   []float64
		students map[string]struct{}
	}
	groups := make(map[string]*bucket)
	for _, a := range attempts {
		k := key(a)
		b, ok := groups[k]
		if !ok {
			b = &bucket{students: make(map[string]struct{})}
			groups[k] = b
		}
		b.scores = append(b.scores, a.Score)
		b.students[a.StudentID] = struct{}{}
	}

	rows := make([][]interface{}, 0, len(groups))
	for _, k := range sortedKeys(groups) {
		b := groups[k]
		mean, _ := stats.Mean(b.scores)
		rows = append(rows, []interface{}{k, mean, float64(len(b.students))})
	}
	return tableResult([]string{column, "mean_score", "active_students"}, rows)
}

// aggregateSummary builds the same table from precomputed snapshots keyed by dimension value.
func aggregateSummary(column string, means, students []models.AdminAggregate) *models.MetricResult {
	counts := make(map[string]float64, len(students))
	for _, agg := range students {
		counts[agg.DimensionValue] = agg.Value
	}
	sorted := append([]models.AdminAggregate(nil), means...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DimensionValue < sorted[j].DimensionValue })

	rows := make([][]interface{}, 0, len(sorted))
	for _, agg := range sorted {
		var active interface{}
		if c, ok := counts[agg.DimensionValue]; ok {
			active = c
		}
		rows = append(rows, []interface{}{agg.DimensionValue, agg.Value, active})
	}
	return tableResult([]string{column, "mean_score", "active_students"}, rows)
}

func computeRubricMastery(scores []models.RubricScore) *models.MetricResult {
	criteria := make(map[string][]float64)
	for _, s := range scores {
		if pct, ok := s.Percentage(); ok {
			criteria[s.Criterion] = append(criteria[s.Criterion], pct)
		}
	}
	rows := make([][]interface{}, 0, len(criteria))
	for _, c := range sortedKeys(criteria) {
		mean, _ := stats.Mean(criteria[c])
		rows = append(rows, []interface{}{c, mean, float64(len(criteria[c]))})
	}
	return tableResult([]string{"criterion", "mean_percentage", "samples"}, rows)
}

// computeCohortHeatmap averages criterion percentages per cohort x criterion.
// A cell without observations is nil, never zero.
func computeCohortHeatmap(scores []models.RubricScore) *models.MetricResult {
	cells := make(map[string]map[string][]float64)
	criteriaSet := make(map[string]struct{})
	for _, s := range scores {
		pct, ok := s.Percentage()
		if !ok {
			continue
		}
		row, exists := cells[s.Cohort]
		if !exists {
			row = make(map[string][]float64)
			cells[s.Cohort] = row
		}
		row[s.Criterion] = append(row[s.Criterion], pct)
		criteriaSet[s.Criterion] = struct{}{}
	}

	criteria := sortedKeys(criteriaSet)
	columns := append([]string{"cohort"}, criteria...)
	rows := make([][]interface{}, 0, len(cells))
	for _, cohort := range sortedKeys(cells) {
		row := make([]interface{}, 0, len(columns))
		row = append(row, cohort)
		for _, c := range criteria {
			row = append(row, optional(stats.Mean(cells[cohort][c])))
		}
		rows = append(rows, row)
	}
	return tableResult(columns, rows)
}

func computeEngagementByAction(events []models.EngagementEvent) *models.MetricResult {
	type bucket struct {
		events   int
		students map[string]struct{}
		sessions map[string]struct{}
	}
	actions := make(map[string]*bucket)
	for _, e := range events {
		b, ok := actions[e.ActionType]
		if !ok {
			b = &bucket{students: make(map[string]struct{}), sessions: make(map[string]struct{})}
			actions[e.ActionType] = b
		}
		b.events++
		b.students[e.StudentID] = struct{}{}
		if e.SessionID != "" {
			b.sessions[e.SessionID] = struct{}{}
		}
	}

	keys := sortedKeys(actions)
	sort.SliceStable(keys, func(i, j int) bool { return actions[keys[i]].events > actions[keys[j]].events })
	rows := make([][]interface{}, 0, len(keys))
	for _, k := range keys {
		b := actions[k]
		rows = append(rows, []interface{}{k, float64(b.events), float64(len(b.students)), float64(len(b.sessions))})
	}
	return tableResult([]string{"action_type", "events", "students", "sessions"}, rows)
}

func computeDailyEngagement(events []models.EngagementEvent) *models.MetricResult {
	counts := make(map[time.Time]int)
	for _, e := range events {
		counts[day(e.OccurredAt)]++
	}
	points := make([]models.SeriesPoint, 0, len(counts))
	for d, n := range counts {
		points = append(points, models.SeriesPoint{Timestamp: d, Value: float64(n)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return seriesResult(points)
}

func groupLogsByAPI(logs []models.ReliabilityLog) map[string][]models.ReliabilityLog {
	groups := make(map[string][]models.ReliabilityLog)
	for _, l := range logs {
		groups[l.APIName] = append(groups[l.APIName], l)
	}
	return groups
}

func latencies(logs []models.ReliabilityLog) []float64 {
	values := make([]float64, len(logs))
	for i, l := range logs {
		values[i] = l.LatencyMs
	}
	return values
}

func errorCount(logs []models.ReliabilityLog) int {
	errs := 0
	for _, l := range logs {
		if l.Status == models.StatusError {
			errs++
		}
	}
	return errs
}

func errorRate(logs []models.ReliabilityLog) float64 {
	if len(logs) == 0 {
		return 0
	}
	return float64(errorCount(logs)) / float64(len(logs))
}

func computeLatencyPercentiles(logs []models.ReliabilityLog) *models.MetricResult {
	groups := groupLogsByAPI(logs)
	rows := make([][]interface{}, 0, len(groups))
	for _, api := range sortedKeys(groups) {
		ps, _ := stats.Percentiles(latencies(groups[api]), 50, 95)
		rows = append(rows, []interface{}{api, float64(len(groups[api])), ps[0], ps[1]})
	}
	return tableResult([]string{"api_name", "samples", "p50_ms", "p95_ms"}, rows)
}

// ReliabilityIndex blends availability and latency into [0, 100]:
// 100 * (wE*(1-errorRate) + wL*min(1, target/p95)) / (wE + wL).
func ReliabilityIndex(errorRate, p95 float64, w ReliabilityWeights) float64 {
	latencyScore := 1.0
	if p95 > 0 && w.LatencyTargetMs > 0 {
		latencyScore = math.Min(1, w.LatencyTargetMs/p95)
	}
	total := w.Error + w.Latency
	if total <= 0 {
		return 0
	}
	index := 100 * (w.Error*(1-errorRate) + w.Latency*latencyScore) / total
	return math.Max(0, math.Min(100, index))
}

func computeReliabilityTable(logs []models.ReliabilityLog, w ReliabilityWeights) *models.MetricResult {
	groups := groupLogsByAPI(logs)
	rows := make([][]interface{}, 0, len(groups))
	for _, api := range sortedKeys(groups) {
		group := groups[api]
		rate := errorRate(group)
		p95, _ := stats.Percentile(latencies(group), 95)
		rows = append(rows, []interface{}{api, float64(len(group)), rate, p95, ReliabilityIndex(rate, p95, w)})
	}
	return tableResult([]string{"api_name", "requests", "error_rate", "p95_ms", "reliability_index"}, rows)
}

func computeSystemReliability(logs []models.ReliabilityLog, w ReliabilityWeights) *models.MetricResult {
	p95, ok := stats.Percentile(latencies(logs), 95)
	if !ok {
		return statusResult(models.KindScalar, models.StatusNoData)
	}
	return scalarResult(ReliabilityIndex(errorRate(logs), p95, w))
}

func computeErrorRateBySeverity(logs []models.ReliabilityLog) *models.MetricResult {
	groups := make(map[models.Severity][]models.ReliabilityLog)
	for _, l := range logs {
		groups[l.Severity] = append(groups[l.Severity], l)
	}
	rows := make([][]interface{}, 0, len(groups))
	for _, sev := range models.Severities {
		group, ok := groups[sev]
		if !ok {
			continue
		}
		rows = append(rows, []interface{}{string(sev), float64(len(group)), float64(errorCount(group)), errorRate(group)})
	}
	return tableResult([]string{"severity", "requests", "errors", "error_rate"}, rows)
}

func computeLatencyTrend(logs []models.ReliabilityLog) *models.MetricResult {
	byDay := make(map[time.Time][]float64)
	for _, l := range logs {
		d := day(l.OccurredAt)
		byDay[d] = append(byDay[d], l.LatencyMs)
	}
	points := make([]models.SeriesPoint, 0, len(byDay))
	for d, values := range byDay {
		p95, _ := stats.Percentile(values, 95)
		points = append(points, models.SeriesPoint{Timestamp: d, Value: p95})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return seriesResult(points)
}

// computeEnvironmentImpact joins environment captures to their attempt score and groups by
// network quality. Each attempt counts once per category. Categories under lowSample are flagged.
func computeEnvironmentImpact(metrics []models.EnvironmentMetric, categories []models.NetworkQuality, lowSample int) *models.MetricResult {
	columns := []string{"network_quality", "mean_score", "samples", "low_sample"}
	seen := make(map[string]struct{})
	groups := make(map[models.NetworkQuality][]float64)
	for _, m := range metrics {
		key := m.AttemptID + "|" + string(m.NetworkQuality)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		groups[m.NetworkQuality] = append(groups[m.NetworkQuality], m.AttemptScore)
	}
	if len(groups) == 0 {
		return &models.MetricResult{Kind: models.KindTable, Status: models.StatusNoData, Columns: columns}
	}

	rows := make([][]interface{}, 0, len(categories))
	for _, q := range categories {
		values := groups[q]
		rows = append(rows, []interface{}{string(q), optional(stats.Mean(values)), float64(len(values)), len(values) < lowSample})
	}
	return tableResult(columns, rows)
}

func computeDeviceDistribution(metrics []models.EnvironmentMetric) *models.MetricResult {
	type bucket struct {
		samples   int
		latencies []float64
		scores    []float64
	}
	devices := make(map[string]*bucket)
	for _, m := range metrics {
		b, ok := devices[m.DeviceType]
		if !ok {
			b = &bucket{}
			devices[m.DeviceType] = b
		}
		b.samples++
		b.scores = append(b.scores, m.AttemptScore)
		if m.LatencyMs != nil {
			b.latencies = append(b.latencies, *m.LatencyMs)
		}
	}
	rows := make([][]interface{}, 0, len(devices))
	for _, d := range sortedKeys(devices) {
		b := devices[d]
		meanScore, _ := stats.Mean(b.scores)
		rows = append(rows, []interface{}{d, float64(b.samples), optional(stats.Mean(b.latencies)), meanScore})
	}
	return tableResult([]string{"device_type", "samples", "mean_latency_ms", "mean_score"}, rows)
}

const (
	reliabilityLogLimit    = 1000
	criticalIncidentsLimit = 200
)

// computeCaseImprovement compares each student's first and second attempt on a case study.
// The improvement mean only counts students with both attempts.
func computeCaseImprovement(attempts []models.Attempt) *models.MetricResult {
	perCase := make(map[string]map[string][]models.Attempt)
	for _, a := range chronological(attempts) {
		students, ok := perCase[a.CaseStudyID]
		if !ok {
			students = make(map[string][]models.Attempt)
			perCase[a.CaseStudyID] = students
		}
		students[a.StudentID] = append(students[a.StudentID], a)
	}

	columns := []string{"case_study_id", "students", "mean_first_score", "mean_second_score", "mean_improvement"}
	rows := make([][]interface{}, 0, len(perCase))
	for _, id := range sortedKeys(perCase) {
		var first, second, deltas []float64
		for _, history := range perCase[id] {
			first = append(first, history[0].Score)
			if len(history) > 1 {
				second = append(second, history[1].Score)
				deltas = append(deltas, history[1].Score-history[0].Score)
			}
		}
		firstMean, _ := stats.Mean(first)
		rows = append(rows, []interface{}{
			id, float64(len(first)), firstMean, optional(stats.Mean(second)), optional(stats.Mean(deltas)),
		})
	}
	return tableResult(columns, rows)
}

// computeStudentPerformance summarises each student, best mean score first.
func computeStudentPerformance(attempts []models.Attempt) *models.MetricResult {
	type summary struct {
		cohort, department, campus string
		cases                      map[string]struct{}
		scores                     []float64
		seconds                    float64
	}
	students := make(map[string]*summary)
	for _, a := range attempts {
		s, ok := students[a.StudentID]
		if !ok {
			s = &summary{cohort: a.Cohort, department: a.Department, campus: a.Campus, cases: make(map[string]struct{})}
			students[a.StudentID] = s
		}
		s.cases[a.CaseStudyID] = struct{}{}
		s.scores = append(s.scores, a.Score)
		if d, ok := attemptDuration(a); ok {
			s.seconds += d
		}
	}

	ids := sortedKeys(students)
	means := make(map[string]float64, len(ids))
	for _, id := range ids {
		means[id], _ = stats.Mean(students[id].scores)
	}
	sort.SliceStable(ids, func(i, j int) bool { return means[ids[i]] > means[ids[j]] })

	columns := []string{"student_id", "cohort", "department", "campus", "cases_attempted", "attempts",
		"mean_score", "min_score", "max_score", "total_hours"}
	rows := make([][]interface{}, 0, len(ids))
	for _, id := range ids {
		s := students[id]
		lowest, highest := s.scores[0], s.scores[0]
		for _, v := range s.scores[1:] {
			lowest = math.Min(lowest, v)
			highest = math.Max(highest, v)
		}
		rows = append(rows, []interface{}{
			id, s.cohort, s.department, s.campus, float64(len(s.cases)), float64(len(s.scores)),
			means[id], lowest, highest, s.seconds / 3600,
		})
	}
	return tableResult(columns, rows)
}

// computeLearningHoursTrend sums known attempt durations per day, in hours.
// Days where no attempt has a duration are omitted.
func computeLearningHoursTrend(attempts []models.Attempt) *models.MetricResult {
	byDay := make(map[time.Time]float64)
	for _, a := range attempts {
		if d, ok := attemptDuration(a); ok {
			byDay[day(a.OccurredAt())] += d
		}
	}
	points := make([]models.SeriesPoint, 0, len(byDay))
	for d, seconds := range byDay {
		points = append(points, models.SeriesPoint{Timestamp: d, Value: seconds / 3600})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return seriesResult(points)
}

// computeCohortDistribution counts distinct students with attempts per cohort, largest first.
func computeCohortDistribution(attempts []models.Attempt) *models.MetricResult {
	cohorts := make(map[string]map[string]struct{})
	for _, a := range attempts {
		if a.Cohort == "" {
			continue
		}
		students, ok := cohorts[a.Cohort]
		if !ok {
			students = make(map[string]struct{})
			cohorts[a.Cohort] = students
		}
		students[a.StudentID] = struct{}{}
	}
	keys := sortedKeys(cohorts)
	sort.SliceStable(keys, func(i, j int) bool { return len(cohorts[keys[i]]) > len(cohorts[keys[j]]) })

	rows := make([][]interface{}, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []interface{}{k, float64(len(cohorts[k]))})
	}
	return tableResult([]string{"cohort", "students"}, rows)
}

func computeDailyActiveStudents(events []models.EngagementEvent) *models.MetricResult {
	byDay := make(map[time.Time]map[string]struct{})
	for _, e := range events {
		d := day(e.OccurredAt)
		students, ok := byDay[d]
		if !ok {
			students = make(map[string]struct{})
			byDay[d] = students
		}
		students[e.StudentID] = struct{}{}
	}
	points := make([]models.SeriesPoint, 0, len(byDay))
	for d, students := range byDay {
		points = append(points, models.SeriesPoint{Timestamp: d, Value: float64(len(students))})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return seriesResult(points)
}

// computeReliabilityLog lists observations newest first, keeping at most limit rows.
// A non-empty severity restricts the listing to that severity.
func computeReliabilityLog(logs []models.ReliabilityLog, severity models.Severity, limit int) *models.MetricResult {
	var selected []models.ReliabilityLog
	for _, l := range logs {
		if severity == "" || l.Severity == severity {
			selected = append(selected, l)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if !selected[i].OccurredAt.Equal(selected[j].OccurredAt) {
			return selected[i].OccurredAt.After(selected[j].OccurredAt)
		}
		return selected[i].LogID < selected[j].LogID
	})
	if len(selected) > limit {
		selected = selected[:limit]
	}

	rows := make([][]interface{}, 0, len(selected))
	for _, l := range selected {
		rows = append(rows, []interface{}{
			l.OccurredAt.UTC().Format(time.RFC3339), l.APIName, l.LatencyMs, string(l.Status), string(l.Severity),
		})
	}
	return tableResult([]string{"occurred_at", "api_name", "latency_ms", "status", "severity"}, rows)
}
