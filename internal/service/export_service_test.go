package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
	"github.com/noah-isme/mind-analytics-api/pkg/export"
)

type querierStub struct {
	result *models.MetricResult
	err    error
	calls  int
}

func (q *querierStub) Query(context.Context, models.Principal, string, models.RawFilters) (*models.MetricResult, bool, error) {
	q.calls++
	return q.result, false, q.err
}

func tableFixture() *models.MetricResult {
	return &models.MetricResult{
		MetricID:    MetricCohortHeatmap,
		Kind:        models.KindTable,
		Status:      models.StatusOK,
		Columns:     []string{"cohort", "criterion", "mean_pct"},
		Rows:        [][]interface{}{{"2025A", "analysis", 66.666666}, {"2025B", "analysis", nil}},
		GeneratedAt: testNow,
	}
}

func TestExportServiceRendersCSV(t *testing.T) {
	querier := &querierStub{result: tableFixture()}
	svc := NewExportService(querier, export.NewCSVExporter(), export.NewPDFExporter(), zap.NewNop())

	file, err := svc.Export(context.Background(), models.Principal{Identity: "fac-1", Role: models.RoleFaculty}, MetricCohortHeatmap, models.RawFilters{}, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "cohort_heatmap_20250310T120000Z.csv", file.Filename)

	lines := strings.Split(strings.TrimSpace(string(file.Payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "cohort,criterion,mean_pct", lines[0])
	assert.Equal(t, "2025A,analysis,66.67", lines[1])
	assert.Equal(t, "2025B,analysis,", lines[2])
}

func TestExportServiceRendersPDF(t *testing.T) {
	querier := &querierStub{result: tableFixture()}
	svc := NewExportService(querier, nil, nil, nil)

	file, err := svc.Export(context.Background(), models.Principal{Identity: "root", Role: models.RoleAdmin}, MetricCohortHeatmap, models.RawFilters{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Payload), "%PDF"))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	querier := &querierStub{result: tableFixture()}
	svc := NewExportService(querier, nil, nil, nil)

	_, err := svc.Export(context.Background(), models.Principal{Role: models.RoleAdmin}, MetricCohortHeatmap, models.RawFilters{}, "xlsx")
	requireField(t, err, "format")
	assert.Zero(t, querier.calls)
}

func TestExportServicePropagatesQueryErrors(t *testing.T) {
	querier := &querierStub{err: appErrors.Denied("nope")}
	svc := NewExportService(querier, nil, nil, nil)

	_, err := svc.Export(context.Background(), models.Principal{Role: models.RoleStudent}, MetricCohortHeatmap, models.RawFilters{}, "csv")
	assert.True(t, appErrors.IsAuthorization(err))
}

func TestResultDatasetShapes(t *testing.T) {
	scalar := ResultDataset(&models.MetricResult{MetricID: MetricAvgScore, Kind: models.KindScalar, Status: models.StatusNoData})
	assert.Equal(t, [][]string{{MetricAvgScore, "", "no_data"}}, scalar.Rows)

	series := ResultDataset(&models.MetricResult{Kind: models.KindSeries, Status: models.StatusOK, Series: []models.SeriesPoint{
		{Timestamp: ts("2025-03-01T00:00:00Z"), Value: 12.5},
	}})
	assert.Equal(t, []string{"timestamp", "value"}, series.Headers)
	assert.Equal(t, [][]string{{"2025-03-01T00:00:00Z", "12.5"}}, series.Rows)

	empty := ResultDataset(&models.MetricResult{Kind: models.KindTable, Status: models.StatusNoData, Columns: []string{"api_name"}})
	assert.Equal(t, []string{"api_name"}, empty.Headers)
	assert.Empty(t, empty.Rows)
}
