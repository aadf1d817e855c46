package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
	"github.com/noah-isme/mind-analytics-api/pkg/export"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type metricQuerier interface {
	Query(ctx context.Context, principal models.Principal, metricID string, raw models.RawFilters) (*models.MetricResult, bool, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders metric results as CSV or PDF downloads through the same query pipeline.
type ExportService struct {
	queries metricQuerier
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(queries metricQuerier, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{queries: queries, csv: csv, pdf: pdf, logger: logger}
}

// Export runs the metric query for the caller and renders the result in format.
func (s *ExportService) Export(ctx context.Context, principal models.Principal, metricID string, raw models.RawFilters, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Invalid("format", "format must be one of: csv, pdf")
	}

	result, _, err := s.queries.Query(ctx, principal, metricID, raw)
	if err != nil {
		return nil, err
	}
	dataset := ResultDataset(result)

	var payload []byte
	contentType := "text/csv"
	switch format {
	case FormatPDF:
		contentType = "application/pdf"
		payload, err = s.pdf.Render(dataset, metricID)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		s.logger.Error("render export failed", zap.String("metric", metricID), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("%s_%s.%s", metricID, result.GeneratedAt.UTC().Format("20060102T150405Z"), format)
	return &ExportFile{Filename: filename, ContentType: contentType, Payload: payload}, nil
}

// ResultDataset flattens any result kind into a table. Missing values render as empty cells.
func ResultDataset(result *models.MetricResult) export.Dataset {
	switch result.Kind {
	case models.KindScalar:
		var value interface{}
		if result.Value != nil {
			value = *result.Value
		}
		return export.Dataset{
			Headers: []string{"metric_id", "value", "status"},
			Rows:    [][]string{{result.MetricID, formatCell(value), string(result.Status)}},
		}
	case models.KindSeries:
		rows := make([][]string, 0, len(result.Series))
		for _, p := range result.Series {
			rows = append(rows, []string{p.Timestamp.UTC().Format(time.RFC3339), formatCell(p.Value)})
		}
		return export.Dataset{Headers: []string{"timestamp", "value"}, Rows: rows}
	default:
		rows := make([][]string, 0, len(result.Rows))
		for _, row := range result.Rows {
			cells := make([]string, len(result.Columns))
			for i := range cells {
				if i < len(row) {
					cells[i] = formatCell(row[i])
				}
			}
			rows = append(rows, cells)
		}
		headers := result.Columns
		if len(headers) == 0 {
			headers = []string{"status"}
			rows = [][]string{{string(result.Status)}}
		}
		return export.Dataset{Headers: headers, Rows: rows}
	}
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(math.Round(val*100)/100, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
