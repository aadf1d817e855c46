package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mind-analytics-api/internal/middleware"
	"github.com/noah-isme/mind-analytics-api/internal/models"
	"github.com/noah-isme/mind-analytics-api/internal/service"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
	"github.com/noah-isme/mind-analytics-api/pkg/response"
)

type analyticsQueries interface {
	Query(ctx context.Context, principal models.Principal, metricID string, raw models.RawFilters) (*models.MetricResult, bool, error)
	Catalog(principal models.Principal) []models.MetricDefinition
	Invalidate(ctx context.Context, role models.Role) error
}

type analyticsExporter interface {
	Export(ctx context.Context, principal models.Principal, metricID string, raw models.RawFilters, format string) (*service.ExportFile, error)
}

type systemSnapshotter interface {
	Snapshot() models.SystemMetrics
}

// AnalyticsHandler exposes the role-gated metric endpoints.
type AnalyticsHandler struct {
	queries  analyticsQueries
	exporter analyticsExporter
	system   systemSnapshotter
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(queries analyticsQueries, exporter analyticsExporter, system systemSnapshotter) *AnalyticsHandler {
	return &AnalyticsHandler{queries: queries, exporter: exporter, system: system}
}

// Catalog godoc
// @Summary List metrics visible to the caller
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /analytics/catalog [get]
func (h *AnalyticsHandler) Catalog(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, h.queries.Catalog(principal))
}

// Metric godoc
// @Summary Compute one metric under the caller's access scope
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param metricId path string true "Metric identifier"
// @Param start_date query string false "Inclusive start (YYYY-MM-DD or RFC3339)"
// @Param end_date query string false "End date; a date-only value covers the whole day"
// @Param student_id query string false "Comma separated student ids"
// @Param cohort query string false "Comma separated cohorts"
// @Param department query string false "Comma separated departments"
// @Param campus query string false "Comma separated campuses"
// @Param case_study query string false "Comma separated case study ids"
// @Param api_name query string false "Comma separated API names"
// @Param severity query string false "info, warning, critical"
// @Param device_type query string false "Comma separated device types"
// @Param network_quality query string false "poor, fair, good"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /analytics/metrics/{metricId} [get]
func (h *AnalyticsHandler) Metric(c *gin.Context) {
	principal, raw, ok := h.bind(c)
	if !ok {
		return
	}
	result, hit, err := h.queries.Query(c.Request.Context(), principal, c.Param("metricId"), raw)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download a metric as CSV or PDF
// @Tags Analytics
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param metricId path string true "Metric identifier"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /analytics/metrics/{metricId}/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	principal, raw, ok := h.bind(c)
	if !ok {
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), principal, c.Param("metricId"), raw, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

// System godoc
// @Summary Instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.system.Snapshot(), middleware.ExtractMeta(c))
}

// InvalidateCache godoc
// @Summary Drop cached results for one role or all roles
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param role query string false "student, faculty, developer or admin"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /analytics/cache [delete]
func (h *AnalyticsHandler) InvalidateCache(c *gin.Context) {
	var role models.Role
	if raw := c.Query("role"); raw != "" {
		parsed, ok := models.ParseRole(raw)
		if !ok {
			response.Error(c, appErrors.Invalid("role", "role must be one of: student, faculty, developer, admin"))
			return
		}
		role = parsed
	}
	if err := h.queries.Invalidate(c.Request.Context(), role); err != nil {
		response.Error(c, appErrors.Unavailable(err))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"invalidated": true, "role": role})
}

func (h *AnalyticsHandler) bind(c *gin.Context) (models.Principal, models.RawFilters, bool) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Principal{}, models.RawFilters{}, false
	}
	var raw models.RawFilters
	if err := c.ShouldBindQuery(&raw); err != nil {
		response.Error(c, appErrors.Invalid("query", "malformed query string"))
		return models.Principal{}, models.RawFilters{}, false
	}
	return principal, raw, true
}
