package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mind-analytics-api/internal/middleware"
	"github.com/noah-isme/mind-analytics-api/internal/models"
	"github.com/noah-isme/mind-analytics-api/internal/service"
)

// RouterDeps groups what the HTTP surface needs.
type RouterDeps struct {
	APIPrefix string
	Tokens    middleware.TokenValidator
	Metrics   *service.MetricsService
	Analytics *AnalyticsHandler
	Probes    *MetricsHandler
}

// RegisterRoutes mounts the probes and the authenticated analytics group on r.
func RegisterRoutes(r gin.IRouter, deps RouterDeps) {
	r.GET("/health", deps.Probes.Health)
	r.GET("/ready", deps.Probes.Ready)
	r.GET("/metrics", deps.Probes.Prometheus)

	analytics := r.Group(deps.APIPrefix + "/analytics")
	analytics.Use(middleware.JWT(deps.Tokens), middleware.WithResponseMeta())
	analytics.GET("/catalog", deps.Analytics.Catalog)
	analytics.GET("/metrics/:metricId", deps.Analytics.Metric)
	analytics.GET("/metrics/:metricId/export", deps.Analytics.Export)
	analytics.GET("/system",
		middleware.RequireRoles(deps.Metrics, models.RoleDeveloper, models.RoleAdmin),
		deps.Analytics.System)
	analytics.DELETE("/cache",
		middleware.RequireRoles(deps.Metrics, models.RoleAdmin),
		deps.Analytics.InvalidateCache)
}
