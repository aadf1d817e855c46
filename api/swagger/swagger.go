package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Mind Analytics API",
        "description": "Role-gated analytics aggregation over learner and platform telemetry",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Analytics", "description": "Metric catalog, computation and export"},
        {"name": "Operations", "description": "Probes and instrumentation"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Operations"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Operations"],
                "summary": "Readiness check against postgres and the cache backend",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Operations"],
                "summary": "Prometheus exposition",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/analytics/catalog": {
            "get": {
                "tags": ["Analytics"],
                "summary": "List metrics visible to the caller's role",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/analytics/metrics/{metricId}": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Compute one metric under the caller's access scope",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "metricId", "in": "path", "required": true, "type": "string"},
                    {"name": "start_date", "in": "query", "type": "string", "description": "YYYY-MM-DD or RFC3339, inclusive"},
                    {"name": "end_date", "in": "query", "type": "string", "description": "YYYY-MM-DD covers the whole day"},
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "cohort", "in": "query", "type": "string"},
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "campus", "in": "query", "type": "string"},
                    {"name": "case_study", "in": "query", "type": "string"},
                    {"name": "api_name", "in": "query", "type": "string"},
                    {"name": "severity", "in": "query", "type": "string", "enum": ["info", "warning", "critical"]},
                    {"name": "device_type", "in": "query", "type": "string"},
                    {"name": "network_quality", "in": "query", "type": "string", "enum": ["poor", "fair", "good"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Scope exceeds role", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown metric", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Data temporarily unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/analytics/metrics/{metricId}/export": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Download a metric as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "metricId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Attachment"},
                    "400": {"description": "Invalid filter or format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Scope exceeds role", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/analytics/system": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Instrumentation snapshot for developers and administrators",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/analytics/cache": {
            "delete": {
                "tags": ["Analytics"],
                "summary": "Drop cached results for one role or every role",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "role", "in": "query", "type": "string", "enum": ["student", "faculty", "developer", "admin"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SeriesPoint": {
            "type": "object",
            "properties": {
                "timestamp": {"type": "string", "format": "date-time"},
                "value": {"type": "number"}
            }
        },
        "MetricResult": {
            "type": "object",
            "properties": {
                "metric_id": {"type": "string"},
                "kind": {"type": "string", "enum": ["scalar", "series", "table"]},
                "status": {"type": "string", "enum": ["ok", "no_data", "insufficient_data"]},
                "value": {"type": "number"},
                "series": {"type": "array", "items": {"$ref": "#/definitions/SeriesPoint"}},
                "columns": {"type": "array", "items": {"type": "string"}},
                "rows": {"type": "array", "items": {"type": "array", "items": {}}},
                "source": {"type": "string", "enum": ["live", "aggregate"]},
                "generated_at": {"type": "string", "format": "date-time"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "field": {"type": "string"},
                "retryable": {"type": "boolean"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
