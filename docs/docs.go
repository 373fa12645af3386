// Package docs holds the OpenAPI document served under /swagger.
// Regenerate with: swag init -g cmd/monitoring-service/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/setup": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["monitoring"],
                "summary": "Create or replace a monitoring config",
                "parameters": [
                    {
                        "description": "Monitoring setup",
                        "name": "config",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/monitoring.SetupRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/monitoring.MonitoringConfig"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/check/{keyword}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["monitoring"],
                "summary": "Run one monitoring cycle",
                "parameters": [
                    {"type": "string", "description": "Tracked keyword", "name": "keyword", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/monitoring.MonitoringResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/check-all": {
            "post": {
                "produces": ["application/json"],
                "tags": ["monitoring"],
                "summary": "Run a cycle for every configured keyword",
                "parameters": [
                    {"type": "boolean", "description": "Skip keywords whose latest result is still fresh", "name": "due", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/monitoring.CheckAllReport"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "408": {"description": "Request Timeout", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/results/{keyword}/latest": {
            "get": {
                "produces": ["application/json"],
                "tags": ["monitoring"],
                "summary": "Latest result for a keyword",
                "parameters": [
                    {"type": "string", "description": "Tracked keyword", "name": "keyword", "in": "path", "required": true},
                    {"type": "integer", "description": "Keep only products ranked within the top N", "name": "top", "in": "query"},
                    {"type": "string", "description": "CEL filter over change events", "name": "filter", "in": "query"},
                    {"type": "boolean", "description": "Run a check when no result exists", "name": "check_if_missing", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/monitoring.MonitoringResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/products/{keyword}/{competitor}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["monitoring"],
                "summary": "Current snapshot of one competitor",
                "parameters": [
                    {"type": "string", "description": "Tracked keyword", "name": "keyword", "in": "path", "required": true},
                    {"type": "string", "description": "Competitor name", "name": "competitor", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/monitoring.ProductSnapshot"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/summary": {
            "get": {
                "produces": ["application/json"],
                "tags": ["monitoring"],
                "summary": "Monitored keywords and their latest check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/monitoring.Summary"}}
                }
            }
        },
        "/configs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["configs"],
                "summary": "List monitoring configs",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"$ref": "#/definitions/monitoring.MonitoringConfig"}}}
                }
            }
        },
        "/configs/{keyword}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["configs"],
                "summary": "Get a monitoring config",
                "parameters": [
                    {"type": "string", "description": "Tracked keyword", "name": "keyword", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/monitoring.MonitoringConfig"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["configs"],
                "summary": "Stop monitoring a keyword",
                "parameters": [
                    {"type": "string", "description": "Tracked keyword", "name": "keyword", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        }
    },
    "definitions": {
        "errors.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "error_code": {"type": "string"},
                "details": {"type": "object", "additionalProperties": true}
            }
        },
        "monitoring.AlertThresholds": {
            "type": "object",
            "properties": {
                "priceChangePercent": {"type": "number"},
                "newProduct": {"type": "boolean"},
                "rankChange": {"type": "boolean"},
                "reviewChangePercent": {"type": "number"}
            }
        },
        "monitoring.SetupRequest": {
            "type": "object",
            "required": ["keyword", "competitors"],
            "properties": {
                "keyword": {"type": "string"},
                "competitors": {"type": "array", "items": {"type": "string"}},
                "monitorFrequency": {"type": "string", "enum": ["daily", "weekly"]},
                "alertThresholds": {"$ref": "#/definitions/monitoring.AlertThresholds"},
                "captureBaseline": {"type": "boolean"}
            }
        },
        "monitoring.MonitoringConfig": {
            "type": "object",
            "properties": {
                "keyword": {"type": "string"},
                "competitors": {"type": "array", "items": {"type": "string"}},
                "monitorFrequency": {"type": "string"},
                "alertThresholds": {"$ref": "#/definitions/monitoring.AlertThresholds"},
                "createdAt": {"type": "string"},
                "lastUpdated": {"type": "string"}
            }
        },
        "monitoring.CompetitorProduct": {
            "type": "object",
            "properties": {
                "productId": {"type": "string"},
                "name": {"type": "string"},
                "price": {"type": "number"},
                "reviews": {"type": "integer"},
                "rank": {"type": "integer"},
                "image": {"type": "string"},
                "url": {"type": "string"}
            }
        },
        "monitoring.ProductSnapshot": {
            "type": "object",
            "properties": {
                "competitor": {"type": "string"},
                "capturedAt": {"type": "string"},
                "provenance": {"type": "string", "enum": ["upstream", "fallback"]},
                "products": {"type": "array", "items": {"$ref": "#/definitions/monitoring.CompetitorProduct"}}
            }
        },
        "monitoring.ChangeSet": {
            "type": "object",
            "properties": {
                "priceChanges": {"type": "array", "items": {"type": "object"}},
                "rankChanges": {"type": "array", "items": {"type": "object"}},
                "reviewChanges": {"type": "array", "items": {"type": "object"}},
                "newProducts": {"type": "array", "items": {"type": "object"}},
                "alerts": {"type": "boolean"},
                "provenance": {"type": "string"}
            }
        },
        "monitoring.MonitoringResult": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "keyword": {"type": "string"},
                "checkedAt": {"type": "string"},
                "changesDetected": {"type": "object", "additionalProperties": {"$ref": "#/definitions/monitoring.ChangeSet"}},
                "hasAlerts": {"type": "boolean"},
                "degradedCompetitors": {"type": "array", "items": {"type": "string"}}
            }
        },
        "monitoring.CheckAllReport": {
            "type": "object",
            "properties": {
                "checked": {"type": "array", "items": {"type": "string"}},
                "skipped": {"type": "array", "items": {"type": "string"}},
                "failed": {"type": "object", "additionalProperties": {"$ref": "#/definitions/errors.ErrorResponse"}},
                "alerts": {"type": "array", "items": {"type": "string"}},
                "results": {"type": "object", "additionalProperties": {"$ref": "#/definitions/monitoring.MonitoringResult"}}
            }
        },
        "monitoring.Summary": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "withChanges": {"type": "integer"},
                "withAlerts": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1/monitoring",
	Schemes:          []string{"http", "https"},
	Title:            "Rivalwatch Monitoring Service API",
	Description:      "Tracks competitor product listings per keyword and reports price, rank and review changes",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
