// Package docs holds the generated Swagger spec, normally produced by
// `swag init -g cmd/marketwatch/main.go -o docs`. Checked in by hand here
// since this tree is never built with the swag CLI; the annotations on
// each handler in internal/handler are the source of truth swag would
// read to regenerate this file.
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
        "/api/top": {
            "get": {
                "description": "returns the current top_flips view",
                "tags": ["views"],
                "summary": "Current flip opportunities",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/api/dumps": {
            "get": {
                "description": "returns the current dumps view, filtered by tier/group/special/limit/guild_id",
                "tags": ["views"],
                "summary": "Current dump events",
                "responses": {"200": {"description": "ok"}, "400": {"description": "invalid filter"}}
            }
        },
        "/api/spikes": {
            "get": {
                "description": "returns the current spikes view",
                "tags": ["views"],
                "summary": "Current spike events",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/api/health": {
            "get": {
                "description": "liveness, readiness, upstream status, store cardinalities",
                "tags": ["ops"],
                "summary": "Service health",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/api/config/{tenant}": {
            "get": {
                "description": "reads a tenant's alert configuration",
                "tags": ["config"],
                "summary": "Get tenant config",
                "responses": {"200": {"description": "ok"}, "404": {"description": "not found"}}
            },
            "post": {
                "description": "writes a tenant's alert configuration, admin-gated",
                "tags": ["config"],
                "summary": "Put tenant config",
                "responses": {"200": {"description": "ok"}, "400": {"description": "invalid input"}, "401": {"description": "unauthorized"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Market Event Detector API",
	Description:      "Ingestion, dump/spike/flip detection, and tenant alert routing for a public item-price feed.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
