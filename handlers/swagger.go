package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, swaggerJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>draftdeck — Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the document and import endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "draftdeck", "version": "v0.1.0" },
  "paths": {
    "/api/documents": {
      "get": { "summary": "List documents of the authenticated owner", "responses": { "200": { "description": "document summaries" } } },
      "post": { "summary": "Create a draft document or template", "responses": { "201": { "description": "created draft" }, "400": { "description": "validation error" } } }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Get a document with derived status", "responses": { "200": { "description": "document" }, "404": { "description": "not found" } } },
      "patch": { "summary": "Update a draft", "responses": { "200": { "description": "updated draft" }, "409": { "description": "document no longer mutable" } } },
      "delete": { "summary": "Delete a draft", "responses": { "204": { "description": "deleted" }, "409": { "description": "only drafts can be deleted" } } }
    },
    "/api/documents/{id}/instantiate": {
      "post": { "summary": "Create a draft from a template", "responses": { "201": { "description": "new draft" } } }
    },
    "/api/documents/{id}/send": {
      "post": { "summary": "Send a draft to recipients", "responses": { "200": { "description": "document plus signing links" }, "400": { "description": "invalid recipients" }, "409": { "description": "not a draft" } } }
    },
    "/api/documents/{id}/resend": {
      "post": { "summary": "Reissue recipient access tokens", "responses": { "200": { "description": "document plus fresh signing links" } } }
    },
    "/api/documents/{id}/payments": {
      "post": { "summary": "Record an external payment outcome", "responses": { "201": { "description": "recorded" }, "400": { "description": "invalid fact" } } }
    },
    "/api/import": {
      "post": { "summary": "Start an asynchronous provider import", "responses": { "202": { "description": "job id" }, "400": { "description": "invalid batch" } } }
    },
    "/api/import/{jobId}": {
      "get": { "summary": "Poll an import job", "responses": { "200": { "description": "job snapshot" }, "404": { "description": "unknown or expired job" } } }
    },
    "/sign/{token}": {
      "get": { "summary": "Open a document via recipient access token", "responses": { "200": { "description": "document and recipient" }, "404": { "description": "invalid token" }, "410": { "description": "expired" } } }
    },
    "/sign/{token}/signature": {
      "post": { "summary": "Sign as the token's recipient", "responses": { "200": { "description": "updated document" }, "402": { "description": "payment required" }, "409": { "description": "not this recipient's turn or already signed" } } }
    },
    "/sign/{token}/decline": {
      "post": { "summary": "Decline as the token's recipient", "responses": { "200": { "description": "updated document" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
