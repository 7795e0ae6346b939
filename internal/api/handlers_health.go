// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports liveness of the local server.
type HealthHandler struct {
	version string
	backend string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, backend string) *HealthHandler {
	return &HealthHandler{
		version: version,
		backend: backend,
	}
}

// HandleHealth returns server health status
func (h *HealthHandler) HandleHealth(c echo.Context) error {
	return writeResponse(c, JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
		"storage": h.backend,
	}))
}
