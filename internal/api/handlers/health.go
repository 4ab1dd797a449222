package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ReadinessChecker reports whether the poll loop has finished its first
// iteration.
type ReadinessChecker interface {
	Ready() bool
}

// HealthHandler provides health and readiness endpoints.
type HealthHandler struct {
	loop ReadinessChecker
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(loop ReadinessChecker) *HealthHandler {
	return &HealthHandler{loop: loop}
}

// Healthz returns 200 if the process is running.
//
// @Summary Liveness check
// @Description Returns 200 if the process is running.
// @Tags health
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /healthz [get]
func (*HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// Readyz returns 200 once the first poll iteration has completed, 503 before.
//
// @Summary Readiness check
// @Description Returns 200 once the first poll iteration has completed, 503 before.
// @Tags health
// @Produce json
// @Success 200 {object} StatusResponse
// @Failure 503 {object} StatusResponse
// @Router /readyz [get]
func (h *HealthHandler) Readyz(c echo.Context) error {
	if !h.loop.Ready() {
		return c.JSON(http.StatusServiceUnavailable, StatusResponse{Status: "starting"})
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "ready"})
}
