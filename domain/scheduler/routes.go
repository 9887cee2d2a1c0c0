package scheduler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers scheduler routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.POST("/api/scheduler/tick", h.Tick)
}
