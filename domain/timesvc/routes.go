package timesvc

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers time service routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/time", h.GetTime)
}
