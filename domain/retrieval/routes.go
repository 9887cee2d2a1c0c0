package retrieval

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers retrieval routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.POST("/rag/query", h.Query)
}
