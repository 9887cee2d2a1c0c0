package segments

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers segment routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	api := e.Group("/api")

	api.GET("/segments", h.ListSegments)
	api.GET("/segments/:id", h.GetSegment)
	api.GET("/segments/:id/transitions", h.GetTransitions)
	api.POST("/segments/:id/requeue", h.RequeueSegment)

	api.GET("/playout", h.PlayoutFeed)
}
