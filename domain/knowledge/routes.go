package knowledge

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the knowledge base routes
func RegisterRoutes(e *echo.Echo, handler *Handler) {
	kb := e.Group("/api/kb")

	kb.POST("/docs", handler.CreateDoc)
	kb.GET("/docs", handler.ListDocs)
	kb.GET("/docs/:id", handler.GetDoc)
	kb.PATCH("/docs/:id", handler.UpdateDoc)
	kb.DELETE("/docs/:id", handler.DeleteDoc)

	kb.POST("/events", handler.CreateEvent)
	kb.GET("/events", handler.ListEvents)
	kb.GET("/events/:id", handler.GetEvent)
	kb.PATCH("/events/:id", handler.UpdateEvent)
	kb.DELETE("/events/:id", handler.DeleteEvent)

	kb.POST("/reindex/:sourceType/:id", handler.Reindex)
}
