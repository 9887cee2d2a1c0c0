package programming

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers station configuration routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	api := e.Group("/api")

	api.POST("/voices", h.CreateVoice)
	api.GET("/voices", h.ListVoices)

	api.POST("/djs", h.CreateDJ)
	api.GET("/djs", h.ListDJs)

	api.POST("/clocks", h.CreateClock)
	api.GET("/clocks", h.ListClocks)
	api.GET("/clocks/:id", h.GetClock)

	api.POST("/programs", h.CreateProgram)
	api.GET("/programs", h.ListPrograms)
	api.GET("/programs/:id", h.GetProgram)
	api.POST("/programs/:id/deactivate", h.DeactivateProgram)

	api.POST("/schedule", h.CreateScheduleEntry)
	api.GET("/schedule", h.ListScheduleEntries)
	api.POST("/schedule/:id/deactivate", h.DeactivateScheduleEntry)
}
