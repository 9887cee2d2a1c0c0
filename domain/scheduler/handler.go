package scheduler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for the scheduler
type Handler struct {
	svc *Service
}

// NewHandler creates a new scheduler handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Tick handles POST /api/scheduler/tick: an on-demand materialization pass.
func (h *Handler) Tick(c echo.Context) error {
	result, err := h.svc.Tick(c.Request().Context(), time.Now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
