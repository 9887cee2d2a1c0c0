package timesvc

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for the time service
type Handler struct {
	svc *Service
}

// NewHandler creates a new time handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetTime handles GET /time
func (h *Handler) GetTime(c echo.Context) error {
	real := h.svc.NowReal()
	return c.JSON(http.StatusOK, map[string]any{
		"real_utc":       real.Format(time.RFC3339),
		"future_display": h.svc.ToFuture(real).Format(time.RFC3339),
		"year_offset":    h.svc.YearOffset(),
		"ntp_skew_ms":    h.svc.SkewMS(),
		"healthy":        h.svc.Healthy(),
	})
}
