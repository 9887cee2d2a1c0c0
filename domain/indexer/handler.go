package indexer

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/radioforge/radioforge/pkg/apperror"
)

// Handler exposes the per-source index status.
type Handler struct {
	svc *Service
}

// NewHandler creates a new indexer handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Status handles GET /api/kb/index-status/:id
func (h *Handler) Status(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid id")
	}
	status, err := h.svc.Status(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

// RegisterRoutes registers indexer routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/api/kb/index-status/:id", h.Status)
}
