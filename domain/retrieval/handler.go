package retrieval

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/radioforge/radioforge/pkg/apperror"
)

// Handler handles HTTP requests for retrieval
type Handler struct {
	svc *Service
}

// NewHandler creates a new retrieval handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Query handles POST /rag/query
func (h *Handler) Query(c echo.Context) error {
	var q Query
	if err := c.Bind(&q); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	result, err := h.svc.Retrieve(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
