package knowledge

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/radioforge/radioforge/pkg/apperror"
)

// Handler handles HTTP requests for the knowledge base
type Handler struct {
	svc *Service
}

// NewHandler creates a new knowledge handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateDoc handles POST /api/kb/docs
func (h *Handler) CreateDoc(c echo.Context) error {
	var req CreateDocRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	doc, err := h.svc.CreateDoc(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, doc)
}

// GetDoc handles GET /api/kb/docs/:id
func (h *Handler) GetDoc(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	doc, err := h.svc.GetDoc(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

// ListDocs handles GET /api/kb/docs
func (h *Handler) ListDocs(c echo.Context) error {
	limit, offset := parsePagination(c)
	resp, err := h.svc.ListDocs(c.Request().Context(), c.QueryParam("status"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdateDoc handles PATCH /api/kb/docs/:id
func (h *Handler) UpdateDoc(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req UpdateDocRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	doc, err := h.svc.UpdateDoc(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

// DeleteDoc handles DELETE /api/kb/docs/:id
func (h *Handler) DeleteDoc(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.svc.DeleteDoc(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateEvent handles POST /api/kb/events
func (h *Handler) CreateEvent(c echo.Context) error {
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	ev, err := h.svc.CreateEvent(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ev)
}

// GetEvent handles GET /api/kb/events/:id
func (h *Handler) GetEvent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	ev, err := h.svc.GetEvent(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ev)
}

// ListEvents handles GET /api/kb/events
func (h *Handler) ListEvents(c echo.Context) error {
	limit, offset := parsePagination(c)
	resp, err := h.svc.ListEvents(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdateEvent handles PATCH /api/kb/events/:id
func (h *Handler) UpdateEvent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req UpdateEventRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	ev, err := h.svc.UpdateEvent(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ev)
}

// DeleteEvent handles DELETE /api/kb/events/:id
func (h *Handler) DeleteEvent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.svc.DeleteEvent(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Reindex handles POST /api/kb/reindex/:sourceType/:id
func (h *Handler) Reindex(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	resp, err := h.svc.Reindex(c.Request().Context(), id, c.Param("sourceType"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, resp)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.ErrBadRequest.WithMessage("invalid id")
	}
	return id, nil
}

func parsePagination(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
