package segments

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/radioforge/radioforge/pkg/apperror"
)

// Handler handles HTTP requests for segments
type Handler struct {
	svc *Service
}

// NewHandler creates a new segments handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ListSegments handles GET /api/segments. Filter by state
// (?state=queued&limit=100) or by program and window
// (?program_id=...&hours=24); one of the two is required.
func (h *Handler) ListSegments(c echo.Context) error {
	ctx := c.Request().Context()

	if raw := c.QueryParam("program_id"); raw != "" {
		programID, err := uuid.Parse(raw)
		if err != nil {
			return apperror.ErrBadRequest.WithMessage("invalid program_id")
		}
		hours := 24
		if rawHours := c.QueryParam("hours"); rawHours != "" {
			parsed, err := strconv.Atoi(rawHours)
			if err != nil || parsed < 1 || parsed > 168 {
				return apperror.ErrBadRequest.WithMessage("hours must be between 1 and 168")
			}
			hours = parsed
		}
		now := time.Now()
		list, err := h.svc.ListForProgram(ctx, programID, now, now.Add(time.Duration(hours)*time.Hour))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{"segments": list, "count": len(list)})
	}

	state := State(c.QueryParam("state"))
	if state == "" {
		return apperror.ErrBadRequest.WithMessage("state or program_id is required")
	}
	if _, known := transitions[state]; !known {
		return apperror.ErrBadRequest.WithMessage("unknown state")
	}
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			return apperror.ErrBadRequest.WithMessage("limit must be between 1 and 1000")
		}
		limit = parsed
	}
	list, err := h.svc.ListByState(ctx, state, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"segments": list, "count": len(list)})
}

// GetSegment handles GET /api/segments/:id
func (h *Handler) GetSegment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	segment, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, segment)
}

// GetTransitions handles GET /api/segments/:id/transitions
func (h *Handler) GetTransitions(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	transitions, err := h.svc.Transitions(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transitions)
}

// RequeueSegment handles POST /api/segments/:id/requeue, the operator path
// out of failed.
func (h *Handler) RequeueSegment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	segment, err := h.svc.Requeue(c.Request().Context(), id, "operator")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, segment)
}

// PlayoutFeed handles GET /api/playout: ready segments for the next N
// hours (default 4), ordered by scheduled start.
func (h *Handler) PlayoutFeed(c echo.Context) error {
	hours := 4
	if raw := c.QueryParam("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 48 {
			return apperror.ErrBadRequest.WithMessage("hours must be between 1 and 48")
		}
		hours = parsed
	}

	now := time.Now()
	items, err := h.svc.PlayoutFeed(c.Request().Context(), now, now.Add(time.Duration(hours)*time.Hour))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.ErrBadRequest.WithMessage("invalid id")
	}
	return id, nil
}
