package programming

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/radioforge/radioforge/pkg/apperror"
)

// Handler handles HTTP requests for station configuration
type Handler struct {
	svc *Service
}

// NewHandler creates a new programming handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateVoice handles POST /api/voices
func (h *Handler) CreateVoice(c echo.Context) error {
	var req CreateVoiceRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	voice, err := h.svc.CreateVoice(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, voice)
}

// ListVoices handles GET /api/voices
func (h *Handler) ListVoices(c echo.Context) error {
	voices, err := h.svc.ListVoices(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, voices)
}

// CreateDJ handles POST /api/djs
func (h *Handler) CreateDJ(c echo.Context) error {
	var req CreateDJRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	dj, err := h.svc.CreateDJ(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dj)
}

// ListDJs handles GET /api/djs
func (h *Handler) ListDJs(c echo.Context) error {
	djs, err := h.svc.ListDJs(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, djs)
}

// CreateClock handles POST /api/clocks
func (h *Handler) CreateClock(c echo.Context) error {
	var req CreateClockRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	clock, err := h.svc.CreateClock(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, clock)
}

// GetClock handles GET /api/clocks/:id
func (h *Handler) GetClock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	clock, err := h.svc.GetClock(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, clock)
}

// ListClocks handles GET /api/clocks
func (h *Handler) ListClocks(c echo.Context) error {
	clocks, err := h.svc.ListClocks(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, clocks)
}

// CreateProgram handles POST /api/programs
func (h *Handler) CreateProgram(c echo.Context) error {
	var req CreateProgramRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	program, err := h.svc.CreateProgram(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, program)
}

// GetProgram handles GET /api/programs/:id
func (h *Handler) GetProgram(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	program, err := h.svc.GetProgram(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, program)
}

// ListPrograms handles GET /api/programs
func (h *Handler) ListPrograms(c echo.Context) error {
	programs, err := h.svc.ListPrograms(c.Request().Context(), c.QueryParam("active") == "true")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, programs)
}

// DeactivateProgram handles POST /api/programs/:id/deactivate
func (h *Handler) DeactivateProgram(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.SetProgramActive(c.Request().Context(), id, false); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateScheduleEntry handles POST /api/schedule
func (h *Handler) CreateScheduleEntry(c echo.Context) error {
	var req CreateScheduleRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	entry, err := h.svc.CreateScheduleEntry(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, entry)
}

// ListScheduleEntries handles GET /api/schedule
func (h *Handler) ListScheduleEntries(c echo.Context) error {
	entries, err := h.svc.ListScheduleEntries(c.Request().Context(), c.QueryParam("active") == "true")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

// DeactivateScheduleEntry handles POST /api/schedule/:id/deactivate
func (h *Handler) DeactivateScheduleEntry(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivateScheduleEntry(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.ErrBadRequest.WithMessage("invalid id")
	}
	return id, nil
}
