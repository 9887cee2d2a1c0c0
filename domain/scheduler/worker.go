package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/radioforge/radioforge/internal/jobs"
	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
)

// HourHandler runs schedule_hour jobs: on-demand materialization of one
// specific hour, outside the regular tick.
type HourHandler struct {
	service *Service
	log     *slog.Logger
}

// NewHourHandler creates the schedule_hour job handler
func NewHourHandler(service *Service, log *slog.Logger) *HourHandler {
	return &HourHandler{
		service: service,
		log:     log.With(logger.Scope("scheduler.worker")),
	}
}

func (h *HourHandler) Type() jobs.Type { return jobs.TypeScheduleHour }

func (h *HourHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var payload jobs.ScheduleHourPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return apperror.ErrValidation.WithMessage("malformed schedule_hour payload").WithInternal(err)
	}
	if payload.HourStart.IsZero() {
		return apperror.ErrValidation.WithMessage("schedule_hour payload is missing hour_start_ts")
	}

	created, err := h.service.MaterializeHour(ctx, payload.HourStart)
	if err != nil {
		return err
	}
	h.log.Info("hour materialized on demand",
		slog.Time("hour", payload.HourStart),
		slog.Int("segments_created", created))
	return nil
}
