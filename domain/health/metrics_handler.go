package health

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/radioforge/radioforge/pkg/apperror"
)

// MetricsHandler serves operator-facing pipeline metrics straight from the
// database. Prometheus scrapes /metrics for time series; these endpoints
// answer "what is the queue doing right now" without a dashboard.
type MetricsHandler struct {
	db bun.IDB
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(db bun.IDB) *MetricsHandler {
	return &MetricsHandler{db: db}
}

// JobTypeMetrics represents metrics for a single job type
type JobTypeMetrics struct {
	JobType     string `bun:"job_type" json:"job_type"`
	Pending     int64  `bun:"pending" json:"pending"`
	Processing  int64  `bun:"processing" json:"processing"`
	Completed   int64  `bun:"completed" json:"completed"`
	Failed      int64  `bun:"failed" json:"failed"`
	Total       int64  `bun:"total" json:"total"`
	LastHour    int64  `bun:"last_hour" json:"last_hour"`
	Last24Hours int64  `bun:"last_24_hours" json:"last_24_hours"`
}

// JobMetrics returns per-type queue metrics
func (h *MetricsHandler) JobMetrics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	query := `
		SELECT
			job_type,
			COUNT(*) FILTER (WHERE status = 'pending') as pending,
			COUNT(*) FILTER (WHERE status = 'processing') as processing,
			COUNT(*) FILTER (WHERE status = 'completed') as completed,
			COUNT(*) FILTER (WHERE status = 'failed') as failed,
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '1 hour') as last_hour,
			COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '24 hours') as last_24_hours
		FROM radio.jobs
		GROUP BY job_type
		ORDER BY job_type`

	var metrics []JobTypeMetrics
	if err := h.db.NewRaw(query).Scan(ctx, &metrics); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"job_types": metrics,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// SegmentStateMetrics represents segment counts for one state
type SegmentStateMetrics struct {
	State    string `bun:"state" json:"state"`
	Count    int64  `bun:"count" json:"count"`
	Upcoming int64  `bun:"upcoming" json:"upcoming"`
}

// SegmentMetrics returns per-state segment counts, with the upcoming column
// restricted to segments whose air time is still ahead.
func (h *MetricsHandler) SegmentMetrics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	query := `
		SELECT
			state,
			COUNT(*) as count,
			COUNT(*) FILTER (WHERE scheduled_start_ts > NOW()) as upcoming
		FROM radio.segments
		GROUP BY state
		ORDER BY state`

	var metrics []SegmentStateMetrics
	if err := h.db.NewRaw(query).Scan(ctx, &metrics); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"states":    metrics,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
