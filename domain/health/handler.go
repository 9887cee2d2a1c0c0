// Package health exposes liveness, readiness, and pipeline health for the
// station: database connectivity, queue depth, worker fleet liveness, and
// clock skew, plus the dead letter queue operator surface.
package health

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/radioforge/radioforge/domain/timesvc"
	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/internal/jobs"
	"github.com/radioforge/radioforge/internal/worker"
	"github.com/radioforge/radioforge/pkg/apperror"
)

// Status values for the overall response and individual checks.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// workerStaleAfter is how long a heartbeat may be silent before the worker
// no longer counts as live.
const workerStaleAfter = 2 * time.Minute

// Handler handles health check requests
type Handler struct {
	pool      *pgxpool.Pool
	queue     *jobs.Queue
	clock     *timesvc.Service
	heartbeat *worker.HeartbeatRegistry
	cfg       *config.Config
	startAt   time.Time
}

// NewHandler creates a new health handler
func NewHandler(pool *pgxpool.Pool, queue *jobs.Queue, clock *timesvc.Service, heartbeat *worker.HeartbeatRegistry, cfg *config.Config) *Handler {
	return &Handler{
		pool:      pool,
		queue:     queue,
		clock:     clock,
		heartbeat: heartbeat,
		cfg:       cfg,
		startAt:   time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Checks    map[string]Check `json:"checks"`
}

// Check represents an individual health check result
type Check struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Health returns the overall service health. Database failure is unhealthy;
// stalled workers, a drifting clock, or a growing dead letter queue only
// degrade, the API can still serve.
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := map[string]Check{
		"database": h.checkDatabase(ctx),
		"queue":    h.checkQueue(ctx),
		"workers":  h.checkWorkers(ctx),
		"clock":    h.checkClock(),
	}

	overall := Aggregate(checks)

	statusCode := http.StatusOK
	if overall == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startAt).String(),
		Checks:    checks,
	})
}

// Aggregate folds individual checks into an overall status: any unhealthy
// check wins, then any degraded one.
func Aggregate(checks map[string]Check) string {
	overall := StatusHealthy
	for _, check := range checks {
		switch check.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

func (h *Handler) checkDatabase(ctx context.Context) Check {
	if err := h.pool.Ping(ctx); err != nil {
		return Check{Status: StatusUnhealthy, Message: err.Error()}
	}
	stat := h.pool.Stat()
	return Check{Status: StatusHealthy, Details: map[string]any{
		"pool_total":  stat.TotalConns(),
		"pool_in_use": stat.AcquiredConns(),
	}}
}

func (h *Handler) checkQueue(ctx context.Context) Check {
	stats, err := h.queue.GetStats(ctx)
	if err != nil {
		return Check{Status: StatusUnhealthy, Message: err.Error()}
	}

	check := Check{Status: StatusHealthy, Details: map[string]any{
		"pending":     stats.Pending,
		"processing":  stats.Processing,
		"dead_letter": stats.DeadLetter,
	}}
	if stats.DeadLetter > 0 {
		check.Status = StatusDegraded
		check.Message = "dead letter queue is not empty"
	}
	return check
}

func (h *Handler) checkWorkers(ctx context.Context) Check {
	beats, err := h.heartbeat.ListLive(ctx, workerStaleAfter)
	if err != nil {
		return Check{Status: StatusUnhealthy, Message: err.Error()}
	}

	workers := make([]map[string]any, 0, len(beats))
	for _, beat := range beats {
		workers = append(workers, map[string]any{
			"worker_id":    beat.WorkerID,
			"inflight":     beat.Inflight,
			"last_seen_at": beat.LastSeenAt.UTC().Format(time.RFC3339),
		})
	}

	check := Check{Status: StatusHealthy, Details: map[string]any{
		"live":    len(beats),
		"workers": workers,
	}}
	if len(beats) == 0 {
		check.Status = StatusDegraded
		check.Message = "no live workers; segments will not progress"
	}
	return check
}

func (h *Handler) checkClock() Check {
	check := Check{Status: StatusHealthy, Details: map[string]any{
		"ntp_skew_ms": h.clock.SkewMS(),
	}}
	if !h.clock.Healthy() {
		check.Status = StatusDegraded
		check.Message = "clock skew above threshold"
	}
	return check
}

// Healthz returns a simple health check (for k8s liveness probe)
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready returns readiness status (for k8s readiness probe). Readiness is
// database connectivity only; a degraded pipeline still serves reads.
func (h *Handler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":  "not_ready",
			"message": "database connection failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// Debug returns debug information (only outside production)
func (h *Handler) Debug(c echo.Context) error {
	if h.cfg.Environment == "production" {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return c.JSON(http.StatusOK, map[string]any{
		"environment": h.cfg.Environment,
		"debug":       h.cfg.Debug,
		"go_version":  runtime.Version(),
		"goroutines":  runtime.NumGoroutine(),
		"memory": map[string]any{
			"alloc_mb":       mem.Alloc / 1024 / 1024,
			"total_alloc_mb": mem.TotalAlloc / 1024 / 1024,
			"sys_mb":         mem.Sys / 1024 / 1024,
			"num_gc":         mem.NumGC,
		},
		"database": map[string]any{
			"host":        h.cfg.Database.Host,
			"port":        h.cfg.Database.Port,
			"database":    h.cfg.Database.Database,
			"pool_total":  h.pool.Stat().TotalConns(),
			"pool_idle":   h.pool.Stat().IdleConns(),
			"pool_in_use": h.pool.Stat().AcquiredConns(),
		},
	})
}

// ListDeadLetters handles GET /api/dlq
func (h *Handler) ListDeadLetters(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return apperror.ErrBadRequest.WithMessage("limit must be a positive integer")
		}
		limit = parsed
	}

	entries, err := h.queue.ListDeadLetters(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// RequeueDeadLetter handles POST /api/dlq/:id/requeue, the operator path
// that turns a dead letter entry back into a fresh pending job.
func (h *Handler) RequeueDeadLetter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid id")
	}

	jobID, err := h.queue.RequeueDeadLetter(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"job_id": jobID,
	})
}
