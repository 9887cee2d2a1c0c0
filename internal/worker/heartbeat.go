package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
)

// Heartbeat is a row in radio.health_checks, one per worker instance.
// The health endpoint reads this table to report fleet liveness.
type Heartbeat struct {
	bun.BaseModel `bun:"table:radio.health_checks,alias:hc"`

	WorkerID   string    `bun:"worker_id,pk" json:"workerId"`
	JobTypes   []string  `bun:"job_types,array" json:"jobTypes"`
	Inflight   int       `bun:"inflight,notnull,default:0" json:"inflight"`
	Status     string    `bun:"status,notnull,default:'running'" json:"status"`
	LastSeenAt time.Time `bun:"last_seen_at,notnull,default:now()" json:"lastSeenAt"`
	StartedAt  time.Time `bun:"started_at,notnull,default:now()" json:"startedAt"`
}

// HeartbeatRegistry persists worker heartbeats.
type HeartbeatRegistry struct {
	db  bun.IDB
	log *slog.Logger
}

func NewHeartbeatRegistry(db bun.IDB, log *slog.Logger) *HeartbeatRegistry {
	return &HeartbeatRegistry{db: db, log: log.With(logger.Scope("worker.heartbeat"))}
}

// Beat upserts the heartbeat row for a worker instance.
func (h *HeartbeatRegistry) Beat(ctx context.Context, workerID string, jobTypes []string, inflight int) error {
	hb := &Heartbeat{
		WorkerID:   workerID,
		JobTypes:   jobTypes,
		Inflight:   inflight,
		Status:     "running",
		LastSeenAt: time.Now(),
		StartedAt:  time.Now(),
	}

	_, err := h.db.NewInsert().
		Model(hb).
		On("CONFLICT (worker_id) DO UPDATE").
		Set("job_types = EXCLUDED.job_types").
		Set("inflight = EXCLUDED.inflight").
		Set("status = 'running'").
		Set("last_seen_at = EXCLUDED.last_seen_at").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// MarkStopped records a clean shutdown so the health endpoint can tell a
// drained worker from a crashed one.
func (h *HeartbeatRegistry) MarkStopped(ctx context.Context, workerID string) error {
	_, err := h.db.NewUpdate().
		Model((*Heartbeat)(nil)).
		Set("status = 'stopped'").
		Set("last_seen_at = now()").
		Where("worker_id = ?", workerID).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// ListLive returns heartbeats seen within the staleness window.
func (h *HeartbeatRegistry) ListLive(ctx context.Context, staleAfter time.Duration) ([]*Heartbeat, error) {
	var beats []*Heartbeat
	err := h.db.NewSelect().
		Model(&beats).
		Where("last_seen_at > ?", time.Now().Add(-staleAfter)).
		Order("last_seen_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return beats, nil
}

// PruneStale deletes rows not seen for the retention window.
func (h *HeartbeatRegistry) PruneStale(ctx context.Context, olderThan time.Duration) (int, error) {
	res, err := h.db.NewDelete().
		Model((*Heartbeat)(nil)).
		Where("last_seen_at < ?", time.Now().Add(-olderThan)).
		Exec(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
