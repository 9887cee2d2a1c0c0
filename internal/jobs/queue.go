// Package jobs provides the PostgreSQL-backed durable job queue.
//
// Delivery is at-least-once: a job is claimed under a lease with
// FOR UPDATE SKIP LOCKED, and a janitor returns expired leases to the pool.
// Handlers must therefore be idempotent. Retryable failures requeue with
// exponential backoff and jitter; everything else lands in the dead letter
// queue.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
	"github.com/radioforge/radioforge/pkg/mathutil"
	"github.com/radioforge/radioforge/pkg/pgutils"
	"github.com/radioforge/radioforge/pkg/radiometrics"
)

// QueueConfig contains configuration for the job queue
type QueueConfig struct {
	// BaseRetryDelaySec is the base delay in seconds for retries
	BaseRetryDelaySec int
	// MaxRetryDelaySec caps the backoff
	MaxRetryDelaySec int
	// DefaultMaxAttempts applies when Enqueue does not override it
	DefaultMaxAttempts int
	// IdempotencyWindow is how long after completion an idempotency key
	// still resolves to the finished job instead of creating a new one
	IdempotencyWindow time.Duration
}

// DefaultQueueConfig returns a QueueConfig with sensible defaults
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BaseRetryDelaySec:  30,
		MaxRetryDelaySec:   3600,
		DefaultMaxAttempts: 5,
		IdempotencyWindow:  24 * time.Hour,
	}
}

// Queue provides durable job queue operations using PostgreSQL.
// It uses FOR UPDATE SKIP LOCKED for concurrent worker safety.
type Queue struct {
	db     bun.IDB
	config QueueConfig
	log    *slog.Logger
	rnd    *rand.Rand
}

// NewQueue creates a new job queue with the given configuration
func NewQueue(db bun.IDB, config QueueConfig, log *slog.Logger) *Queue {
	if config.BaseRetryDelaySec == 0 {
		config.BaseRetryDelaySec = 30
	}
	if config.MaxRetryDelaySec == 0 {
		config.MaxRetryDelaySec = 3600
	}
	if config.DefaultMaxAttempts == 0 {
		config.DefaultMaxAttempts = 5
	}
	if config.IdempotencyWindow == 0 {
		config.IdempotencyWindow = 24 * time.Hour
	}

	return &Queue{
		db:     db,
		config: config,
		log:    log.With(logger.Scope("jobs.queue")),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// EnqueueOptions describes one job to enqueue.
type EnqueueOptions struct {
	Type           Type
	Payload        any
	Priority       int           // 1..10, default 5
	Delay          time.Duration // scheduled_for = now + Delay
	IdempotencyKey string
	MaxAttempts    int
}

// Enqueue inserts a new job and returns its id. When the idempotency key
// collides with an open or recently completed job of the same type the
// existing job id is returned instead.
func (q *Queue) Enqueue(ctx context.Context, opts EnqueueOptions) (uuid.UUID, error) {
	if opts.Type == "" {
		return uuid.Nil, apperror.ErrValidation.WithMessage("job type is required")
	}

	payload, err := json.Marshal(opts.Payload)
	if err != nil {
		return uuid.Nil, apperror.ErrValidation.WithMessage("job payload is not serializable").WithInternal(err)
	}

	priority := opts.Priority
	if priority == 0 {
		priority = 5
	}
	priority = mathutil.ClampInt(priority, 1, 10)

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.config.DefaultMaxAttempts
	}

	if opts.IdempotencyKey != "" {
		if existing, err := q.findByIdempotencyKey(ctx, opts.Type, opts.IdempotencyKey); err != nil {
			return uuid.Nil, err
		} else if existing != uuid.Nil {
			return existing, nil
		}
	}

	job := &Job{
		ID:           uuid.New(),
		Type:         opts.Type,
		Payload:      payload,
		Status:       StatusPending,
		Priority:     priority,
		ScheduledFor: time.Now().Add(opts.Delay),
		MaxAttempts:  maxAttempts,
	}
	if opts.IdempotencyKey != "" {
		key := opts.IdempotencyKey
		job.IdempotencyKey = &key
	}

	if _, err := q.db.NewInsert().Model(job).Exec(ctx); err != nil {
		// A concurrent enqueue with the same key won the insert race against
		// the partial unique index; resolve to the winner.
		if isIdempotencyConflict(err, opts.IdempotencyKey) {
			if existing, ferr := q.findByIdempotencyKey(ctx, opts.Type, opts.IdempotencyKey); ferr == nil && existing != uuid.Nil {
				return existing, nil
			}
		}
		return uuid.Nil, apperror.ErrDatabase.WithInternal(err)
	}

	radiometrics.JobsEnqueued.WithLabelValues(string(opts.Type)).Inc()

	q.log.Debug("job enqueued",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(opts.Type)),
		slog.Int("priority", priority))

	return job.ID, nil
}

// isIdempotencyConflict reports whether an insert failed on the partial
// unique index over open (job_type, idempotency_key) pairs.
func isIdempotencyConflict(err error, key string) bool {
	return key != "" && pgutils.IsUniqueViolation(err)
}

func (q *Queue) findByIdempotencyKey(ctx context.Context, jobType Type, key string) (uuid.UUID, error) {
	existing := &Job{}
	err := q.db.NewSelect().
		Model(existing).
		Column("id").
		Where("job_type = ?", string(jobType)).
		Where("idempotency_key = ?", key).
		Where("(status IN ('pending', 'processing') OR (status = 'completed' AND completed_at > ?))",
			time.Now().Add(-q.config.IdempotencyWindow)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, apperror.ErrDatabase.WithInternal(err)
	}
	return existing.ID, nil
}

// Claim atomically claims at most one due job of the given types for
// workerID under a lease. Ordering is priority DESC, scheduled_for ASC,
// created_at ASC. Returns (nil, nil) when nothing is claimable.
//
// SQL Pattern:
//
//	WITH cte AS (
//	  SELECT id FROM radio.jobs
//	  WHERE status='pending' AND scheduled_for <= now()
//	    AND attempts < max_attempts AND job_type = ANY(...)
//	  ORDER BY priority DESC, scheduled_for ASC, created_at ASC
//	  FOR UPDATE SKIP LOCKED
//	  LIMIT 1
//	)
//	UPDATE radio.jobs SET status='processing', locked_by=..., locked_until=...,
//	  attempts=attempts+1 FROM cte ... RETURNING *
//
// The attempts gate matters for jobs the janitor re-pended after a lease
// expiry: those keep their attempt count, and once it reaches max_attempts
// they must stop being claimed.
// Strategic SQL that cannot be expressed with Bun's query builder.
const claimQuery = `
	WITH cte AS (
		SELECT id FROM radio.jobs
		WHERE status = 'pending'
		  AND scheduled_for <= now()
		  AND attempts < max_attempts
		  AND job_type = ANY(?::text[])
		ORDER BY priority DESC, scheduled_for ASC, created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	)
	UPDATE radio.jobs j
	SET status = 'processing',
		locked_by = ?,
		locked_until = now() + (? || ' seconds')::interval,
		attempts = attempts + 1,
		started_at = COALESCE(j.started_at, now()),
		updated_at = now()
	FROM cte WHERE j.id = cte.id
	RETURNING j.*`

func (q *Queue) Claim(ctx context.Context, workerID string, types []Type, leaseSeconds int) (*Job, error) {
	if workerID == "" {
		return nil, apperror.ErrValidation.WithMessage("worker id is required")
	}
	if len(types) == 0 {
		return nil, apperror.ErrValidation.WithMessage("at least one job type is required")
	}
	if leaseSeconds <= 0 {
		leaseSeconds = 60
	}

	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
	}

	job := &Job{}
	err := q.db.NewRaw(claimQuery, pgStringArray(typeNames), workerID, fmt.Sprintf("%d", leaseSeconds)).Scan(ctx, job)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	radiometrics.JobsClaimed.WithLabelValues(string(job.Type)).Inc()

	return job, nil
}

// Renew extends the lease on a claimed job. Fails with LeaseLost when the
// caller no longer owns the job.
func (q *Queue) Renew(ctx context.Context, jobID uuid.UUID, workerID string, leaseSeconds int) error {
	if leaseSeconds <= 0 {
		leaseSeconds = 60
	}

	res, err := q.db.NewUpdate().
		Model((*Job)(nil)).
		Set("locked_until = now() + (? || ' seconds')::interval", fmt.Sprintf("%d", leaseSeconds)).
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Where("locked_by = ?", workerID).
		Where("status = 'processing'").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.ErrLeaseLost
	}
	return nil
}

// Complete marks a claimed job as completed and clears the lease.
func (q *Queue) Complete(ctx context.Context, jobID uuid.UUID, workerID string) error {
	res, err := q.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = 'completed'").
		Set("completed_at = now()").
		Set("locked_by = NULL").
		Set("locked_until = NULL").
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Where("locked_by = ?", workerID).
		Where("status = 'processing'").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.ErrLeaseLost
	}

	radiometrics.JobsCompleted.Inc()
	return nil
}

// Fail records a handler failure. Retryable errors requeue the job with
// exponential backoff while attempts remain; everything else moves the job
// to the dead letter queue.
func (q *Queue) Fail(ctx context.Context, jobID uuid.UUID, workerID string, failErr error) error {
	job := &Job{}
	err := q.db.NewSelect().
		Model(job).
		Where("id = ?", jobID).
		Where("locked_by = ?", workerID).
		Where("status = 'processing'").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.ErrLeaseLost
	}
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	kind := apperror.KindOf(failErr)
	retryable := apperror.IsRetryable(failErr)
	errMsg := truncateError(failErr.Error())

	if retryable && job.Attempts < job.MaxAttempts {
		delay := q.backoffDelay(job.Attempts)

		_, err := q.db.NewUpdate().
			Model((*Job)(nil)).
			Set("status = 'pending'").
			Set("locked_by = NULL").
			Set("locked_until = NULL").
			Set("last_error = ?", errMsg).
			Set("error_details = ?", map[string]any{"kind": string(kind)}).
			Set("scheduled_for = now() + (? || ' milliseconds')::interval", fmt.Sprintf("%d", delay.Milliseconds())).
			Set("updated_at = now()").
			Where("id = ?", jobID).
			Where("locked_by = ?", workerID).
			Exec(ctx)
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}

		radiometrics.JobsRetried.WithLabelValues(string(job.Type)).Inc()

		q.log.Debug("job scheduled for retry",
			slog.String("job_id", jobID.String()),
			slog.Int("attempt", job.Attempts),
			slog.Duration("delay", delay))
		return nil
	}

	return q.moveToDeadLetter(ctx, job, workerID, kind, errMsg)
}

// Release returns a claimed job to pending without recording a failure.
// Used on cancellation; the claim's attempt increment is rolled back so an
// operator shutdown does not consume the retry budget.
func (q *Queue) Release(ctx context.Context, jobID uuid.UUID, workerID string) error {
	res, err := q.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = 'pending'").
		Set("locked_by = NULL").
		Set("locked_until = NULL").
		Set("attempts = GREATEST(attempts - 1, 0)").
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Where("locked_by = ?", workerID).
		Where("status = 'processing'").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.ErrLeaseLost
	}
	return nil
}

func (q *Queue) moveToDeadLetter(ctx context.Context, job *Job, workerID string, kind apperror.Kind, errMsg string) error {
	err := runInTx(ctx, q.db, func(ctx context.Context, tx bun.Tx) error {
		dlq := &DeadLetterJob{
			ID:           uuid.New(),
			JobID:        job.ID,
			JobType:      job.Type,
			Payload:      job.Payload,
			LastError:    errMsg,
			ErrorKind:    string(kind),
			FailureCount: job.Attempts,
		}
		if _, err := tx.NewInsert().Model(dlq).Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewUpdate().
			Model((*Job)(nil)).
			Set("status = 'failed'").
			Set("locked_by = NULL").
			Set("locked_until = NULL").
			Set("last_error = ?", errMsg).
			Set("error_details = ?", map[string]any{"kind": string(kind)}).
			Set("completed_at = now()").
			Set("updated_at = now()").
			Where("id = ?", job.ID).
			Where("locked_by = ?", workerID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	radiometrics.JobsDeadLettered.WithLabelValues(string(job.Type), string(kind)).Inc()

	q.log.Warn("job moved to dead letter queue",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)),
		slog.String("kind", string(kind)),
		slog.Int("attempts", job.Attempts),
		slog.String("error", errMsg))
	return nil
}

// SweepExpiredLeases reverts processing jobs whose lease has expired back to
// pending. Attempts are preserved; this is how worker crashes are recovered.
// Returns the number of jobs recovered.
func (q *Queue) SweepExpiredLeases(ctx context.Context) (int, error) {
	res, err := q.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = 'pending'").
		Set("locked_by = NULL").
		Set("locked_until = NULL").
		Set("last_error = ?", "LeaseExpired: worker lease expired before completion").
		Set("updated_at = now()").
		Where("status = 'processing'").
		Where("locked_until < now()").
		Exec(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}

	count, _ := res.RowsAffected()
	if count > 0 {
		radiometrics.JobsLeaseExpired.Add(float64(count))
		q.log.Warn("recovered jobs with expired leases", slog.Int64("count", count))
	}
	return int(count), nil
}

// sweepExhaustedQuery moves every pending job with no attempts left to the
// dead letter queue in one statement, so a job cannot be re-claimed between
// the move and the status flip.
const sweepExhaustedQuery = `
	WITH exhausted AS (
		SELECT id, job_type, payload, attempts,
		       COALESCE(last_error, 'AttemptsExhausted: attempt budget spent') AS last_error,
		       COALESCE(error_details->>'kind', 'transient') AS error_kind
		FROM radio.jobs
		WHERE status = 'pending'
		  AND attempts >= max_attempts
		FOR UPDATE SKIP LOCKED
	),
	moved AS (
		INSERT INTO radio.dead_letter_queue (job_id, job_type, payload, last_error, error_kind, failure_count)
		SELECT id, job_type, payload, last_error, error_kind, attempts FROM exhausted
		RETURNING job_id
	)
	UPDATE radio.jobs j
	SET status = 'failed', completed_at = now(), updated_at = now()
	FROM moved WHERE j.id = moved.job_id`

// SweepExhausted dead-letters pending jobs whose attempt budget is spent.
// Fail handles the normal exhaustion path; this catches jobs the lease
// sweep re-pended on their final attempt, which Claim refuses to touch.
// Returns the number of jobs moved.
func (q *Queue) SweepExhausted(ctx context.Context) (int, error) {
	res, err := q.db.ExecContext(ctx, sweepExhaustedQuery)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}

	count, _ := res.RowsAffected()
	if count > 0 {
		q.log.Warn("dead-lettered jobs with exhausted attempts", slog.Int64("count", count))
	}
	return int(count), nil
}

// DeletePendingForSegments best-effort removes pending segment jobs for the
// given segment ids, used when a schedule entry is cancelled.
func (q *Queue) DeletePendingForSegments(ctx context.Context, segmentIDs []uuid.UUID) (int, error) {
	if len(segmentIDs) == 0 {
		return 0, nil
	}

	ids := make([]string, len(segmentIDs))
	for i, id := range segmentIDs {
		ids[i] = id.String()
	}

	res, err := q.db.NewDelete().
		Model((*Job)(nil)).
		Where("status = 'pending'").
		Where("job_type IN ('segment_make', 'segment_render', 'segment_master')").
		Where("payload->>'segment_id' IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	count, _ := res.RowsAffected()
	return int(count), nil
}

// Stats represents queue statistics
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	DeadLetter int64 `json:"deadLetter"`
}

// GetStats returns queue statistics
func (q *Queue) GetStats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') as pending,
			COUNT(*) FILTER (WHERE status = 'processing') as processing,
			COUNT(*) FILTER (WHERE status = 'completed') as completed,
			COUNT(*) FILTER (WHERE status = 'failed') as failed,
			(SELECT COUNT(*) FROM radio.dead_letter_queue) as dead_letter
		FROM radio.jobs`

	stats := &Stats{}
	err := q.db.QueryRowContext(ctx, query).
		Scan(&stats.Pending, &stats.Processing, &stats.Completed, &stats.Failed, &stats.DeadLetter)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	radiometrics.QueueDepth.WithLabelValues("pending").Set(float64(stats.Pending))
	radiometrics.QueueDepth.WithLabelValues("processing").Set(float64(stats.Processing))

	return stats, nil
}

// ListDeadLetters returns the most recent dead letter entries.
func (q *Queue) ListDeadLetters(ctx context.Context, limit int) ([]*DeadLetterJob, error) {
	limit = mathutil.ClampLimit(limit, 50, 500)

	var entries []*DeadLetterJob
	err := q.db.NewSelect().
		Model(&entries).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return entries, nil
}

// RequeueDeadLetter turns a dead letter entry back into a fresh pending job
// with a reset attempt budget, then removes the entry.
func (q *Queue) RequeueDeadLetter(ctx context.Context, dlqID uuid.UUID) (uuid.UUID, error) {
	entry := &DeadLetterJob{}
	err := q.db.NewSelect().Model(entry).Where("id = ?", dlqID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, apperror.NewNotFound("dead letter entry", dlqID.String())
	}
	if err != nil {
		return uuid.Nil, apperror.ErrDatabase.WithInternal(err)
	}

	job := &Job{
		ID:           uuid.New(),
		Type:         entry.JobType,
		Payload:      entry.Payload,
		Status:       StatusPending,
		Priority:     5,
		ScheduledFor: time.Now(),
		MaxAttempts:  q.config.DefaultMaxAttempts,
	}

	err = runInTx(ctx, q.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(job).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*DeadLetterJob)(nil)).Where("id = ?", dlqID).Exec(ctx)
		return err
	})
	if err != nil {
		return uuid.Nil, apperror.ErrDatabase.WithInternal(err)
	}

	return job.ID, nil
}

// backoffDelay computes base * 2^(attempts-1) capped at the ceiling, with
// ±20% jitter.
func (q *Queue) backoffDelay(attempts int) time.Duration {
	return BackoffDelay(q.config.BaseRetryDelaySec, q.config.MaxRetryDelaySec, attempts, q.rnd.Float64())
}

// BackoffDelay is the pure backoff computation. rnd must be in [0, 1).
func BackoffDelay(baseSec, maxSec, attempts int, rnd float64) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	delaySec := math.Min(
		float64(maxSec),
		float64(baseSec)*math.Pow(2, float64(attempts-1)),
	)

	// jitter in [-20%, +20%)
	jitter := 1.0 + (rnd*0.4 - 0.2)
	return time.Duration(delaySec * jitter * float64(time.Second))
}

// pgStringArray renders a Postgres text[] literal for ANY(...) matching.
func pgStringArray(items []string) string {
	out := "{"
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out + "}"
}

func runInTx(ctx context.Context, db bun.IDB, fn func(ctx context.Context, tx bun.Tx) error) error {
	if tx, ok := db.(bun.Tx); ok {
		return fn(ctx, tx)
	}
	return db.RunInTx(ctx, &sql.TxOptions{}, fn)
}

// truncateError truncates an error message to 500 characters
func truncateError(msg string) string {
	if len(msg) > 500 {
		return msg[:500]
	}
	return msg
}
