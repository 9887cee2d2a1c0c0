// Package worker runs the polling job runtime: it claims jobs from the
// queue under leases, dispatches them to registered handlers with a
// concurrency cap, renews leases while handlers run, and drains in-flight
// work on shutdown.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/internal/jobs"
	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
	"github.com/radioforge/radioforge/pkg/radiometrics"
)

// Handler processes one claimed job. Handlers must be idempotent: delivery
// is at-least-once and a job may be re-run after a lease expiry.
type Handler interface {
	// Type returns the job type this handler serves.
	Type() jobs.Type

	// Handle runs the job. A nil return completes the job; a retryable
	// error requeues it with backoff; anything else dead-letters it.
	Handle(ctx context.Context, job *jobs.Job) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	JobType jobs.Type
	Fn      func(ctx context.Context, job *jobs.Job) error
}

func (h HandlerFunc) Type() jobs.Type { return h.JobType }

func (h HandlerFunc) Handle(ctx context.Context, job *jobs.Job) error {
	return h.Fn(ctx, job)
}

// Runtime is the polling worker loop. One Runtime instance serves every
// registered handler and caps in-flight jobs at the configured concurrency.
type Runtime struct {
	id       string
	queue    *jobs.Queue
	registry *HeartbeatRegistry
	config   config.WorkerConfig
	log      *slog.Logger

	handlers map[jobs.Type]Handler
	poison   *poisonTracker

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{} // stops the poll, janitor and heartbeat loops
	abortCh   chan struct{} // cancels in-flight handlers once the drain window is up
	stoppedCh chan struct{}
	inflight  sync.WaitGroup
	sem       chan struct{}
}

// NewRuntime creates a worker runtime. The worker id is derived from the
// hostname so operators can tell instances apart in locked_by.
func NewRuntime(queue *jobs.Queue, registry *HeartbeatRegistry, cfg config.WorkerConfig, log *slog.Logger) *Runtime {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.LeaseSeconds <= 0 {
		cfg.LeaseSeconds = 120
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "worker"
	}
	id := fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])

	return &Runtime{
		id:       id,
		queue:    queue,
		registry: registry,
		config:   cfg,
		log:      log.With(logger.Scope("worker.runtime"), slog.String("worker_id", id)),
		handlers: make(map[jobs.Type]Handler),
		poison:   newPoisonTracker(cfg.PoisonThreshold, cfg.PoisonCooldown),
		sem:      make(chan struct{}, cfg.Concurrency),
	}
}

// ID returns the worker instance id used in locked_by.
func (r *Runtime) ID() string { return r.id }

// Register adds a handler. Registering twice for the same type is a
// programming error and panics at startup.
func (r *Runtime) Register(h Handler) {
	if _, exists := r.handlers[h.Type()]; exists {
		panic(fmt.Sprintf("worker: duplicate handler for job type %q", h.Type()))
	}
	r.handlers[h.Type()] = h
}

// Start begins the polling, janitor and heartbeat loops.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	if len(r.handlers) == 0 {
		r.mu.Unlock()
		return apperror.NewKind(500, "no_handlers", "worker runtime started with no registered handlers", apperror.KindConfig)
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.abortCh = make(chan struct{})
	r.stoppedCh = make(chan struct{})
	r.mu.Unlock()

	r.log.Info("worker runtime starting",
		slog.Int("concurrency", r.config.Concurrency),
		slog.Duration("poll_interval", r.config.PollInterval),
		slog.Int("lease_seconds", r.config.LeaseSeconds),
		slog.Int("handlers", len(r.handlers)))

	go r.run()
	go r.janitorLoop()
	go r.heartbeatLoop()

	return nil
}

// Stop drains the runtime: polling stops immediately, in-flight handlers
// run undisturbed until DrainTimeout elapses, and only then are their
// contexts cancelled and the jobs released back to pending.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.log.Info("worker runtime draining", slog.Duration("drain_timeout", r.config.DrainTimeout))

	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()

	drain := r.config.DrainTimeout
	if drain <= 0 {
		drain = 30 * time.Second
	}

	select {
	case <-done:
		r.log.Info("worker runtime stopped, all jobs finished")
	case <-time.After(drain):
		r.log.Warn("drain timeout reached, cancelling in-flight jobs")
		close(r.abortCh)
		<-done
	case <-ctx.Done():
		r.log.Warn("shutdown context cancelled before drain completed")
		close(r.abortCh)
		<-done
	}

	close(r.stoppedCh)
	return nil
}

func (r *Runtime) run() {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			// Drain the claimable backlog before sleeping again.
			for r.claimOne() {
				select {
				case <-r.stopCh:
					return
				default:
				}
			}
		}
	}
}

// claimOne tries to claim and dispatch a single job. Returns true when a
// job was claimed, so the caller keeps claiming until the queue is empty
// or every slot is busy.
func (r *Runtime) claimOne() bool {
	select {
	case r.sem <- struct{}{}:
	default:
		return false // all slots busy
	}

	types := r.claimableTypes()
	if len(types) == 0 {
		<-r.sem
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	job, err := r.queue.Claim(ctx, r.id, types, r.config.LeaseSeconds)
	cancel()
	if err != nil {
		<-r.sem
		r.log.Warn("claim failed", logger.Error(err))
		return false
	}
	if job == nil {
		<-r.sem
		return false
	}

	r.inflight.Add(1)
	go func() {
		defer func() {
			<-r.sem
			r.inflight.Done()
		}()
		r.execute(job)
	}()
	return true
}

// claimableTypes returns the registered job types minus any currently in a
// poison cooldown.
func (r *Runtime) claimableTypes() []jobs.Type {
	types := make([]jobs.Type, 0, len(r.handlers))
	for t := range r.handlers {
		if r.poison.paused(t) {
			continue
		}
		types = append(types, t)
	}
	return types
}

func (r *Runtime) execute(job *jobs.Job) {
	handler := r.handlers[job.Type]
	log := r.log.With(
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)),
		slog.Int("attempt", job.Attempts))

	radiometrics.WorkerInflight.WithLabelValues(string(job.Type)).Inc()
	defer radiometrics.WorkerInflight.WithLabelValues(string(job.Type)).Dec()

	ctx, cancel := r.handlerContext()
	defer cancel()

	renewStop := r.startRenewal(job.ID, log)
	started := time.Now()
	err := r.runHandler(ctx, handler, job)
	close(renewStop)

	switch {
	case err == nil:
		r.poison.reset(job.Type)
		completeCtx, completeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer completeCancel()
		if cerr := r.queue.Complete(completeCtx, job.ID, r.id); cerr != nil {
			log.Warn("complete failed after successful handler", logger.Error(cerr))
			return
		}
		log.Info("job completed", slog.Duration("duration", time.Since(started)))

	case errors.Is(err, context.Canceled):
		// Shutdown, not a failure: hand the job back without spending an
		// attempt.
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer releaseCancel()
		if rerr := r.queue.Release(releaseCtx, job.ID, r.id); rerr != nil {
			log.Warn("release failed during shutdown", logger.Error(rerr))
			return
		}
		log.Info("job released on shutdown")

	default:
		if r.poison.recordFailure(job.Type) {
			radiometrics.WorkerPoisonPauses.WithLabelValues(string(job.Type)).Inc()
			log.Warn("job type paused after consecutive failures",
				slog.Int("threshold", r.poison.threshold),
				slog.Duration("cooldown", r.poison.cooldown))
		}
		failCtx, failCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer failCancel()
		if ferr := r.queue.Fail(failCtx, job.ID, r.id, err); ferr != nil {
			log.Warn("recording job failure failed", logger.Error(ferr))
			return
		}
		log.Warn("job failed", logger.Error(err), slog.Duration("duration", time.Since(started)))
	}
}

// handlerContext returns the context one handler invocation runs under.
// It is not tied to stopCh: a stopping runtime keeps in-flight handlers
// alive through the drain window and cancels them only when abortCh closes.
func (r *Runtime) handlerContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	abort := r.abortCh
	go func() {
		select {
		case <-abort:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// runHandler isolates handler panics so a bad payload cannot take down the
// runtime; a panic is treated as a non-retryable failure.
func (r *Runtime) runHandler(ctx context.Context, handler Handler, job *jobs.Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = apperror.NewKind(500, "handler_panic",
				fmt.Sprintf("handler panicked: %v", rec), apperror.KindConsistency)
		}
	}()
	return handler.Handle(ctx, job)
}

// startRenewal renews the job lease at a third of the lease duration until
// the returned channel is closed. A lost lease cancels nothing here; the
// ownership checks in Complete/Fail/Release catch it.
func (r *Runtime) startRenewal(jobID uuid.UUID, log *slog.Logger) chan struct{} {
	stop := make(chan struct{})
	interval := time.Duration(r.config.LeaseSeconds) * time.Second / 3

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := r.queue.Renew(ctx, jobID, r.id, r.config.LeaseSeconds)
				cancel()
				if err != nil {
					log.Warn("lease renewal failed", logger.Error(err))
					if errors.Is(err, apperror.ErrLeaseLost) {
						return
					}
				}
			}
		}
	}()
	return stop
}

func (r *Runtime) janitorLoop() {
	interval := r.config.JanitorInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if _, err := r.queue.SweepExpiredLeases(ctx); err != nil {
				r.log.Warn("lease sweep failed", logger.Error(err))
			}
			if _, err := r.queue.SweepExhausted(ctx); err != nil {
				r.log.Warn("exhausted-attempts sweep failed", logger.Error(err))
			}
			cancel()
		}
	}
}

func (r *Runtime) heartbeatLoop() {
	if r.registry == nil {
		return
	}
	interval := r.config.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	// First heartbeat immediately so the instance shows up before the
	// first interval elapses.
	r.beat()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.registry.MarkStopped(ctx, r.id); err != nil {
				r.log.Debug("final heartbeat failed", logger.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
			r.beat()
		}
	}
}

func (r *Runtime) beat() {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, string(t))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.registry.Beat(ctx, r.id, types, len(r.sem)); err != nil {
		r.log.Warn("heartbeat failed", logger.Error(err))
	}
}
