package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/pkg/logger"
)

// Ticker runs the materialization pass on a cron interval. One tick also
// runs immediately at startup so a fresh deployment has a full horizon
// before the first interval elapses.
type Ticker struct {
	service *Service
	cron    *cron.Cron
	cfg     config.SchedulerConfig
	log     *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewTicker creates a new scheduler ticker
func NewTicker(service *Service, cfg config.SchedulerConfig, log *slog.Logger) *Ticker {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 15 * time.Minute
	}
	return &Ticker{
		service: service,
		cron:    cron.New(),
		cfg:     cfg,
		log:     log.With(logger.Scope("scheduler.ticker")),
	}
}

// Start begins the periodic ticks
func (t *Ticker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running || !t.cfg.Enabled {
		if !t.cfg.Enabled {
			t.log.Info("scheduler disabled, skipping ticks")
		}
		return nil
	}

	schedule := "@every " + t.cfg.TickInterval.String()
	if _, err := t.cron.AddFunc(schedule, t.tick); err != nil {
		return err
	}

	t.cron.Start()
	t.running = true
	t.log.Info("scheduler ticker started", slog.Duration("interval", t.cfg.TickInterval))

	go t.tick()
	return nil
}

// Stop gracefully stops the ticker
func (t *Ticker) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}

	stopCtx := t.cron.Stop()
	select {
	case <-stopCtx.Done():
		t.log.Info("scheduler ticker stopped")
	case <-ctx.Done():
		t.log.Warn("scheduler ticker stop timeout")
	}

	t.running = false
	return nil
}

func (t *Ticker) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := t.service.Tick(ctx, time.Now()); err != nil {
		t.log.Error("scheduler tick failed", logger.Error(err))
	}
}
