package scheduler

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/radioforge/radioforge/domain/programming"
	"github.com/radioforge/radioforge/domain/segments"
	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/internal/jobs"
	"github.com/radioforge/radioforge/internal/worker"
)

func newService(programs *programming.Repository, segs *segments.Service, queue *jobs.Queue, cfg *config.Config, log *slog.Logger) *Service {
	return NewService(programs, segs, queue, cfg.Scheduler, log)
}

func newTicker(service *Service, cfg *config.Config, log *slog.Logger) *Ticker {
	return NewTicker(service, cfg.Scheduler, log)
}

// Module provides the scheduler domain: the periodic ticker, the on-demand
// endpoint and the schedule_hour job handler.
var Module = fx.Module("scheduler",
	fx.Provide(newService),
	fx.Provide(newTicker),
	fx.Provide(NewHandler),
	fx.Provide(worker.AsHandler(NewHourHandler)),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(func(lc fx.Lifecycle, ticker *Ticker) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error { return ticker.Start(ctx) },
			OnStop:  func(ctx context.Context) error { return ticker.Stop(ctx) },
		})
	}),
)
