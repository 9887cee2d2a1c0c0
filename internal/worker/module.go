package worker

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/internal/jobs"
)

// RuntimeParams collects the runtime dependencies plus every handler
// provided to the "job_handlers" value group by the domain modules.
type RuntimeParams struct {
	fx.In

	Queue    *jobs.Queue
	Registry *HeartbeatRegistry
	Config   *config.Config
	Log      *slog.Logger
	Handlers []Handler `group:"job_handlers"`
}

// Module wires the worker runtime into the application. Domain modules
// contribute handlers through the job_handlers group; the runtime starts
// after all of them are registered and drains on shutdown.
var Module = fx.Module("worker",
	fx.Provide(func(db bun.IDB, log *slog.Logger) *HeartbeatRegistry {
		return NewHeartbeatRegistry(db, log)
	}),
	fx.Provide(func(p RuntimeParams) *Runtime {
		rt := NewRuntime(p.Queue, p.Registry, p.Config.Worker, p.Log)
		for _, h := range p.Handlers {
			rt.Register(h)
		}
		return rt
	}),
	fx.Invoke(func(lc fx.Lifecycle, rt *Runtime) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return rt.Start(ctx)
			},
			OnStop: func(ctx context.Context) error {
				return rt.Stop(ctx)
			},
		})
	}),
)

// AsHandler annotates a handler constructor for the job_handlers group.
func AsHandler(constructor any) any {
	return fx.Annotate(constructor,
		fx.As(new(Handler)),
		fx.ResultTags(`group:"job_handlers"`),
	)
}
