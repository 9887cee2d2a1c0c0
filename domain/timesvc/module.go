package timesvc

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/radioforge/radioforge/internal/config"
)

func newService(cfg *config.Config, log *slog.Logger) *Service {
	return NewService(cfg.Time, log)
}

// Module provides the time service
var Module = fx.Module("timesvc",
	fx.Provide(newService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(func(lc fx.Lifecycle, svc *Service) {
		lc.Append(fx.Hook{
			OnStart: svc.Start,
			OnStop:  svc.Stop,
		})
	}),
)
