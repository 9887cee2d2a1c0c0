package segments

import (
	"go.uber.org/fx"
)

// Module provides the segments domain
var Module = fx.Module("segments",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
