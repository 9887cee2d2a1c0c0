package programming

import (
	"go.uber.org/fx"
)

// Module provides the programming domain
var Module = fx.Module("programming",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
