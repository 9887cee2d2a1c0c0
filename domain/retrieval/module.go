package retrieval

import (
	"go.uber.org/fx"
)

// Module provides the retrieval domain
var Module = fx.Module("retrieval",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
