package rendering

import (
	"go.uber.org/fx"

	"github.com/radioforge/radioforge/internal/worker"
)

// Module provides the rendering domain: the asset store and the render and
// mastering job handlers.
var Module = fx.Module("rendering",
	fx.Provide(NewAssetStore),
	fx.Provide(
		worker.AsHandler(NewRenderHandler),
		worker.AsHandler(NewMasterHandler),
	),
)
