package generation

import (
	"go.uber.org/fx"

	"github.com/radioforge/radioforge/internal/worker"
)

// Module provides the segment generation worker
var Module = fx.Module("generation",
	fx.Provide(worker.AsHandler(NewMakeHandler)),
)
