package jobs

import (
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
)

// Module provides the shared durable queue. Domain modules enqueue through
// it and register handlers with the worker runtime; nobody builds a second
// queue instance.
var Module = fx.Module("jobs",
	fx.Provide(func(db bun.IDB, log *slog.Logger) *Queue {
		return NewQueue(db, DefaultQueueConfig(), log)
	}),
)
