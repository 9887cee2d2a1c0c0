package indexer

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/internal/worker"
	"github.com/radioforge/radioforge/pkg/embeddings"
	"github.com/uptrace/bun"
)

func newService(db bun.IDB, embedder embeddings.Client, cfg *config.Config, log *slog.Logger) *Service {
	return NewService(NewRepository(db, log), embedder, cfg.Embeddings.Model, log)
}

// Module provides the indexer domain and its job handlers
var Module = fx.Module("indexer",
	fx.Provide(newService),
	fx.Provide(NewHandler),
	fx.Provide(
		worker.AsHandler(NewIndexHandler),
		worker.AsHandler(NewEmbedHandler),
	),
	fx.Invoke(RegisterRoutes),
)
