package embeddings

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/pkg/logger"
)

// Module provides the embedding client. When no sidecar is configured the
// noop client is wired instead and retrieval degrades to lexical-only.
var Module = fx.Module("embeddings",
	fx.Provide(NewClient),
)

// NewClient selects the HTTP or noop implementation based on config.
func NewClient(cfg *config.Config, log *slog.Logger) Client {
	if !cfg.Embeddings.IsEnabled() {
		log.Warn("embedding sidecar not configured, vector search disabled",
			logger.Scope("embeddings"))
		return NewNoopClient()
	}
	return NewHTTPClient(cfg.Embeddings, log)
}
