package llm

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/pkg/logger"
)

// Module provides the completion client.
var Module = fx.Module("llm",
	fx.Provide(NewClient),
)

// NewClient selects the HTTP or noop implementation based on config.
func NewClient(cfg *config.Config, log *slog.Logger) Client {
	if !cfg.LLM.IsEnabled() {
		log.Warn("script generation backend not configured, template fallback in effect",
			logger.Scope("llm"))
		return NewNoopClient()
	}
	return NewHTTPClient(cfg.LLM, log)
}
