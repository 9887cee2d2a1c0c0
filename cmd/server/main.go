// Package main provides the entry point for the RadioForge API server and
// worker runtime. One process serves the HTTP API, runs the queue worker
// fleet, and ticks the scheduler; horizontal scale is more processes.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/radioforge/radioforge/domain/generation"
	"github.com/radioforge/radioforge/domain/health"
	"github.com/radioforge/radioforge/domain/indexer"
	"github.com/radioforge/radioforge/domain/knowledge"
	"github.com/radioforge/radioforge/domain/programming"
	"github.com/radioforge/radioforge/domain/rendering"
	"github.com/radioforge/radioforge/domain/retrieval"
	"github.com/radioforge/radioforge/domain/scheduler"
	"github.com/radioforge/radioforge/domain/segments"
	"github.com/radioforge/radioforge/domain/timesvc"
	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/internal/database"
	"github.com/radioforge/radioforge/internal/jobs"
	"github.com/radioforge/radioforge/internal/server"
	"github.com/radioforge/radioforge/internal/worker"
	"github.com/radioforge/radioforge/pkg/embeddings"
	"github.com/radioforge/radioforge/pkg/llm"
	"github.com/radioforge/radioforge/pkg/logger"
	"github.com/radioforge/radioforge/pkg/tts"
)

func main() {
	// Load .env files if present (for local development)
	// Order matters: .env.local overrides .env
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		// Logging
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		server.Module,

		// Durable queue and the worker fleet consuming it
		jobs.Module,
		worker.Module,

		// Model sidecars (embedding, script generation, speech synthesis)
		embeddings.Module,
		llm.Module,
		tts.Module,

		// Domain modules
		health.Module,
		timesvc.Module,
		knowledge.Module,
		indexer.Module,
		retrieval.Module,
		programming.Module,
		segments.Module,
		scheduler.Module,
		generation.Module,
		rendering.Module,
	).Run()
}
