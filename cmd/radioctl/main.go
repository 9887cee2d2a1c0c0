// Package main provides radioctl, the station operations CLI:
//
//	radioctl migrate {up|down|status}   schema migrations
//	radioctl seed -file seed.yaml       load programming fixtures
//	radioctl cleanup -force             purge pipeline state, keep config
package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/radioforge/radioforge/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var runErr error
	switch os.Args[1] {
	case "migrate":
		runErr = runMigrate(cfg, os.Args[2:])
	case "seed":
		runErr = runSeed(cfg, os.Args[2:])
	case "cleanup":
		runErr = runCleanup(cfg, os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Usage: radioctl <command> [flags]

Commands:
  migrate up        Apply pending migrations
  migrate down      Roll back the last migration
  migrate status    Show migration status
  seed              Load station fixtures from a YAML file (-file seed.yaml)
  cleanup           Purge segments, jobs, dead letters and worker heartbeats
                    (-force required; programming and knowledge data are kept)`)
}

// openDB opens a bun connection for CLI use. The CLI is short-lived, so no
// pool tuning.
func openDB(cfg *config.Config) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN())))
	return bun.NewDB(sqldb, pgdialect.New())
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
