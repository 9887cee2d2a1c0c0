package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/internal/migrate"
)

func runMigrate(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("migrate requires a direction: up, down or status")
	}

	db := openDB(cfg)
	defer db.Close()

	zlog, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()

	migrator := migrate.NewMigrator(db, zlog)
	ctx := context.Background()

	switch args[0] {
	case "up":
		return migrator.Up(ctx)
	case "down":
		return migrator.Down(ctx)
	case "status":
		return migrator.Status(ctx)
	default:
		return fmt.Errorf("unknown migrate direction %q (want up, down or status)", args[0])
	}
}
