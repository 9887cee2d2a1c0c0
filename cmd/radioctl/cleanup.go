package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/radioforge/radioforge/internal/config"
)

// pipelineTables is what cleanup purges, in dependency order. Programming
// configuration and the knowledge base are deliberately not listed.
var pipelineTables = []string{
	"radio.segment_transitions",
	"radio.segments",
	"radio.dead_letter_queue",
	"radio.jobs",
	"radio.health_checks",
	"radio.assets",
}

func runCleanup(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	force := fs.Bool("force", false, "Actually delete; without it cleanup only reports row counts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db := openDB(cfg)
	defer db.Close()

	ctx := context.Background()

	for _, table := range pipelineTables {
		count, err := countRows(ctx, db, table)
		if err != nil {
			return fmt.Errorf("count %s: %w", table, err)
		}
		fmt.Printf("%-30s %d rows\n", table, count)
	}

	if !*force {
		fmt.Println("\nDry run; pass -force to delete")
		return nil
	}

	for _, table := range pipelineTables {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("purge %s: %w", table, err)
		}
	}

	fmt.Println("\nPipeline state purged; programming and knowledge data kept")
	return nil
}

func countRows(ctx context.Context, db *bun.DB, table string) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, "SELECT count(*) FROM "+table).Scan(&count)
	return count, err
}
