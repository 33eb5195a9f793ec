// Package main is the entry point for the keepsake server: a personal
// photo and video indexing service built around a Postgres-backed task
// queue. It wires configuration, logging, the database, the task executor
// and the HTTP API, then runs until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/keepsake-api/internal/config"
	"github.com/phrazzld/keepsake-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command (up, down, status) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		log.Fatalf("keepsake: %v", err)
	}
}

// run loads configuration, performs optional one-shot migration commands,
// and otherwise starts the full application.
func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(logger.Config{Level: cfg.Server.LogLevel})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if migrateCmd != "" {
		defer closeDatabase(db, appLogger)
		return runMigrationCommand(db, migrateCmd, appLogger)
	}

	// Schema is migrated on every normal startup; goose makes this a no-op
	// when already current.
	if err := migrateUp(db, appLogger); err != nil {
		closeDatabase(db, appLogger)
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		closeDatabase(db, appLogger)
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	slog.Info("keepsake server starting",
		"port", cfg.Server.Port,
		"worker_count", cfg.Worker.Count,
		"library_root", cfg.Library.Root)

	return app.Run(ctx)
}
