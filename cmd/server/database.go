package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phrazzld/keepsake-api/internal/config"
	"github.com/phrazzld/keepsake-api/internal/platform/postgres"
	"github.com/pressly/goose/v3"
)

// setupAppDatabase opens the database connection pool and verifies it with
// a ping.
func setupAppDatabase(cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		closeDatabase(db, logger)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return db, nil
}

// closeDatabase closes the pool, logging rather than failing on error.
func closeDatabase(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("failed to close database connection", "error", err)
	}
}

// configureGoose points goose at the embedded migration files.
func configureGoose() error {
	goose.SetBaseFS(postgres.MigrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// migrateUp applies any pending migrations.
func migrateUp(db *sql.DB, logger *slog.Logger) error {
	if err := configureGoose(); err != nil {
		return err
	}
	if err := goose.Up(db, postgres.MigrationsDir); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	logger.Info("database schema is up to date")
	return nil
}

// runMigrationCommand executes a one-shot migration command for the
// -migrate flag.
func runMigrationCommand(db *sql.DB, cmd string, logger *slog.Logger) error {
	if err := configureGoose(); err != nil {
		return err
	}

	logger.Info("running migration command", "command", cmd)
	switch cmd {
	case "up":
		return goose.Up(db, postgres.MigrationsDir)
	case "down":
		return goose.Down(db, postgres.MigrationsDir)
	case "status":
		return goose.Status(db, postgres.MigrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q (want up, down or status)", cmd)
	}
}
