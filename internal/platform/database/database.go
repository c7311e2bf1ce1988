// Package database opens the Postgres connection and brings the schema to the
// latest revision.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/cafeteria-hr/service_layer/internal/config"
	"github.com/cafeteria-hr/service_layer/internal/logging"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open connects to Postgres with the configured pool limits and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate applies all pending migrations. The attempt loop covers the window
// where the database container is still starting: a bounded number of retries
// with a fixed interval, then a hard failure instead of hanging forever.
func Migrate(ctx context.Context, db *sql.DB, cfg config.DatabaseConfig, log *logging.Logger) error {
	attempts := cfg.MigrateAttempts
	if attempts <= 0 {
		attempts = 1
	}
	interval := cfg.MigrateInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = migrateOnce(db)
		if lastErr == nil {
			if log != nil {
				log.Info("database schema up to date")
			}
			return nil
		}
		if log != nil {
			log.WithError(lastErr).Warnf("migration attempt %d/%d failed", attempt, attempts)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("migrations failed after %d attempts: %w", attempts, lastErr)
}

func migrateOnce(db *sql.DB) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
