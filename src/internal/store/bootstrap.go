package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"go.uber.org/zap"
)

type OpenOptions struct {
	URL          string
	Attempts     int
	Delay        time.Duration
	MaxOpenConns int
}

// Open connects to the document database, retrying the ping until it answers,
// the attempts run out or ctx ends. A handle whose ping failed is closed
// before the next attempt.
func Open(ctx context.Context, opts OpenOptions, logger *zap.Logger) (*sql.DB, error) {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		db, err := sql.Open("postgres", opts.URL)
		if err == nil {
			if opts.MaxOpenConns > 0 {
				db.SetMaxOpenConns(opts.MaxOpenConns)
				db.SetMaxIdleConns(opts.MaxOpenConns)
			}
			if err = db.PingContext(ctx); err == nil {
				logger.Info("store.Open: connected", zap.Int("attempt", attempt))
				return db, nil
			}
			_ = db.Close()
		}
		lastErr = err
		logger.Warn("store.Open: database not ready",
			zap.Int("attempt", attempt), zap.Int("attempts", opts.Attempts), zap.Error(err))
		if attempt == opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("open document store: %w", ctx.Err())
		case <-time.After(opts.Delay):
		}
	}
	return nil, fmt.Errorf("open document store after %d attempts: %w", opts.Attempts, lastErr)
}

// Migrate brings the schema to the newest version found in dir and returns
// that version.
func Migrate(db *sql.DB, dir string, logger *zap.Logger) (uint, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return 0, fmt.Errorf("schema driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("schema source %s: %w", dir, err)
	}

	logger.Debug("store.Migrate: start", zap.String("dir", dir))
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("store.Migrate: up failed", zap.Error(err))
		return 0, fmt.Errorf("schema up: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	logger.Info("store.Migrate: success", zap.Uint("version", version))
	return version, nil
}
