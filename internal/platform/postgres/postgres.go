// internal/platform/postgres/postgres.go
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"bloodbank/internal/apperr"
	"bloodbank/internal/config"
	"bloodbank/pkg/eventstore"
)

//go:embed schema.sql
var schema string

// Open connects to Postgres, retrying with exponential backoff while the
// database is still starting.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*sqlx.DB, error) {
	operation := func() (*sqlx.DB, error) {
		db, err := sqlx.Open("postgres", cfg.URL)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("open database: %w", err))
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		return db, nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("database not ready, retrying", zap.Error(err), zap.Duration("wait", wait))
	}

	db, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(cfg.ConnectTimeout),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// MapError classifies driver errors into apperr kinds, keeping the original
// error in the chain.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, eventstore.ErrConcurrencyConflict) {
		return fmt.Errorf("%w: record was modified concurrently: %w", apperr.ErrConflict, err)
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505":
		return fmt.Errorf("%w: duplicate %s: %w", apperr.ErrConflict, pqErr.Constraint, err)
	case "23503":
		return fmt.Errorf("%w: referenced record (%s): %w", apperr.ErrConflict, pqErr.Constraint, err)
	case "23514", "22P02", "22007", "22008":
		return fmt.Errorf("%w: %s: %w", apperr.ErrInvalid, pqErr.Message, err)
	}
	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
