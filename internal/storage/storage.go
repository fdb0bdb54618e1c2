// Package storage mirrors run results into Postgres.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib" // registers the "pgx" driver
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS fqdn_runs (
	run_id          TEXT PRIMARY KEY,
	finished_at     TIMESTAMPTZ NOT NULL,
	targets_total   INT NOT NULL,
	targets_skipped INT NOT NULL,
	targets_crawled INT NOT NULL,
	targets_failed  INT NOT NULL,
	domains_total   INT NOT NULL,
	domains_added   INT NOT NULL,
	domains_removed INT NOT NULL,
	duration_ms     BIGINT NOT NULL,
	mode            TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS fqdn_domains (
	name           TEXT PRIMARY KEY,
	root           TEXT NOT NULL,
	organization   BOOLEAN NOT NULL,
	first_seen_run TEXT NOT NULL,
	last_seen_run  TEXT NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS fqdn_outcomes (
	run_id   TEXT NOT NULL,
	target   TEXT NOT NULL,
	family   TEXT NOT NULL,
	source   TEXT NOT NULL,
	pages    INT NOT NULL,
	success  BOOLEAN NOT NULL,
	reason   TEXT NOT NULL,
	domains  INT NOT NULL,
	PRIMARY KEY (run_id, target)
);`

type Storage struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStorage(db *sql.DB, logger zerolog.Logger) *Storage {
	return &Storage{db: db, logger: logger.With().Str("component", "storage").Logger()}
}

// Connect opens the database, retrying while it comes up, and applies the
// schema.
func Connect(ctx context.Context, url string, attempts int, logger zerolog.Logger) (*Storage, error) {
	db, err := waitForDB(ctx, url, attempts, logger)
	if err != nil {
		return nil, err
	}
	s := NewStorage(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func waitForDB(ctx context.Context, url string, attempts int, logger zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return db, nil
		}
		logger.Warn().Err(err).Int("attempt", i+1).Msg("waiting for database")
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	db.Close()
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempts, err)
}

func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
