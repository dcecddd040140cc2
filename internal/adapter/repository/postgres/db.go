package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=cellar sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates the event and snapshot tables when missing
func (db *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vault_events (
			id          UUID PRIMARY KEY,
			seq         BIGSERIAL UNIQUE,
			kind        TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			caller      TEXT NOT NULL DEFAULT '',
			receiver    TEXT NOT NULL DEFAULT '',
			owner       TEXT NOT NULL DEFAULT '',
			asset_in    TEXT NOT NULL DEFAULT '',
			asset_out   TEXT NOT NULL DEFAULT '',
			amount_in   NUMERIC(78, 0) NOT NULL DEFAULT 0,
			amount_out  NUMERIC(78, 0) NOT NULL DEFAULT 0,
			shares      NUMERIC(78, 0) NOT NULL DEFAULT 0,
			flag        BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vault_events_kind ON vault_events(kind)`,
		`CREATE TABLE IF NOT EXISTS vault_snapshots (
			id              UUID PRIMARY KEY,
			taken_at        TIMESTAMPTZ NOT NULL,
			asset           TEXT NOT NULL,
			status          TEXT NOT NULL,
			total_assets    NUMERIC(78, 0) NOT NULL,
			inactive_assets NUMERIC(78, 0) NOT NULL,
			active_assets   NUMERIC(78, 0) NOT NULL,
			total_shares    NUMERIC(78, 0) NOT NULL,
			fee_shares      NUMERIC(78, 0) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vault_snapshots_taken_at ON vault_snapshots(taken_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
