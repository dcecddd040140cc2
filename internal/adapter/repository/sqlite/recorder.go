package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	_ "modernc.org/sqlite"

	"github.com/simaogato/cellar-backend/internal/domain"
)

// Recorder persists vault events and snapshots to a local SQLite file.
// Amounts are stored as decimal strings since they exceed 64 bits.
type Recorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewRecorder opens (or creates) the database and runs migrations
func NewRecorder(dbPath string) (*Recorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &Recorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *Recorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vault_events (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			kind       TEXT NOT NULL,
			timestamp  INTEGER NOT NULL,
			caller     TEXT,
			receiver   TEXT,
			owner      TEXT,
			asset_in   TEXT,
			asset_out  TEXT,
			amount_in  TEXT,
			amount_out TEXT,
			shares     TEXT,
			flag       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON vault_events(kind)`,

		`CREATE TABLE IF NOT EXISTS vault_snapshots (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			id              TEXT NOT NULL UNIQUE,
			timestamp       INTEGER NOT NULL,
			asset           TEXT,
			status          TEXT,
			total_assets    TEXT,
			inactive_assets TEXT,
			active_assets   TEXT,
			total_shares    TEXT,
			fee_shares      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON vault_snapshots(timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) RecordEvent(ctx context.Context, e *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vault_events
			(id, kind, timestamp, caller, receiver, owner, asset_in, asset_out, amount_in, amount_out, shares, flag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), string(e.Kind), e.Timestamp.UnixNano(),
		string(e.Caller), string(e.Receiver), string(e.Owner),
		string(e.AssetIn), string(e.AssetOut),
		dec(e.AmountIn), dec(e.AmountOut), dec(e.Shares), e.Flag,
	)
	if err != nil {
		return fmt.Errorf("insert vault event: %w", err)
	}
	return nil
}

// ListEvents returns events in recording order; limit <= 0 returns everything
func (r *Recorder) ListEvents(ctx context.Context, limit, offset int) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, timestamp, caller, receiver, owner, asset_in, asset_out, amount_in, amount_out, shares, flag
		FROM vault_events ORDER BY seq ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query vault events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var (
			id, kind                      string
			ts                            int64
			caller, receiver, owner       string
			assetIn, assetOut             string
			amountIn, amountOut, sharesIn string
			flag                          bool
		)
		if err := rows.Scan(&id, &kind, &ts, &caller, &receiver, &owner, &assetIn, &assetOut,
			&amountIn, &amountOut, &sharesIn, &flag); err != nil {
			return nil, fmt.Errorf("scan vault event: %w", err)
		}
		e := &domain.Event{
			Kind:      domain.EventKind(kind),
			Timestamp: time.Unix(0, ts),
			Caller:    domain.Address(caller),
			Receiver:  domain.Address(receiver),
			Owner:     domain.Address(owner),
			AssetIn:   domain.Asset(assetIn),
			AssetOut:  domain.Asset(assetOut),
			Flag:      flag,
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse event id: %w", err)
		}
		if err := parseAmounts(
			[]string{amountIn, amountOut, sharesIn},
			[]**uint256.Int{&e.AmountIn, &e.AmountOut, &e.Shares},
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *Recorder) RecordSnapshot(ctx context.Context, s *domain.VaultSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vault_snapshots
			(id, timestamp, asset, status, total_assets, inactive_assets, active_assets, total_shares, fee_shares)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.Timestamp.UnixNano(), string(s.Asset), string(s.Status),
		dec(s.TotalAssets), dec(s.InactiveAssets), dec(s.ActiveAssets), dec(s.TotalShares), dec(s.FeeShares),
	)
	if err != nil {
		return fmt.Errorf("insert vault snapshot: %w", err)
	}
	return nil
}

func (r *Recorder) GetLatestSnapshot(ctx context.Context) (*domain.VaultSnapshot, error) {
	var (
		id, asset, status string
		ts                int64
		amounts           [5]string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, timestamp, asset, status, total_assets, inactive_assets, active_assets, total_shares, fee_shares
		FROM vault_snapshots ORDER BY timestamp DESC, seq DESC LIMIT 1`,
	).Scan(&id, &ts, &asset, &status, &amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4])
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}

	s := &domain.VaultSnapshot{
		Timestamp: time.Unix(0, ts),
		Asset:     domain.Asset(asset),
		Status:    domain.VaultStatus(status),
	}
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse snapshot id: %w", err)
	}
	if err := parseAmounts(amounts[:], []**uint256.Int{
		&s.TotalAssets, &s.InactiveAssets, &s.ActiveAssets, &s.TotalShares, &s.FeeShares,
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (r *Recorder) Close() error {
	return r.db.Close()
}

func dec(x *uint256.Int) string {
	return domain.Copy(x).Dec()
}

func parseAmounts(values []string, targets []**uint256.Int) error {
	for i, v := range values {
		amount, err := domain.ParseAmount(v)
		if err != nil {
			return fmt.Errorf("parse amount %q: %w", v, err)
		}
		*targets[i] = amount
	}
	return nil
}
