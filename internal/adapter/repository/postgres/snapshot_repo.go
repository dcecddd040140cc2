package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// snapshotRepository implements domain.SnapshotRecorder
type snapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *DB) domain.SnapshotRecorder {
	return &snapshotRepository{db: db}
}

// RecordSnapshot inserts a vault snapshot
func (r *snapshotRepository) RecordSnapshot(ctx context.Context, s *domain.VaultSnapshot) error {
	query := `
		INSERT INTO vault_snapshots (id, taken_at, asset, status, total_assets, inactive_assets, active_assets, total_shares, fee_shares)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.Timestamp,
		string(s.Asset),
		string(s.Status),
		domain.Copy(s.TotalAssets).Dec(),
		domain.Copy(s.InactiveAssets).Dec(),
		domain.Copy(s.ActiveAssets).Dec(),
		domain.Copy(s.TotalShares).Dec(),
		domain.Copy(s.FeeShares).Dec(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert vault snapshot: %w", err)
	}

	return nil
}

// GetLatestSnapshot retrieves the most recent snapshot
func (r *snapshotRepository) GetLatestSnapshot(ctx context.Context) (*domain.VaultSnapshot, error) {
	query := `
		SELECT id, taken_at, asset, status, total_assets::TEXT, inactive_assets::TEXT,
		       active_assets::TEXT, total_shares::TEXT, fee_shares::TEXT
		FROM vault_snapshots
		ORDER BY taken_at DESC
		LIMIT 1
	`

	var (
		s             domain.VaultSnapshot
		asset, status string
		amounts       [5]string
	)
	err := r.db.QueryRowContext(ctx, query).Scan(
		&s.ID,
		&s.Timestamp,
		&asset,
		&status,
		&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4],
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	s.Asset = domain.Asset(asset)
	s.Status = domain.VaultStatus(status)

	targets := []**uint256.Int{&s.TotalAssets, &s.InactiveAssets, &s.ActiveAssets, &s.TotalShares, &s.FeeShares}
	for i, target := range targets {
		v, err := domain.ParseAmount(amounts[i])
		if err != nil {
			return nil, fmt.Errorf("failed to parse snapshot amount: %w", err)
		}
		*target = v
	}

	return &s, nil
}
