package postgres

import (
	"context"
	"fmt"

	"github.com/simaogato/cellar-backend/internal/domain"
)

// eventRepository implements domain.EventRecorder
type eventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB) domain.EventRecorder {
	return &eventRepository{db: db}
}

// RecordEvent inserts a committed vault event
func (r *eventRepository) RecordEvent(ctx context.Context, event *domain.Event) error {
	query := `
		INSERT INTO vault_events (id, kind, occurred_at, caller, receiver, owner, asset_in, asset_out, amount_in, amount_out, shares, flag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		string(event.Kind),
		event.Timestamp,
		string(event.Caller),
		string(event.Receiver),
		string(event.Owner),
		string(event.AssetIn),
		string(event.AssetOut),
		domain.Copy(event.AmountIn).Dec(),
		domain.Copy(event.AmountOut).Dec(),
		domain.Copy(event.Shares).Dec(),
		event.Flag,
	)
	if err != nil {
		return fmt.Errorf("failed to insert vault event: %w", err)
	}

	return nil
}

// ListEvents retrieves events in recording order with pagination
func (r *eventRepository) ListEvents(ctx context.Context, limit, offset int) ([]*domain.Event, error) {
	query := `
		SELECT id, kind, occurred_at, caller, receiver, owner, asset_in, asset_out,
		       amount_in::TEXT, amount_out::TEXT, shares::TEXT, flag
		FROM vault_events
		ORDER BY seq ASC
		LIMIT $1 OFFSET $2
	`
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var (
			e                                      domain.Event
			kind, caller, receiver, owner          string
			assetIn, assetOut                      string
			amountInStr, amountOutStr, sharesStr   string
		)
		if err := rows.Scan(&e.ID, &kind, &e.Timestamp, &caller, &receiver, &owner, &assetIn, &assetOut,
			&amountInStr, &amountOutStr, &sharesStr, &e.Flag); err != nil {
			return nil, fmt.Errorf("failed to scan vault event: %w", err)
		}
		e.Kind = domain.EventKind(kind)
		e.Caller, e.Receiver, e.Owner = domain.Address(caller), domain.Address(receiver), domain.Address(owner)
		e.AssetIn, e.AssetOut = domain.Asset(assetIn), domain.Asset(assetOut)

		if e.AmountIn, err = domain.ParseAmount(amountInStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount_in: %w", err)
		}
		if e.AmountOut, err = domain.ParseAmount(amountOutStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount_out: %w", err)
		}
		if e.Shares, err = domain.ParseAmount(sharesStr); err != nil {
			return nil, fmt.Errorf("failed to parse shares: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vault events: %w", err)
	}

	return events, nil
}
