package postgres

import (
	"context"
	"fmt"

	"github.com/simaogato/cellar-backend/internal/domain"
)

// Recorder persists vault events and snapshots in PostgreSQL
type Recorder struct {
	domain.EventRecorder
	domain.SnapshotRecorder
	db *DB
}

// NewRecorder connects, migrates and returns a Recorder
func NewRecorder(ctx context.Context, connectionString string) (*Recorder, error) {
	db, err := NewDB(connectionString)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Recorder{
		EventRecorder:    NewEventRepository(db),
		SnapshotRecorder: NewSnapshotRepository(db),
		db:               db,
	}, nil
}

// Close closes the underlying connection
func (r *Recorder) Close() error {
	return r.db.Close()
}
