package memory

import (
	"context"
	"sync"

	"github.com/simaogato/cellar-backend/internal/domain"
)

// Recorder keeps events and snapshots in process memory
type Recorder struct {
	mu        sync.RWMutex
	events    []*domain.Event
	snapshots []*domain.VaultSnapshot
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordEvent appends a copy of event
func (r *Recorder) RecordEvent(_ context.Context, event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := *event
	r.events = append(r.events, &e)
	return nil
}

// ListEvents returns events in recording order. A non-positive limit returns everything after offset.
func (r *Recorder) ListEvents(_ context.Context, limit, offset int) ([]*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(r.events) {
		return []*domain.Event{}, nil
	}
	end := len(r.events)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]*domain.Event, 0, end-offset)
	for _, e := range r.events[offset:end] {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

// RecordSnapshot appends a copy of snapshot
func (r *Recorder) RecordSnapshot(_ context.Context, snapshot *domain.VaultSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := *snapshot
	r.snapshots = append(r.snapshots, &s)
	return nil
}

// GetLatestSnapshot returns the most recently recorded snapshot
func (r *Recorder) GetLatestSnapshot(_ context.Context) (*domain.VaultSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.snapshots) == 0 {
		return nil, domain.ErrSnapshotNotFound
	}
	s := *r.snapshots[len(r.snapshots)-1]
	return &s, nil
}

// Close is a no-op
func (r *Recorder) Close() error {
	return nil
}
