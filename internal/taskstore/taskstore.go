// Package taskstore records submissions made from this machine so their
// results can be found again after the window is closed.
package taskstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for an unknown record ID.
var ErrNotFound = errors.New("task record not found")

// Record is one submission.
type Record struct {
	ID        string // ULID assigned by the store
	TaskID    string // remote task id, empty until accepted
	Prompt    string
	Images    int
	Phase     string
	Outputs   []string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists records.
type Store interface {
	// Create assigns an ID and timestamps and stores r.
	Create(ctx context.Context, r *Record) (string, error)
	// Update replaces the stored record with r.ID.
	Update(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// FindTask returns the newest record for a remote task id.
	FindTask(ctx context.Context, taskID string) (*Record, error)
	// List returns up to limit records, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}
