// Package memory is an in-process task store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"garment-studio/internal/taskstore"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type memStore struct {
	mu      sync.RWMutex
	records map[string]taskstore.Record
}

// NewStore creates an empty in-memory store.
func NewStore() taskstore.Store {
	return &memStore{records: make(map[string]taskstore.Record)}
}

func (s *memStore) Create(ctx context.Context, r *taskstore.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	r.ID = ulid.Make().String()
	r.CreatedAt, r.UpdatedAt = now, now
	s.records[r.ID] = clone(r)

	logrus.WithField("record_id", r.ID).Debug("Task record created")
	return r.ID, nil
}

func (s *memStore) Update(ctx context.Context, r *taskstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[r.ID]
	if !ok {
		return fmt.Errorf("%w: %s", taskstore.ErrNotFound, r.ID)
	}
	r.CreatedAt = old.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	s.records[r.ID] = clone(r)
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*taskstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", taskstore.ErrNotFound, id)
	}
	out := clone(&r)
	return &out, nil
}

func (s *memStore) FindTask(ctx context.Context, taskID string) (*taskstore.Record, error) {
	all, _ := s.List(ctx, 0)
	for _, r := range all {
		if r.TaskID == taskID {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: task %s", taskstore.ErrNotFound, taskID)
}

func (s *memStore) List(ctx context.Context, limit int) ([]*taskstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*taskstore.Record, 0, len(s.records))
	for _, r := range s.records {
		c := clone(&r)
		out = append(out, &c)
	}
	// ULIDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

func clone(r *taskstore.Record) taskstore.Record {
	c := *r
	c.Outputs = append([]string(nil), r.Outputs...)
	return c
}
