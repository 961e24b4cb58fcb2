// Package memory provides an in-memory implementation of storage.RunStore
// for tests and one-off benchmark sessions. Runs are lost when the process
// exits. An optional size limit evicts the oldest run first.
package memory

import (
	"cmp"
	"container/list"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/rhuss/llmclient/pkg/debug"
	"github.com/rhuss/llmclient/pkg/storage"
)

// Store is an in-memory RunStore with optional FIFO eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*list.Element
	order   *list.List // front = newest, back = oldest; values are *storage.Run
	maxSize int        // 0 = unlimited
}

var _ storage.RunStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the oldest run is evicted when the
// limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[uuid.UUID]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// SaveRun stores a copy of run.
func (s *Store) SaveRun(_ context.Context, run *storage.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[run.ID]; exists {
		return storage.ErrConflict
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	s.entries[run.ID] = s.order.PushFront(clone(run))
	return nil
}

// GetRun returns a copy of the run with the given ID.
func (s *Store) GetRun(_ context.Context, id uuid.UUID) (*storage.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	elem, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(elem.Value.(*storage.Run)), nil
}

// ListRuns returns copies of stored runs, newest CreatedAt first. Runs with
// equal timestamps are ordered by ID.
func (s *Store) ListRuns(_ context.Context, opts storage.ListOptions) ([]*storage.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := []*storage.Run{}
	for e := s.order.Front(); e != nil; e = e.Next() {
		run := e.Value.(*storage.Run)
		if opts.Model != "" && run.Model != opts.Model {
			continue
		}
		matches = append(matches, clone(run))
	}

	slices.SortStableFunc(matches, func(a, b *storage.Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	if limit := opts.EffectiveLimit(); len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Len returns the number of stored runs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the run that was saved first.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.order.Back()
	if back == nil {
		return
	}
	run := s.order.Remove(back).(*storage.Run)
	delete(s.entries, run.ID)
	debug.Log("storage", "evicted run", "id", run.ID, "model", run.Model)
}

func clone(r *storage.Run) *storage.Run {
	c := *r
	c.Durations = slices.Clone(r.Durations)
	c.FirstContent = slices.Clone(r.FirstContent)
	return &c
}
