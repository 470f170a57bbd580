package store

import (
	"context"
	"sync"
	"time"

	"github.com/streamio/streamio-go/pkg/wire"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Data is deep-copied on the way in and out so callers never share state
// with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates a new in-memory cache store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Initialize deletes expired entries.
func (s *MemoryStore) Initialize(ctx context.Context) error {
	_, err := s.Sweep(ctx, time.Now())
	return err
}

// Get returns a copy of the entry for id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	e, exists := s.entries[id]
	s.mu.RUnlock()
	if !exists {
		return nil, ErrNotFound
	}

	data, err := wire.Clone(e.Data)
	if err != nil {
		return nil, err
	}
	cp := *e
	cp.Data = data
	return &cp, nil
}

// Put stores a copy of data under id.
func (s *MemoryStore) Put(ctx context.Context, id string, data any, meta Meta) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkID(id); err != nil {
		return "", err
	}

	stored, err := wire.Clone(data)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current string
	if e, exists := s.entries[id]; exists {
		current = e.Revision
	}
	if err := checkRevision(id, meta.Revision, current); err != nil {
		return "", err
	}

	rev, err := nextRevision(current, stored)
	if err != nil {
		return "", err
	}
	s.entries[id] = &Entry{
		ID:       id,
		Data:     stored,
		Hash:     meta.Hash,
		Revision: rev,
		UserID:   meta.UserID,
		Expire:   meta.Expire,
	}
	return rev, nil
}

// Delete removes the entry for id.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

// Sweep deletes entries expired at now.
func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
