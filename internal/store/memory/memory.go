// Package memory is an in-process validation store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/drewdunne/prwatch/internal/store"
	"github.com/google/uuid"
)

var _ store.Store = (*Store)(nil)

// Store keeps records in insertion order.
type Store struct {
	mu      sync.RWMutex
	records []store.ValidationRecord
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{now: time.Now}
}

// Insert appends a copy of rec.
func (s *Store) Insert(ctx context.Context, rec *store.ValidationRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", store.Persistence(err)
	}
	if err := store.Check(rec); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now().UTC()
	stored.Findings.Findings = append([]string(nil), rec.Findings.Findings...)
	stored.Findings.Concerns = append([]string(nil), rec.Findings.Concerns...)
	s.records = append(s.records, stored)

	rec.ID = stored.ID
	rec.CreatedAt = stored.CreatedAt
	return stored.ID, nil
}

// List returns matching records, newest first.
func (s *Store) List(ctx context.Context, filter store.Filter) ([]store.ValidationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []store.ValidationRecord{}
	for i := len(s.records) - 1; i >= 0; i-- {
		if !filter.Matches(&s.records[i]) {
			continue
		}
		result = append(result, s.records[i])
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id string) (*store.ValidationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.records {
		if s.records[i].ID == id {
			rec := s.records[i]
			return &rec, nil
		}
	}
	return nil, store.ErrNotFound
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
