package fixtures

import (
	"context"
	"sync"

	es "github.com/terraskye/eventstore"
)

var _ es.Storage = (*StorageSpy)(nil)

// StorageSpy wraps a Storage, tracking calls and allowing injected
// behavior. The zero overrides delegate to the wrapped storage.
type StorageSpy struct {
	Next es.Storage

	// Function overrides for custom behavior
	WriteFn func(ctx context.Context, entry es.StoredEntry) (int64, error)
	QueryFn func(ctx context.Context, q es.Query, offset, limit int) ([]es.StoredEntry, error)
	CountFn func(ctx context.Context, q es.Query) (int64, error)

	mu         sync.Mutex
	writeCalls int
	queryCalls int
	countCalls int
}

// NewStorageSpy creates a spy delegating to next.
func NewStorageSpy(next es.Storage) *StorageSpy {
	return &StorageSpy{Next: next}
}

func (s *StorageSpy) Write(ctx context.Context, entry es.StoredEntry) (int64, error) {
	s.mu.Lock()
	s.writeCalls++
	s.mu.Unlock()
	if s.WriteFn != nil {
		return s.WriteFn(ctx, entry)
	}
	return s.Next.Write(ctx, entry)
}

func (s *StorageSpy) Query(ctx context.Context, q es.Query, offset, limit int) ([]es.StoredEntry, error) {
	s.mu.Lock()
	s.queryCalls++
	s.mu.Unlock()
	if s.QueryFn != nil {
		return s.QueryFn(ctx, q, offset, limit)
	}
	return s.Next.Query(ctx, q, offset, limit)
}

func (s *StorageSpy) Count(ctx context.Context, q es.Query) (int64, error) {
	s.mu.Lock()
	s.countCalls++
	s.mu.Unlock()
	if s.CountFn != nil {
		return s.CountFn(ctx, q)
	}
	return s.Next.Count(ctx, q)
}

// WriteCalls returns the number of Write invocations.
func (s *StorageSpy) WriteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCalls
}

// QueryCalls returns the number of Query invocations.
func (s *StorageSpy) QueryCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCalls
}

// CountCalls returns the number of Count invocations.
func (s *StorageSpy) CountCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countCalls
}
