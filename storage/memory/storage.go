package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/terraskye/eventstore"
)

var _ eventstore.Storage = (*Storage)(nil)

// Storage is an in-memory eventstore.Storage, primarily for tests and
// single-process setups. It enforces both uniqueness invariants and assigns
// insertion ids from a single monotonic counter.
type Storage struct {
	mu      sync.RWMutex
	entries []eventstore.StoredEntry
	streams map[streamKey]struct{}
	commits map[commitKey]struct{}
	lastID  int64
}

type streamKey struct {
	bucketID      string
	streamID      string
	streamVersion int64
}

type commitKey struct {
	bucketID    string
	changeSetID string
}

// New creates an empty in-memory storage.
func New() *Storage {
	return &Storage{
		streams: make(map[streamKey]struct{}),
		commits: make(map[commitKey]struct{}),
	}
}

// Write implements eventstore.Storage.
func (s *Storage) Write(ctx context.Context, entry eventstore.StoredEntry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ck := commitKey{bucketID: entry.BucketID, changeSetID: entry.ChangeSetID}
	if _, exists := s.commits[ck]; exists {
		return 0, &eventstore.DuplicateError{
			BucketID:    entry.BucketID,
			ChangeSetID: entry.ChangeSetID,
		}
	}
	sk := streamKey{bucketID: entry.BucketID, streamID: entry.StreamID, streamVersion: entry.StreamVersion}
	if _, exists := s.streams[sk]; exists {
		return 0, &eventstore.ConflictError{
			BucketID:      entry.BucketID,
			StreamID:      entry.StreamID,
			StreamVersion: entry.StreamVersion,
		}
	}

	s.lastID++
	entry.InsertionID = s.lastID
	s.entries = append(s.entries, entry)
	s.streams[sk] = struct{}{}
	s.commits[ck] = struct{}{}
	return entry.InsertionID, nil
}

// Query implements eventstore.Storage.
func (s *Storage) Query(ctx context.Context, q eventstore.Query, offset, limit int) ([]eventstore.StoredEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var matched []eventstore.StoredEntry
	for _, entry := range s.entries {
		if q.Matches(entry) {
			matched = append(matched, entry)
		}
	}
	s.mu.RUnlock()

	switch q.Order {
	case eventstore.OrderVersion:
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].StreamVersion < matched[j].StreamVersion
		})
	default:
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].InsertionID < matched[j].InsertionID
		})
	}

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Count implements eventstore.Storage.
func (s *Storage) Count(ctx context.Context, q eventstore.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, entry := range s.entries {
		if q.Matches(entry) {
			count++
		}
	}
	return count, nil
}
