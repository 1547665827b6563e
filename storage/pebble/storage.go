// Package pebble provides a durable eventstore.Storage backed by an
// embedded Pebble database.
//
// Entries live under a lexicographically sortable keyspace (see keys.go);
// two index keyspaces enforce the stream-position and change-set-id
// uniqueness invariants. Every write commits a synced batch, so insertion
// ids reflect true write order and are durable when Write returns.
package pebble

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/terraskye/eventstore"
)

var _ eventstore.Storage = (*Storage)(nil)

// Options configures the Pebble storage.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// PebbleOptions allows advanced tuning. If nil, defaults are used.
	PebbleOptions *pebble.Options
}

// Storage is a Pebble-backed eventstore.Storage.
type Storage struct {
	db *pebble.DB

	mu     sync.Mutex
	lastID int64
}

// Open creates or opens the Pebble database and loads the insertion id
// counter.
func Open(opts Options) (*Storage, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}
	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	db, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", opts.DataDir, err)
	}

	s := &Storage{db: db}
	if meta, closer, err := db.Get(keyLastID); err == nil {
		if len(meta) >= 8 {
			s.lastID = int64(binary.BigEndian.Uint64(meta[:8]))
		}
		closer.Close()
	} else if !errors.Is(err, pebble.ErrNotFound) {
		db.Close()
		return nil, fmt.Errorf("pebble: load id counter: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Write implements eventstore.Storage. The batch is committed with a WAL
// sync before Write returns.
func (s *Storage) Write(ctx context.Context, entry eventstore.StoredEntry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dedupKey := keyDedup(entry.BucketID, entry.ChangeSetID)
	if err := s.keyAbsent(dedupKey); err != nil {
		if errors.Is(err, errKeyExists) {
			return 0, &eventstore.DuplicateError{
				BucketID:    entry.BucketID,
				ChangeSetID: entry.ChangeSetID,
			}
		}
		return 0, err
	}
	streamKey := keyStream(entry.BucketID, entry.StreamID, uint64(entry.StreamVersion))
	if err := s.keyAbsent(streamKey); err != nil {
		if errors.Is(err, errKeyExists) {
			return 0, &eventstore.ConflictError{
				BucketID:      entry.BucketID,
				StreamID:      entry.StreamID,
				StreamVersion: entry.StreamVersion,
			}
		}
		return 0, err
	}

	s.lastID++
	entry.InsertionID = s.lastID

	var idv [8]byte
	binary.BigEndian.PutUint64(idv[:], uint64(entry.InsertionID))

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyEntry(entry.BucketID, uint64(entry.InsertionID)), encodeEntry(entry), nil); err != nil {
		return 0, err
	}
	if err := b.Set(streamKey, idv[:], nil); err != nil {
		return 0, err
	}
	if err := b.Set(dedupKey, idv[:], nil); err != nil {
		return 0, err
	}
	if err := b.Set(keyLastID, idv[:], nil); err != nil {
		return 0, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		s.lastID--
		return 0, fmt.Errorf("pebble: commit entry: %w", err)
	}
	return entry.InsertionID, nil
}

var errKeyExists = errors.New("pebble: key exists")

func (s *Storage) keyAbsent(key []byte) error {
	_, closer, err := s.db.Get(key)
	if err == nil {
		closer.Close()
		return errKeyExists
	}
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	return err
}

// Query implements eventstore.Storage.
func (s *Storage) Query(ctx context.Context, q eventstore.Query, offset, limit int) ([]eventstore.StoredEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Order == eventstore.OrderVersion && q.StreamID != "" {
		return s.queryStream(q, offset, limit)
	}
	return s.queryBucket(q, offset, limit)
}

// queryBucket scans the bucket's entry keyspace: entries are stored under
// big-endian insertion ids, so iteration order is total commit order.
func (s *Storage) queryBucket(q eventstore.Query, offset, limit int) ([]eventstore.StoredEntry, error) {
	prefix := keyEntryPrefix(q.BucketID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []eventstore.StoredEntry
	skipped := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if skipped < offset {
			skipped++
			continue
		}
		entry, err := decodeEntry(iter.Value())
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, iter.Error()
}

// queryStream scans the stream index between the version bounds and
// resolves each hit to its entry. MinVersion is exclusive, MaxVersion
// inclusive.
func (s *Storage) queryStream(q eventstore.Query, offset, limit int) ([]eventstore.StoredEntry, error) {
	if q.MinVersion >= q.MaxVersion || q.MaxVersion < 1 {
		return nil, nil
	}
	min := q.MinVersion
	if min < 0 {
		min = 0
	}
	low := keyStream(q.BucketID, q.StreamID, uint64(min)+1)
	hi := keyStream(q.BucketID, q.StreamID, uint64(q.MaxVersion))
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: low,
		UpperBound: append(hi, 0x00),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []eventstore.StoredEntry
	skipped := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if skipped < offset {
			skipped++
			continue
		}
		if len(iter.Value()) < 8 {
			return nil, errCorruptRecord
		}
		insertionID := binary.BigEndian.Uint64(iter.Value()[:8])
		entry, err := s.getEntry(q.BucketID, insertionID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, iter.Error()
}

func (s *Storage) getEntry(bucketID string, insertionID uint64) (eventstore.StoredEntry, error) {
	val, closer, err := s.db.Get(keyEntry(bucketID, insertionID))
	if err != nil {
		return eventstore.StoredEntry{}, fmt.Errorf("pebble: entry #%d: %w", insertionID, err)
	}
	defer closer.Close()
	return decodeEntry(val)
}

// Count implements eventstore.Storage. Only index keys are touched; entry
// bodies are never materialized.
func (s *Storage) Count(ctx context.Context, q eventstore.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var low, hi []byte
	if q.StreamID != "" {
		if q.MinVersion >= q.MaxVersion || q.MaxVersion < 1 {
			return 0, nil
		}
		min := q.MinVersion
		if min < 0 {
			min = 0
		}
		low = keyStream(q.BucketID, q.StreamID, uint64(min)+1)
		hi = append(keyStream(q.BucketID, q.StreamID, uint64(q.MaxVersion)), 0x00)
	} else {
		prefix := keyEntryPrefix(q.BucketID)
		low, hi = prefix, upperBound(prefix)
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var count int64
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	return count, iter.Error()
}
