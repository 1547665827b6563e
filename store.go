package eventstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultFetchBatchSize is the number of rows fetched per backend round
// trip during lazy iteration.
const DefaultFetchBatchSize = 500

var _ EventStore = (*Store)(nil)

// Store is the persistence engine: it serializes change sets into stored
// entries, routes them to the right backend by bucket, and reconstructs
// change sets on the way out through a lazy batched cursor.
type Store struct {
	router     Router
	serializer Serializer
	notifier   *CommitNotifier
	batchSize  int
	now        func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFetchBatchSize sets the rows fetched per backend round trip during
// lazy iteration. Values below 1 keep the default.
//
// A batch shorter than the configured size ends the scan without another
// round trip; when the result count is an exact multiple of the batch size
// one extra empty fetch is needed to detect the end.
func WithFetchBatchSize(size int) StoreOption {
	return func(s *Store) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithNotifier attaches a commit notifier; every successfully committed
// append is scheduled for asynchronous listener delivery.
func WithNotifier(notifier *CommitNotifier) StoreOption {
	return func(s *Store) {
		s.notifier = notifier
	}
}

// NewStore creates a persistence engine over the given bucket routing and
// serialization strategy.
func NewStore(router Router, serializer Serializer, options ...StoreOption) *Store {
	s := &Store{
		router:     router,
		serializer: serializer,
		batchSize:  DefaultFetchBatchSize,
		now:        time.Now,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// PersistChanges implements EventStore.
func (s *Store) PersistChanges(ctx context.Context, tx *Tx, changes *ChangeSet) error {
	if changes == nil {
		return ErrNilChangeSet
	}
	if changes.BucketID == "" {
		return ErrMissingBucketID
	}
	if changes.StreamID == "" {
		return ErrMissingStreamID
	}

	body, err := s.serializer.Serialize(changes.Events)
	if err != nil {
		return WrapStoreError(fmt.Errorf("serialize change set %s: %w", changes.ChangeSetID, err))
	}

	storage, err := s.router.StorageFor(changes.BucketID)
	if err != nil {
		return WrapStoreError(fmt.Errorf("route bucket %q: %w", changes.BucketID, err))
	}

	entry := StoredEntry{
		BucketID:      changes.BucketID,
		StreamID:      changes.StreamID,
		StreamVersion: changes.StreamVersion,
		Timestamp:     s.now(),
		ChangeSetID:   changes.ChangeSetID.String(),
		Body:          body,
	}

	if _, err := storage.Write(ctx, entry); err != nil {
		return WrapStoreError(err)
	}

	if s.notifier != nil {
		if tx != nil {
			tx.OnCommit(func() {
				s.notifier.NotifyListeners(changes)
			})
		} else {
			s.notifier.NotifyListeners(changes)
		}
	}
	return nil
}

// AllChanges implements EventStore.
func (s *Store) AllChanges(ctx context.Context, bucketID string) (*Iterator[*ChangeSet], error) {
	if bucketID == "" {
		return nil, ErrMissingBucketID
	}
	return s.openCursor(bucketID, ByBucket(bucketID))
}

// GetFrom implements EventStore. An unknown stream yields an empty iterator
// rather than an error.
func (s *Store) GetFrom(ctx context.Context, bucketID, streamID string, minVersion, maxVersion int64) (*Iterator[*ChangeSet], error) {
	if bucketID == "" {
		return nil, ErrMissingBucketID
	}
	if streamID == "" {
		return nil, ErrMissingStreamID
	}
	return s.openCursor(bucketID, ByStreamRange(bucketID, streamID, minVersion, maxVersion))
}

// ExistsStream implements EventStore.
func (s *Store) ExistsStream(ctx context.Context, bucketID, streamID string) (bool, error) {
	if bucketID == "" {
		return false, ErrMissingBucketID
	}
	if streamID == "" {
		return false, ErrMissingStreamID
	}
	storage, err := s.router.StorageFor(bucketID)
	if err != nil {
		return false, WrapStoreError(fmt.Errorf("route bucket %q: %w", bucketID, err))
	}
	count, err := storage.Count(ctx, ByStreamRange(bucketID, streamID, 0, MaxVersion))
	if err != nil {
		return false, WrapStoreError(err)
	}
	return count > 0, nil
}

func (s *Store) openCursor(bucketID string, q Query) (*Iterator[*ChangeSet], error) {
	storage, err := s.router.StorageFor(bucketID)
	if err != nil {
		return nil, WrapStoreError(fmt.Errorf("route bucket %q: %w", bucketID, err))
	}
	return newChangeSetCursor(storage, q, s.batchSize, s.serializer), nil
}

// toChangeSet reconstructs a change set from its persisted representation.
func toChangeSet(entry StoredEntry, serializer Serializer) (*ChangeSet, error) {
	events, err := serializer.Deserialize(entry.Body)
	if err != nil {
		return nil, WrapStoreError(fmt.Errorf("deserialize change set %s: %w", entry.ChangeSetID, err))
	}
	id, err := uuid.Parse(entry.ChangeSetID)
	if err != nil {
		return nil, WrapStoreError(fmt.Errorf("parse change set id %q: %w", entry.ChangeSetID, err))
	}
	return &ChangeSet{
		BucketID:      entry.BucketID,
		StreamID:      entry.StreamID,
		StreamVersion: entry.StreamVersion,
		ChangeSetID:   id,
		Events:        events,
	}, nil
}
