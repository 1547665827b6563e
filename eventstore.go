package eventstore

import "context"

// EventStore is the append/read contract of the event store: an append-only
// log of change sets, partitioned by bucket and stream.
//
// Implementations must guarantee:
//   - Within one bucket, AllChanges yields entries in total commit order
//     (ascending insertion id).
//   - Within one stream, GetFrom yields entries in strictly increasing
//     stream version order.
//   - The (bucket, stream, version) and (bucket, changeSetID) uniqueness
//     invariants are enforced on append, surfaced as *ConflictError and
//     *DuplicateError respectively.
//
// The returned iterators are lazy: subsequent batches are fetched from the
// backend transparently as consumption proceeds, and an iterator abandoned
// before exhaustion must be released with Close.
type EventStore interface {
	// PersistChanges appends a change set to its stream. The write is
	// durable when PersistChanges returns. When tx is nil the commit
	// notification is scheduled immediately; otherwise it is deferred to
	// tx.Commit and dropped on tx.Rollback.
	PersistChanges(ctx context.Context, tx *Tx, changes *ChangeSet) error

	// AllChanges returns every change set of the bucket in total commit
	// order. Used for rebuilding projections across all streams.
	AllChanges(ctx context.Context, bucketID string) (*Iterator[*ChangeSet], error)

	// GetFrom returns the change sets of one stream with
	// minVersion < StreamVersion <= maxVersion, in version order. An
	// unknown stream yields an empty iterator.
	GetFrom(ctx context.Context, bucketID, streamID string, minVersion, maxVersion int64) (*Iterator[*ChangeSet], error)

	// ExistsStream reports whether at least one entry exists for the
	// stream, without materializing rows.
	ExistsStream(ctx context.Context, bucketID, streamID string) (bool, error)
}
