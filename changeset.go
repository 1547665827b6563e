package eventstore

import (
	"time"

	"github.com/google/uuid"
)

// ChangeSet is an atomic, ordered group of events committed together to a
// single stream position. A ChangeSet belongs to a bucket, identifies its
// stream within that bucket and carries the version the stream reaches once
// the change set is applied.
//
// ChangeSets are constructed by the caller before an append and must not be
// mutated afterwards; the store never modifies or deletes them.
type ChangeSet struct {
	// BucketID partitions the event log, e.g. per tenant or application.
	BucketID string

	// StreamID identifies the event stream within the bucket.
	StreamID string

	// StreamVersion is the version the stream reaches after this change set
	// is applied. Strictly increasing per (BucketID, StreamID).
	StreamVersion int64

	// ChangeSetID deduplicates commits: appending the same id to the same
	// bucket twice fails with a DuplicateError rather than a conflict.
	ChangeSetID uuid.UUID

	// Events is the ordered, opaque payload sequence of this commit.
	Events []any
}

// NewChangeSet builds a ChangeSet and validates its identifiers.
func NewChangeSet(bucketID, streamID string, streamVersion int64, changeSetID uuid.UUID, events []any) (*ChangeSet, error) {
	if bucketID == "" {
		return nil, ErrMissingBucketID
	}
	if streamID == "" {
		return nil, ErrMissingStreamID
	}
	if changeSetID == uuid.Nil {
		return nil, ErrMissingChangeSetID
	}
	return &ChangeSet{
		BucketID:      bucketID,
		StreamID:      streamID,
		StreamVersion: streamVersion,
		ChangeSetID:   changeSetID,
		Events:        events,
	}, nil
}

// StoredEntry is the persisted representation of a ChangeSet. Entries are
// created once per successful append and never updated or deleted.
type StoredEntry struct {
	// InsertionID is assigned by the storage backend, strictly increasing in
	// write order. It defines the total commit order across a bucket,
	// independent of per-stream versions.
	InsertionID int64

	BucketID      string
	StreamID      string
	StreamVersion int64
	Timestamp     time.Time
	ChangeSetID   string
	Body          []byte
}
