package eventstore

import (
	"errors"
	"fmt"
)

// Argument validation failures, rejected before any I/O.
var (
	ErrNilChangeSet       = errors.New("change set must not be nil")
	ErrMissingBucketID    = errors.New("bucket id must not be empty")
	ErrMissingStreamID    = errors.New("stream id must not be empty")
	ErrMissingChangeSetID = errors.New("change set id must not be empty")
)

// Listener registry misuse.
var (
	ErrNilListener        = errors.New("listener must not be nil")
	ErrListenerRegistered = errors.New("listener already registered for bucket")
	ErrListenerNotFound   = errors.New("listener not registered for bucket")
)

// ErrTxDone is returned when a transaction is committed or rolled back twice.
var ErrTxDone = errors.New("transaction already completed")

// ConflictError reports a lost stream-position race: another writer already
// committed (BucketID, StreamID, StreamVersion). The caller should re-read
// the stream's current version and retry with a fresh one.
type ConflictError struct {
	BucketID      string
	StreamID      string
	StreamVersion int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: version %d of stream %q in bucket %q already committed",
		e.StreamVersion, e.StreamID, e.BucketID)
}

// DuplicateError reports that a change set id was already committed to the
// bucket. The original append succeeded; callers retrying an append may
// treat this as a no-op.
type DuplicateError struct {
	BucketID    string
	ChangeSetID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate: change set %q already committed to bucket %q",
		e.ChangeSetID, e.BucketID)
}

// StoreError wraps a backend or serialization failure surfaced by the
// persistence engine.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("eventstore error: %v", e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// WrapStoreError wraps err in a StoreError, except when err is nil or
// already one of the store's own failure types.
func WrapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var conflict *ConflictError
	var duplicate *DuplicateError
	if errors.As(err, &conflict) || errors.As(err, &duplicate) {
		return err
	}
	return &StoreError{Err: err}
}
