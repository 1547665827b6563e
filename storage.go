package eventstore

import "context"

// Storage is the durable entry storage capability consumed by the
// persistence engine. Implementations assign a monotonically increasing
// insertion id per write and enforce the two row-level uniqueness
// invariants atomically:
//
//   - (BucketID, StreamID, StreamVersion) unique → *ConflictError
//   - (BucketID, ChangeSetID) unique → *DuplicateError
//
// Concurrent writers racing on the same stream position or change set id
// are expected; exactly one wins.
type Storage interface {
	// Write persists the entry durably and returns its insertion id. Any
	// buffered write must be flushed before Write returns, so insertion
	// ids reflect true write order even under batched backends.
	Write(ctx context.Context, entry StoredEntry) (int64, error)

	// Query returns up to limit entries matching q, skipping offset rows,
	// in the order q requests.
	Query(ctx context.Context, q Query, offset, limit int) ([]StoredEntry, error)

	// Count returns the number of entries matching q without materializing
	// rows.
	Count(ctx context.Context, q Query) (int64, error)
}

// Router maps a bucket to the Storage holding it. Implementations may route
// different buckets to different physical stores or partitions.
type Router interface {
	StorageFor(bucketID string) (Storage, error)
}

// RouterFunc adapts a function to the Router interface.
type RouterFunc func(bucketID string) (Storage, error)

func (f RouterFunc) StorageFor(bucketID string) (Storage, error) {
	return f(bucketID)
}

// SingleStorage routes every bucket to one backend.
func SingleStorage(storage Storage) Router {
	return RouterFunc(func(string) (Storage, error) {
		return storage, nil
	})
}
