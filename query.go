package eventstore

import "math"

// Order selects the ordering of query results.
type Order int

const (
	// OrderInsertion orders ascending by insertion id (total commit order).
	OrderInsertion Order = iota
	// OrderVersion orders ascending by stream version.
	OrderVersion
)

// MaxVersion is the open upper bound for version ranges: "everything after
// MinVersion".
const MaxVersion = int64(math.MaxInt64)

// Query is one of two fixed parametrized templates the engine issues against
// a Storage: all entries of a bucket in insertion order, or a version range
// of one stream in version order. StreamID == "" selects the whole bucket.
type Query struct {
	BucketID string
	StreamID string

	// Version range, MinVersion exclusive, MaxVersion inclusive. Only
	// meaningful when StreamID is set.
	MinVersion int64
	MaxVersion int64

	Order Order
}

// ByBucket matches every entry of a bucket, ordered by insertion id.
func ByBucket(bucketID string) Query {
	return Query{
		BucketID: bucketID,
		Order:    OrderInsertion,
	}
}

// ByStreamRange matches entries of one stream with
// minVersion < StreamVersion <= maxVersion, ordered by stream version.
func ByStreamRange(bucketID, streamID string, minVersion, maxVersion int64) Query {
	return Query{
		BucketID:   bucketID,
		StreamID:   streamID,
		MinVersion: minVersion,
		MaxVersion: maxVersion,
		Order:      OrderVersion,
	}
}

// Matches reports whether the entry satisfies the query's predicate. Shared
// by in-process backends; SQL backends compile the template instead.
func (q Query) Matches(entry StoredEntry) bool {
	if entry.BucketID != q.BucketID {
		return false
	}
	if q.StreamID == "" {
		return true
	}
	if entry.StreamID != q.StreamID {
		return false
	}
	return entry.StreamVersion > q.MinVersion && entry.StreamVersion <= q.MaxVersion
}
