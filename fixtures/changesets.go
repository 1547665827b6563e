// Package fixtures provides shared test doubles for the event store.
package fixtures

import (
	"github.com/google/uuid"

	es "github.com/terraskye/eventstore"
)

// ChangeSetOption is a functional option for configuring a ChangeSet.
type ChangeSetOption func(*es.ChangeSet)

// NewChangeSet creates a valid ChangeSet with sensible defaults.
func NewChangeSet(bucketID, streamID string, version int64, opts ...ChangeSetOption) *es.ChangeSet {
	cs := &es.ChangeSet{
		BucketID:      bucketID,
		StreamID:      streamID,
		StreamVersion: version,
		ChangeSetID:   uuid.New(),
		Events:        []any{"event-1"},
	}
	for _, opt := range opts {
		opt(cs)
	}
	return cs
}

// WithChangeSetID sets a specific change set id.
func WithChangeSetID(id uuid.UUID) ChangeSetOption {
	return func(cs *es.ChangeSet) {
		cs.ChangeSetID = id
	}
}

// WithEvents sets the event payload sequence.
func WithEvents(events ...any) ChangeSetOption {
	return func(cs *es.ChangeSet) {
		cs.Events = events
	}
}
