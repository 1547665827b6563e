// Package logging provides logrus-based decorators for the event store and
// its commit listeners.
package logging

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/terraskye/eventstore"
)

var _ eventstore.EventStore = (*loggingStore)(nil)

type loggingStore struct {
	logger *logrus.Entry
	next   eventstore.EventStore
}

// WithStoreLogging wraps an EventStore with debug logging of appends and
// reads. Failures are logged at error level and passed through unchanged.
func WithStoreLogging(logger *logrus.Entry, next eventstore.EventStore) eventstore.EventStore {
	return &loggingStore{logger: logger, next: next}
}

func (s *loggingStore) PersistChanges(ctx context.Context, tx *eventstore.Tx, changes *eventstore.ChangeSet) error {
	err := s.next.PersistChanges(ctx, tx, changes)
	if changes == nil {
		if err != nil {
			s.logger.WithError(err).Error("persist rejected")
		}
		return err
	}

	l := s.logger.WithFields(logrus.Fields{
		"bucket":     changes.BucketID,
		"stream":     changes.StreamID,
		"version":    changes.StreamVersion,
		"changeset":  changes.ChangeSetID,
		"eventCount": len(changes.Events),
	})
	if err != nil {
		l.WithError(err).Error("persist failed")
	} else {
		l.Debug("wrote change set to event store")
	}
	return err
}

func (s *loggingStore) AllChanges(ctx context.Context, bucketID string) (*eventstore.Iterator[*eventstore.ChangeSet], error) {
	iter, err := s.next.AllChanges(ctx, bucketID)
	if err != nil {
		s.logger.WithField("bucket", bucketID).WithError(err).Error("all changes failed")
		return iter, err
	}
	s.logger.WithField("bucket", bucketID).Debug("opened bucket cursor")
	return iter, nil
}

func (s *loggingStore) GetFrom(ctx context.Context, bucketID, streamID string, minVersion, maxVersion int64) (*eventstore.Iterator[*eventstore.ChangeSet], error) {
	l := s.logger.WithFields(logrus.Fields{
		"bucket":     bucketID,
		"stream":     streamID,
		"minVersion": minVersion,
		"maxVersion": maxVersion,
	})
	iter, err := s.next.GetFrom(ctx, bucketID, streamID, minVersion, maxVersion)
	if err != nil {
		l.WithError(err).Error("get from failed")
		return iter, err
	}
	l.Debug("opened stream cursor")
	return iter, nil
}

func (s *loggingStore) ExistsStream(ctx context.Context, bucketID, streamID string) (bool, error) {
	exists, err := s.next.ExistsStream(ctx, bucketID, streamID)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"bucket": bucketID,
			"stream": streamID,
		}).WithError(err).Error("exists stream failed")
	}
	return exists, err
}
