package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/terraskye/eventstore"
)

type loggingListener struct {
	logger *logrus.Entry
	next   eventstore.CommitListener
}

// WithListenerLogging wraps a CommitListener with per-delivery logging.
// Receive errors are logged at warning level since the notifier retries
// them; they are passed through unchanged to drive the retry loop.
func WithListenerLogging(logger *logrus.Entry, next eventstore.CommitListener) eventstore.CommitListener {
	return &loggingListener{logger: logger, next: next}
}

func (l *loggingListener) Receive(notification eventstore.CommitNotification) error {
	entry := l.logger.WithFields(logrus.Fields{
		"bucket":    notification.Changes.BucketID,
		"stream":    notification.Changes.StreamID,
		"version":   notification.Changes.StreamVersion,
		"changeset": notification.Changes.ChangeSetID,
	})

	err := l.next.Receive(notification)
	if err != nil {
		entry.WithError(err).Warn("commit notification failed, will be retried")
	} else {
		entry.Debug("commit notification delivered")
	}
	return err
}
