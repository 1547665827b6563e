package fixtures

import (
	"errors"
	"sync"

	es "github.com/terraskye/eventstore"
)

// ErrReceiveFailed is the error injected by failing listeners.
var ErrReceiveFailed = errors.New("receive failed")

var _ es.CommitListener = (*RecordingListener)(nil)

// RecordingListener is a configurable CommitListener for testing. It
// records every delivery and can be told to fail its first N invocations.
type RecordingListener struct {
	mu        sync.Mutex
	received  []es.CommitNotification
	failsLeft int
	delivered chan struct{}
}

// NewRecordingListener creates a listener that succeeds on every delivery.
func NewRecordingListener() *RecordingListener {
	return &RecordingListener{
		delivered: make(chan struct{}, 64),
	}
}

// FailTimes makes the next n deliveries fail with ErrReceiveFailed.
func (l *RecordingListener) FailTimes(n int) *RecordingListener {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failsLeft = n
	return l
}

// Receive implements es.CommitListener.
func (l *RecordingListener) Receive(notification es.CommitNotification) error {
	l.mu.Lock()
	l.received = append(l.received, notification)
	fail := l.failsLeft > 0
	if fail {
		l.failsLeft--
	}
	l.mu.Unlock()

	if fail {
		return ErrReceiveFailed
	}
	select {
	case l.delivered <- struct{}{}:
	default:
	}
	return nil
}

// Received returns a copy of all notifications seen so far, including
// failed attempts.
func (l *RecordingListener) Received() []es.CommitNotification {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]es.CommitNotification(nil), l.received...)
}

// Calls returns the number of times Receive was invoked.
func (l *RecordingListener) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.received)
}

// Delivered signals one successful delivery per receive.
func (l *RecordingListener) Delivered() <-chan struct{} {
	return l.delivered
}
