package eventstore

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetryInterval is the delay between notification delivery attempts.
const DefaultRetryInterval = 100 * time.Millisecond

// CommitNotification is delivered to listeners after a change set commits.
type CommitNotification struct {
	Changes *ChangeSet
}

// CommitListener receives commit notifications for the buckets it is
// registered on. Delivery is at-least-once: a failed attempt is repeated
// from the first listener of the bucket, so Receive must be idempotent for
// a given change set.
//
// Listeners are identified by interface equality in the registry; register
// pointer values.
type CommitListener interface {
	Receive(notification CommitNotification) error
}

// ListenerFunc adapts a function to the CommitListener interface. Each call
// returns a distinct listener handle, so the same function can be
// registered on several buckets.
func ListenerFunc(fn func(notification CommitNotification) error) CommitListener {
	return &listenerFunc{fn: fn}
}

type listenerFunc struct {
	fn func(notification CommitNotification) error
}

func (l *listenerFunc) Receive(notification CommitNotification) error {
	return l.fn(notification)
}

// CommitNotifier schedules asynchronous, retried delivery of committed
// change sets to a per-bucket listener registry.
//
// NotifyListeners never blocks the caller: delivery runs on its own
// goroutine and is retried on a fixed interval until one full attempt over
// all listeners of the bucket succeeds. Pending retries are not recorded
// durably; they are lost if the process stops first.
type CommitNotifier struct {
	mu        sync.Mutex
	listeners map[string][]CommitListener

	retryInterval time.Duration
}

// NotifierOption configures a CommitNotifier.
type NotifierOption func(*CommitNotifier)

// WithRetryInterval sets the delay between delivery attempts. Values below
// or equal to zero keep the default.
func WithRetryInterval(interval time.Duration) NotifierOption {
	return func(n *CommitNotifier) {
		if interval > 0 {
			n.retryInterval = interval
		}
	}
}

// NewCommitNotifier creates a notifier with an empty listener registry.
func NewCommitNotifier(options ...NotifierOption) *CommitNotifier {
	n := &CommitNotifier{
		listeners:     make(map[string][]CommitListener),
		retryInterval: DefaultRetryInterval,
	}
	for _, option := range options {
		option(n)
	}
	return n
}

// AddListener appends the listener to the bucket's ordered collection. It
// fails with ErrListenerRegistered when the listener is already present for
// that bucket.
func (n *CommitNotifier) AddListener(bucketID string, listener CommitListener) error {
	if listener == nil {
		return ErrNilListener
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, l := range n.listeners[bucketID] {
		if l == listener {
			return ErrListenerRegistered
		}
	}
	n.listeners[bucketID] = append(n.listeners[bucketID], listener)
	return nil
}

// RemoveListener removes the listener from the bucket's collection. It
// fails with ErrListenerNotFound when the listener is not registered.
func (n *CommitNotifier) RemoveListener(bucketID string, listener CommitListener) error {
	if listener == nil {
		return ErrNilListener
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	list := n.listeners[bucketID]
	for i, l := range list {
		if l == listener {
			n.listeners[bucketID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrListenerNotFound
}

// PerformNotification synchronously delivers the change set to every
// listener of its bucket, in registration order. The first listener error
// aborts the attempt and is returned; a bucket without listeners is a
// no-op.
//
// The listener collection is snapshotted before dispatch: a listener added
// or removed mid-dispatch does not affect the in-flight attempt.
func (n *CommitNotifier) PerformNotification(changes *ChangeSet) error {
	n.mu.Lock()
	list := append([]CommitListener(nil), n.listeners[changes.BucketID]...)
	n.mu.Unlock()

	notification := CommitNotification{Changes: changes}
	for _, listener := range list {
		if err := listener.Receive(notification); err != nil {
			return err
		}
	}
	return nil
}

// NotifyListeners schedules asynchronous delivery of the change set and
// returns immediately. Call it only after the transaction that produced
// the change set has committed; PersistChanges arranges this through
// Tx.OnCommit.
//
// Delivery attempts repeat on the retry interval until one attempt
// completes without error, then the schedule cancels itself. Attempt
// errors are swallowed; they only drive the retry loop.
func (n *CommitNotifier) NotifyListeners(changes *ChangeSet) {
	schedule := backoff.NewConstantBackOff(n.retryInterval)
	go func() {
		_ = backoff.Retry(func() error {
			return n.PerformNotification(changes)
		}, schedule)
	}()
}
