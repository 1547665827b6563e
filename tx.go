package eventstore

import "sync"

// Tx is the explicit transaction boundary surrounding one or more appends.
// It coordinates post-commit work: hooks registered with OnCommit run
// exactly once when the transaction commits and never when it rolls back.
// The store uses this to guarantee that commit notifications are only
// scheduled for transactions that actually committed.
//
// Tx does not provide storage atomicity; the backends enforce their
// uniqueness invariants at the row level. Callers wrapping a database
// transaction should call Commit only after the database commit succeeded.
type Tx struct {
	mu       sync.Mutex
	done     bool
	onCommit []func()
}

// NewTx begins a new transaction boundary.
func NewTx() *Tx {
	return &Tx{}
}

// OnCommit registers fn to run when the transaction commits. Hooks run in
// registration order on the committing goroutine.
func (t *Tx) OnCommit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.onCommit = append(t.onCommit, fn)
}

// Commit completes the transaction and runs the registered hooks.
func (t *Tx) Commit() error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return ErrTxDone
	}
	t.done = true
	hooks := t.onCommit
	t.onCommit = nil
	t.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return nil
}

// Rollback completes the transaction and discards the registered hooks.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.onCommit = nil
	return nil
}
