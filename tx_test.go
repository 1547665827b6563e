package eventstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	es "github.com/terraskye/eventstore"
	"github.com/terraskye/eventstore/fixtures"
	"github.com/terraskye/eventstore/storage/memory"
)

func TestTx_CommitRunsHooksOnce(t *testing.T) {
	tx := es.NewTx()

	var calls []int
	tx.OnCommit(func() { calls = append(calls, 1) })
	tx.OnCommit(func() { calls = append(calls, 2) })

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Fatalf("expected hooks in registration order, got %v", calls)
	}

	if err := tx.Commit(); !errors.Is(err, es.ErrTxDone) {
		t.Fatalf("expected ErrTxDone on second commit, got %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected hooks to run once, got %d invocations", len(calls))
	}
}

func TestTx_RollbackDiscardsHooks(t *testing.T) {
	tx := es.NewTx()

	var ran bool
	tx.OnCommit(func() { ran = true })

	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if ran {
		t.Fatalf("expected hooks to be discarded on rollback")
	}
	if err := tx.Commit(); !errors.Is(err, es.ErrTxDone) {
		t.Fatalf("expected ErrTxDone after rollback, got %v", err)
	}
}

func TestTx_OnCommitAfterCompletionIsIgnored(t *testing.T) {
	tx := es.NewTx()
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var ran bool
	tx.OnCommit(func() { ran = true })
	if ran {
		t.Fatalf("expected late hook to never run")
	}
}

func TestStore_NotificationWaitsForCommit(t *testing.T) {
	notifier := es.NewCommitNotifier(es.WithRetryInterval(testRetryInterval))
	listener := fixtures.NewRecordingListener()
	if err := notifier.AddListener("bucket-1", listener); err != nil {
		t.Fatalf("add listener: %v", err)
	}

	store := es.NewStore(es.SingleStorage(memory.New()), fixtures.StringSerializer{},
		es.WithNotifier(notifier))
	ctx := context.Background()

	tx := es.NewTx()
	if err := store.PersistChanges(ctx, tx, fixtures.NewChangeSet("bucket-1", "stream-1", 1)); err != nil {
		t.Fatalf("persist: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if got := listener.Calls(); got != 0 {
		t.Fatalf("expected no delivery before commit, got %d calls", got)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	awaitDelivery(t, listener)
}

func TestStore_NoNotificationAfterRollback(t *testing.T) {
	notifier := es.NewCommitNotifier(es.WithRetryInterval(testRetryInterval))
	listener := fixtures.NewRecordingListener()
	if err := notifier.AddListener("bucket-1", listener); err != nil {
		t.Fatalf("add listener: %v", err)
	}

	store := es.NewStore(es.SingleStorage(memory.New()), fixtures.StringSerializer{},
		es.WithNotifier(notifier))
	ctx := context.Background()

	tx := es.NewTx()
	if err := store.PersistChanges(ctx, tx, fixtures.NewChangeSet("bucket-1", "stream-1", 1)); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := listener.Calls(); got != 0 {
		t.Fatalf("expected no delivery after rollback, got %d calls", got)
	}
}

func TestStore_ImmediateNotificationWithoutTx(t *testing.T) {
	notifier := es.NewCommitNotifier(es.WithRetryInterval(testRetryInterval))
	listener := fixtures.NewRecordingListener()
	if err := notifier.AddListener("bucket-1", listener); err != nil {
		t.Fatalf("add listener: %v", err)
	}

	store := es.NewStore(es.SingleStorage(memory.New()), fixtures.StringSerializer{},
		es.WithNotifier(notifier))

	if err := store.PersistChanges(context.Background(), nil, fixtures.NewChangeSet("bucket-1", "stream-1", 1)); err != nil {
		t.Fatalf("persist: %v", err)
	}
	awaitDelivery(t, listener)
}

func TestStore_MultipleAppendsOneTx(t *testing.T) {
	notifier := es.NewCommitNotifier(es.WithRetryInterval(testRetryInterval))
	listener := fixtures.NewRecordingListener()
	if err := notifier.AddListener("bucket-1", listener); err != nil {
		t.Fatalf("add listener: %v", err)
	}

	store := es.NewStore(es.SingleStorage(memory.New()), fixtures.StringSerializer{},
		es.WithNotifier(notifier))
	ctx := context.Background()

	tx := es.NewTx()
	for v := int64(1); v <= 3; v++ {
		if err := store.PersistChanges(ctx, tx, fixtures.NewChangeSet("bucket-1", "stream-1", v)); err != nil {
			t.Fatalf("persist v%d: %v", v, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	for i := 0; i < 3; i++ {
		awaitDelivery(t, listener)
	}
	if got := listener.Calls(); got != 3 {
		t.Fatalf("expected 3 deliveries, got %d", got)
	}
}
