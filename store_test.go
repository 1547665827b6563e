package eventstore_test

import (
	"context"
	"errors"
	"testing"

	es "github.com/terraskye/eventstore"
	"github.com/terraskye/eventstore/fixtures"
	"github.com/terraskye/eventstore/storage/memory"
)

func newTestStore(t *testing.T, options ...es.StoreOption) (*es.Store, *fixtures.StorageSpy) {
	t.Helper()
	spy := fixtures.NewStorageSpy(memory.New())
	store := es.NewStore(es.SingleStorage(spy), fixtures.StringSerializer{}, options...)
	return store, spy
}

func mustPersist(t *testing.T, store *es.Store, changes *es.ChangeSet) {
	t.Helper()
	if err := store.PersistChanges(context.Background(), nil, changes); err != nil {
		t.Fatalf("persist %s/%s v%d: %v", changes.BucketID, changes.StreamID, changes.StreamVersion, err)
	}
}

func TestStore_PersistChanges_Validation(t *testing.T) {
	store, spy := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		changes *es.ChangeSet
		want    error
	}{
		{"nil change set", nil, es.ErrNilChangeSet},
		{"missing bucket", fixtures.NewChangeSet("", "stream-1", 1), es.ErrMissingBucketID},
		{"missing stream", fixtures.NewChangeSet("bucket-1", "", 1), es.ErrMissingStreamID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.PersistChanges(ctx, nil, tc.changes)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if spy.WriteCalls() != 0 {
		t.Fatalf("expected no writes for rejected arguments, got %d", spy.WriteCalls())
	}
}

func TestStore_AllChanges_TotalOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Interleave two streams; the bucket feed must reflect append order,
	// not stream grouping.
	mustPersist(t, store, fixtures.NewChangeSet("bucket-1", "order-1", 1, fixtures.WithEvents("a")))
	mustPersist(t, store, fixtures.NewChangeSet("bucket-1", "order-2", 1, fixtures.WithEvents("b")))
	mustPersist(t, store, fixtures.NewChangeSet("bucket-1", "order-1", 2, fixtures.WithEvents("c")))
	mustPersist(t, store, fixtures.NewChangeSet("bucket-1", "order-2", 2, fixtures.WithEvents("d")))

	iter, err := store.AllChanges(ctx, "bucket-1")
	if err != nil {
		t.Fatalf("all changes: %v", err)
	}
	all, err := iter.All(ctx)
	if err != nil {
		t.Fatalf("drain iterator: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 change sets, got %d", len(all))
	}
	for i, want := range []string{"a", "b", "c", "d"} {
		if got := all[i].Events[0]; got != want {
			t.Fatalf("position %d: expected event %q, got %q", i, want, got)
		}
	}
}

func TestStore_AllChanges_BucketIsolation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	mustPersist(t, store, fixtures.NewChangeSet("bucket-1", "stream-1", 1))
	mustPersist(t, store, fixtures.NewChangeSet("bucket-2", "stream-1", 1))

	iter, err := store.AllChanges(ctx, "bucket-1")
	if err != nil {
		t.Fatalf("all changes: %v", err)
	}
	all, err := iter.All(ctx)
	if err != nil {
		t.Fatalf("drain iterator: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 change set in bucket-1, got %d", len(all))
	}
	if all[0].BucketID != "bucket-1" {
		t.Fatalf("expected bucket-1, got %q", all[0].BucketID)
	}
}

func TestStore_AllChanges_EmptyBucket(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	iter, err := store.AllChanges(ctx, "empty")
	if err != nil {
		t.Fatalf("all changes: %v", err)
	}
	all, err := iter.All(ctx)
	if err != nil {
		t.Fatalf("drain iterator: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty iterator, got %d items", len(all))
	}
}

func TestStore_GetFrom_RangeSemantics(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for v := int64(1); v <= 5; v++ {
		mustPersist(t, store, fixtures.NewChangeSet("bucket-1", "stream-1", v))
	}

	cases := []struct {
		name         string
		min, max     int64
		wantVersions []int64
	}{
		{"full range", 0, es.MaxVersion, []int64{1, 2, 3, 4, 5}},
		{"lower bound exclusive", 2, es.MaxVersion, []int64{3, 4, 5}},
		{"upper bound inclusive", 0, 3, []int64{1, 2, 3}},
		{"window", 1, 4, []int64{2, 3, 4}},
		{"equal bounds empty", 3, 3, nil},
		{"inverted bounds empty", 4, 2, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			iter, err := store.GetFrom(ctx, "bucket-1", "stream-1", tc.min, tc.max)
			if err != nil {
				t.Fatalf("get from: %v", err)
			}
			all, err := iter.All(ctx)
			if err != nil {
				t.Fatalf("drain iterator: %v", err)
			}
			if len(all) != len(tc.wantVersions) {
				t.Fatalf("expected %d change sets, got %d", len(tc.wantVersions), len(all))
			}
			for i, want := range tc.wantVersions {
				if all[i].StreamVersion != want {
					t.Fatalf("position %d: expected version %d, got %d", i, want, all[i].StreamVersion)
				}
			}
		})
	}
}

func TestStore_GetFrom_UnknownStream(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	iter, err := store.GetFrom(ctx, "bucket-1", "nonexistent", 0, es.MaxVersion)
	if err != nil {
		t.Fatalf("expected empty iterator for unknown stream, got error %v", err)
	}
	all, err := iter.All(ctx)
	if err != nil {
		t.Fatalf("drain iterator: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no change sets, got %d", len(all))
	}
}

func TestStore_PersistChanges_Conflict(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	mustPersist(t, store, fixtures.NewChangeSet("bucket-1", "stream-1", 1))

	err := store.PersistChanges(ctx, nil, fixtures.NewChangeSet("bucket-1", "stream-1", 1))
	var conflict *es.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.BucketID != "bucket-1" || conflict.StreamID != "stream-1" || conflict.StreamVersion != 1 {
		t.Fatalf("unexpected conflict details: %+v", conflict)
	}
}

func TestStore_PersistChanges_Duplicate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := fixtures.NewChangeSet("bucket-1", "stream-1", 1, fixtures.WithEvents("original"))
	mustPersist(t, store, first)

	// Same change set id on a different position of a different stream:
	// still rejected, and the stored data stays untouched.
	retry := fixtures.NewChangeSet("bucket-1", "stream-2", 7,
		fixtures.WithChangeSetID(first.ChangeSetID),
		fixtures.WithEvents("impostor"))
	err := store.PersistChanges(ctx, nil, retry)
	var duplicate *es.DuplicateError
	if !errors.As(err, &duplicate) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if duplicate.ChangeSetID != first.ChangeSetID.String() {
		t.Fatalf("expected change set id %s, got %s", first.ChangeSetID, duplicate.ChangeSetID)
	}

	iter, err := store.AllChanges(ctx, "bucket-1")
	if err != nil {
		t.Fatalf("all changes: %v", err)
	}
	all, err := iter.All(ctx)
	if err != nil {
		t.Fatalf("drain iterator: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 change set after rejected duplicate, got %d", len(all))
	}
	if all[0].Events[0] != "original" {
		t.Fatalf("stored data changed by rejected duplicate: %v", all[0].Events)
	}
}

func TestStore_ExistsStream(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	mustPersist(t, store, fixtures.NewChangeSet("bucket-1", "stream-1", 1))

	exists, err := store.ExistsStream(ctx, "bucket-1", "stream-1")
	if err != nil {
		t.Fatalf("exists stream: %v", err)
	}
	if !exists {
		t.Fatalf("expected stream-1 to exist")
	}

	exists, err = store.ExistsStream(ctx, "bucket-1", "stream-2")
	if err != nil {
		t.Fatalf("exists stream: %v", err)
	}
	if exists {
		t.Fatalf("expected stream-2 to not exist")
	}

	exists, err = store.ExistsStream(ctx, "bucket-2", "stream-1")
	if err != nil {
		t.Fatalf("exists stream: %v", err)
	}
	if exists {
		t.Fatalf("expected stream-1 in bucket-2 to not exist")
	}
}

func TestStore_SerializerFailure(t *testing.T) {
	storage := memory.New()
	store := es.NewStore(es.SingleStorage(storage), fixtures.FailingSerializer{})
	ctx := context.Background()

	err := store.PersistChanges(ctx, nil, fixtures.NewChangeSet("bucket-1", "stream-1", 1))
	if !errors.Is(err, fixtures.ErrSerializerBroken) {
		t.Fatalf("expected serializer error, got %v", err)
	}
	var storeErr *es.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError wrapper, got %T", err)
	}

	count, err := storage.Count(ctx, es.ByBucket("bucket-1"))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected nothing stored after serializer failure, got %d", count)
	}
}

func TestStore_DeserializeFailure(t *testing.T) {
	storage := memory.New()
	store := es.NewStore(es.SingleStorage(storage), fixtures.StringSerializer{})
	ctx := context.Background()

	if err := store.PersistChanges(ctx, nil, fixtures.NewChangeSet("bucket-1", "stream-1", 1)); err != nil {
		t.Fatalf("persist: %v", err)
	}

	// Reading back through a broken serializer surfaces the failure via
	// the iterator, not the open call.
	broken := es.NewStore(es.SingleStorage(storage), fixtures.FailingSerializer{})
	iter, err := broken.AllChanges(ctx, "bucket-1")
	if err != nil {
		t.Fatalf("all changes: %v", err)
	}
	if iter.Next(ctx) {
		t.Fatalf("expected iteration to fail")
	}
	if !errors.Is(iter.Err(), fixtures.ErrSerializerBroken) {
		t.Fatalf("expected serializer error, got %v", iter.Err())
	}
}

func TestStore_LazyBatching(t *testing.T) {
	store, spy := newTestStore(t, es.WithFetchBatchSize(3))
	ctx := context.Background()

	// 7 entries with batch size 3: batches of 3, 3 and 1, the short final
	// batch ending the scan.
	for v := int64(1); v <= 7; v++ {
		mustPersist(t, store, fixtures.NewChangeSet("bucket-1", "stream-1", v))
	}

	iter, err := store.AllChanges(ctx, "bucket-1")
	if err != nil {
		t.Fatalf("all changes: %v", err)
	}
	if got := spy.QueryCalls(); got != 0 {
		t.Fatalf("expected no fetch before first Next, got %d", got)
	}

	var seen int
	for iter.Next(ctx) {
		seen++
		switch seen {
		case 3:
			if got := spy.QueryCalls(); got != 1 {
				t.Fatalf("after 3 items: expected 1 fetch, got %d", got)
			}
		case 4:
			if got := spy.QueryCalls(); got != 2 {
				t.Fatalf("after 4 items: expected 2 fetches, got %d", got)
			}
		}
	}
	if err := iter.Err(); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if seen != 7 {
		t.Fatalf("expected 7 change sets, got %d", seen)
	}
	if got := spy.QueryCalls(); got != 3 {
		t.Fatalf("expected 3 fetches for 7 entries in batches of 3, got %d", got)
	}
}

func TestStore_LazyBatching_ExactMultiple(t *testing.T) {
	store, spy := newTestStore(t, es.WithFetchBatchSize(3))
	ctx := context.Background()

	// 6 entries with batch size 3: two full batches plus one empty fetch
	// to detect the end.
	for v := int64(1); v <= 6; v++ {
		mustPersist(t, store, fixtures.NewChangeSet("bucket-1", "stream-1", v))
	}

	iter, err := store.AllChanges(ctx, "bucket-1")
	if err != nil {
		t.Fatalf("all changes: %v", err)
	}
	all, err := iter.All(ctx)
	if err != nil {
		t.Fatalf("drain iterator: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("expected 6 change sets, got %d", len(all))
	}
	if got := spy.QueryCalls(); got != 3 {
		t.Fatalf("expected 3 fetches for 6 entries in batches of 3, got %d", got)
	}
}

func TestStore_AbandonedIterator(t *testing.T) {
	store, spy := newTestStore(t, es.WithFetchBatchSize(2))
	ctx := context.Background()

	for v := int64(1); v <= 6; v++ {
		mustPersist(t, store, fixtures.NewChangeSet("bucket-1", "stream-1", v))
	}

	iter, err := store.AllChanges(ctx, "bucket-1")
	if err != nil {
		t.Fatalf("all changes: %v", err)
	}
	if !iter.Next(ctx) {
		t.Fatalf("expected first item")
	}
	fetches := spy.QueryCalls()
	iter.Close()

	if iter.Next(ctx) {
		t.Fatalf("expected no items after Close")
	}
	if got := spy.QueryCalls(); got != fetches {
		t.Fatalf("expected no fetches after Close, got %d more", got-fetches)
	}
}

func TestStore_StorageFailurePropagates(t *testing.T) {
	store, spy := newTestStore(t)
	ctx := context.Background()

	injected := errors.New("disk on fire")
	spy.QueryFn = func(context.Context, es.Query, int, int) ([]es.StoredEntry, error) {
		return nil, injected
	}

	iter, err := store.AllChanges(ctx, "bucket-1")
	if err != nil {
		t.Fatalf("all changes: %v", err)
	}
	if iter.Next(ctx) {
		t.Fatalf("expected iteration to fail")
	}
	if !errors.Is(iter.Err(), injected) {
		t.Fatalf("expected injected error, got %v", iter.Err())
	}
	var storeErr *es.StoreError
	if !errors.As(iter.Err(), &storeErr) {
		t.Fatalf("expected StoreError wrapper, got %T", iter.Err())
	}
}

func TestStore_RouterFailure(t *testing.T) {
	broken := es.RouterFunc(func(bucketID string) (es.Storage, error) {
		return nil, errors.New("no shard for bucket")
	})
	store := es.NewStore(broken, fixtures.StringSerializer{})
	ctx := context.Background()

	err := store.PersistChanges(ctx, nil, fixtures.NewChangeSet("bucket-1", "stream-1", 1))
	var storeErr *es.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if _, err := store.AllChanges(ctx, "bucket-1"); err == nil {
		t.Fatalf("expected routing error on read")
	}
}
