package eventstore_test

import (
	"context"
	"errors"
	"io"
	"testing"

	es "github.com/terraskye/eventstore"
)

func TestIterator_SliceRoundTrip(t *testing.T) {
	iter := es.NewSliceIterator([]int{1, 2, 3})
	ctx := context.Background()

	var got []int
	for iter.Next(ctx) {
		got = append(got, iter.Value())
	}
	if err := iter.Err(); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("expected [1 2 3], got %v", got)
	}
	if iter.Next(ctx) {
		t.Fatalf("expected exhausted iterator to stay exhausted")
	}
}

func TestIterator_ErrNeverReportsEOF(t *testing.T) {
	iter := es.NewIteratorFunc(func(context.Context) (int, error) {
		return 0, io.EOF
	})
	if iter.Next(context.Background()) {
		t.Fatalf("expected immediate end")
	}
	if err := iter.Err(); err != nil {
		t.Fatalf("expected nil error for clean end, got %v", err)
	}
}

func TestIterator_ProducerError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	iter := es.NewIteratorFunc(func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 42, nil
		}
		return 0, boom
	})
	ctx := context.Background()

	if !iter.Next(ctx) {
		t.Fatalf("expected first item")
	}
	if iter.Value() != 42 {
		t.Fatalf("expected 42, got %d", iter.Value())
	}
	if iter.Next(ctx) {
		t.Fatalf("expected failure on second item")
	}
	if !errors.Is(iter.Err(), boom) {
		t.Fatalf("expected producer error, got %v", iter.Err())
	}
	if iter.Next(ctx) {
		t.Fatalf("expected no progress after error")
	}
	if calls != 2 {
		t.Fatalf("expected producer to not be called after error, got %d calls", calls)
	}
}

func TestIterator_CloseIsIdempotent(t *testing.T) {
	released := 0
	iter := es.NewSliceIterator([]string{"a", "b"}).OnClose(func() { released++ })

	iter.Close()
	iter.Close()
	if released != 1 {
		t.Fatalf("expected one release, got %d", released)
	}
	if iter.Next(context.Background()) {
		t.Fatalf("expected no items after Close")
	}
}

func TestIterator_ExhaustionReleases(t *testing.T) {
	released := 0
	iter := es.NewSliceIterator([]string{"a"}).OnClose(func() { released++ })
	ctx := context.Background()

	for iter.Next(ctx) {
	}
	if released != 1 {
		t.Fatalf("expected release on exhaustion, got %d", released)
	}
	iter.Close()
	if released != 1 {
		t.Fatalf("expected Close after exhaustion to be a no-op, got %d releases", released)
	}
}

func TestIterator_ContextCancellation(t *testing.T) {
	iter := es.NewSliceIterator([]int{1, 2, 3})
	ctx, cancel := context.WithCancel(context.Background())

	if !iter.Next(ctx) {
		t.Fatalf("expected first item")
	}
	cancel()
	if iter.Next(ctx) {
		t.Fatalf("expected cancellation to stop iteration")
	}
	if !errors.Is(iter.Err(), context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", iter.Err())
	}
}

func TestIterator_All(t *testing.T) {
	iter := es.NewSliceIterator([]string{"x", "y"})
	all, err := iter.All(context.Background())
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 || all[0] != "x" || all[1] != "y" {
		t.Fatalf("expected [x y], got %v", all)
	}
}
