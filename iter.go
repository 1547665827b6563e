package eventstore

import (
	"context"
	"errors"
	"io"
)

// Iterator is a lazy, forward-only, non-restartable sequence. The producing
// function signals a clean end with io.EOF; Err never reports io.EOF.
//
// Iterators abandoned before exhaustion must be released with Close so
// backend resources held by the current batch are freed.
type Iterator[T any] struct {
	nextFunc  func(ctx context.Context) (T, error)
	closeFunc func()
	current   T
	err       error
	done      bool
}

// NewIteratorFunc creates an Iterator from a function producing the next
// item. The function returns io.EOF when the sequence is exhausted.
func NewIteratorFunc[T any](nextFunc func(ctx context.Context) (T, error)) *Iterator[T] {
	return &Iterator[T]{nextFunc: nextFunc}
}

// NewSliceIterator creates an Iterator over a fixed slice.
func NewSliceIterator[T any](items []T) *Iterator[T] {
	index := 0
	return NewIteratorFunc(func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if index >= len(items) {
			return zero, io.EOF
		}
		item := items[index]
		index++
		return item, nil
	})
}

// OnClose registers a release hook invoked once when the iterator is closed
// or reaches its end.
func (it *Iterator[T]) OnClose(fn func()) *Iterator[T] {
	it.closeFunc = fn
	return it
}

// Next advances the iterator. It returns false at the end of the sequence or
// after an error; check Err after a false return.
func (it *Iterator[T]) Next(ctx context.Context) bool {
	if it.done || it.err != nil {
		return false
	}
	item, err := it.nextFunc(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			it.finish()
		} else {
			it.err = err
		}
		return false
	}
	it.current = item
	return true
}

// Value returns the item produced by the last successful Next.
func (it *Iterator[T]) Value() T {
	return it.current
}

// Err returns the first error encountered during iteration, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// All consumes the remainder of the iterator into a slice.
func (it *Iterator[T]) All(ctx context.Context) ([]T, error) {
	var results []T
	for it.Next(ctx) {
		results = append(results, it.Value())
	}
	return results, it.Err()
}

// Close releases resources held by the iterator. It is safe to call Close
// more than once and after exhaustion.
func (it *Iterator[T]) Close() {
	it.finish()
}

func (it *Iterator[T]) finish() {
	if it.done {
		return
	}
	it.done = true
	if it.closeFunc != nil {
		it.closeFunc()
	}
}
