package otel

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/terraskye/eventstore"
)

var _ eventstore.EventStore = (*TelemetryStore)(nil)

// TelemetryStore wraps an EventStore with tracing and metrics.
type TelemetryStore struct {
	next eventstore.EventStore
}

// WithStoreTelemetry decorates next with spans and metrics for every
// operation, including per-cursor read instrumentation.
func WithStoreTelemetry(next eventstore.EventStore) eventstore.EventStore {
	return TelemetryStore{next: next}
}

func (t TelemetryStore) PersistChanges(ctx context.Context, tx *eventstore.Tx, changes *eventstore.ChangeSet) error {
	attrs := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindClient),
	}
	if changes != nil {
		attrs = append(attrs, trace.WithAttributes(
			AttrBucketID.String(changes.BucketID),
			AttrStreamID.String(changes.StreamID),
			AttrStreamVersion.Int64(changes.StreamVersion),
			AttrChangeSetID.String(changes.ChangeSetID.String()),
			AttrEventCount.Int(len(changes.Events)),
		))
	}
	ctx, span := tracer.Start(ctx, "EventStore.PersistChanges", attrs...)
	defer span.End()

	start := time.Now()
	err := t.next.PersistChanges(ctx, tx, changes)
	AppendDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(AttrOperation.String("persist")),
	)

	if err != nil {
		var conflict *eventstore.ConflictError
		var duplicate *eventstore.DuplicateError
		switch {
		case errors.As(err, &conflict):
			ConcurrencyConflicts.Add(ctx, 1)
		case errors.As(err, &duplicate):
			DuplicateCommits.Add(ctx, 1)
		default:
			StoreErrors.Add(ctx, 1)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	ChangeSetsAppended.Add(ctx, 1)
	return nil
}

func (t TelemetryStore) AllChanges(ctx context.Context, bucketID string) (*eventstore.Iterator[*eventstore.ChangeSet], error) {
	iter, err := t.next.AllChanges(ctx, bucketID)
	if err != nil {
		StoreErrors.Add(ctx, 1)
		return iter, err
	}
	return t.instrumentCursor(iter, "EventStore.AllChanges", AttrBucketID.String(bucketID)), nil
}

func (t TelemetryStore) GetFrom(ctx context.Context, bucketID, streamID string, minVersion, maxVersion int64) (*eventstore.Iterator[*eventstore.ChangeSet], error) {
	iter, err := t.next.GetFrom(ctx, bucketID, streamID, minVersion, maxVersion)
	if err != nil {
		StoreErrors.Add(ctx, 1)
		return iter, err
	}
	return t.instrumentCursor(iter, "EventStore.GetFrom",
		AttrBucketID.String(bucketID),
		AttrStreamID.String(streamID),
		AttrMinVersion.Int64(minVersion),
		AttrMaxVersion.Int64(maxVersion),
	), nil
}

func (t TelemetryStore) ExistsStream(ctx context.Context, bucketID, streamID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "EventStore.ExistsStream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrBucketID.String(bucketID),
			AttrStreamID.String(streamID),
		),
	)
	defer span.End()

	exists, err := t.next.ExistsStream(ctx, bucketID, streamID)
	if err != nil {
		StoreErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return exists, err
}

// instrumentCursor wraps a cursor so the span covers the whole lazy read,
// from the first Next to exhaustion or failure.
func (t TelemetryStore) instrumentCursor(iter *eventstore.Iterator[*eventstore.ChangeSet], operation string, attrs ...attribute.KeyValue) *eventstore.Iterator[*eventstore.ChangeSet] {
	started := false
	ended := false
	var startedAt time.Time
	var readSpan trace.Span

	opts := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	}

	// endRead closes out a started read exactly once, whether the cursor
	// was exhausted, failed, or abandoned via Close.
	endRead := func(ctx context.Context) {
		if !started || ended {
			return
		}
		ended = true
		ReadDuration.Record(ctx, float64(time.Since(startedAt).Milliseconds()))
		readSpan.End()
	}

	wrapped := eventstore.NewIteratorFunc(func(ctx context.Context) (*eventstore.ChangeSet, error) {
		if !started {
			started = true
			startedAt = time.Now()
			ctx, readSpan = tracer.Start(ctx, operation, opts...)
		}

		if !iter.Next(ctx) {
			err := iter.Err()
			if err != nil {
				StoreErrors.Add(ctx, 1)
				readSpan.RecordError(err)
				readSpan.SetStatus(codes.Error, err.Error())
			}
			endRead(ctx)
			if err == nil {
				return nil, io.EOF
			}
			return nil, err
		}

		ChangeSetsLoaded.Add(ctx, 1)
		return iter.Value(), nil
	})
	return wrapped.OnClose(func() {
		iter.Close()
		endRead(context.Background())
	})
}
