// Package otel provides OpenTelemetry tracing and metrics decorators for
// the event store.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/terraskye/eventstore"
)

const instrumentationName = "github.com/terraskye/eventstore"

// Semantic attribute keys following OpenTelemetry conventions.
const (
	AttrBucketID      = attribute.Key("eventstore.bucket.id")
	AttrStreamID      = attribute.Key("eventstore.stream.id")
	AttrStreamVersion = attribute.Key("eventstore.stream.version")
	AttrChangeSetID   = attribute.Key("eventstore.changeset.id")
	AttrEventCount    = attribute.Key("eventstore.events.count")
	AttrMinVersion    = attribute.Key("eventstore.version.min")
	AttrMaxVersion    = attribute.Key("eventstore.version.max")
	AttrOperation     = attribute.Key("eventstore.operation")
)

var (
	meter  = otel.Meter(instrumentationName, metric.WithInstrumentationVersion(eventstore.InstrumentationVersion))
	tracer = otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(eventstore.InstrumentationVersion))

	// Append metrics
	ChangeSetsAppended, _ = meter.Int64Counter(
		"eventstore.changesets.appended",
		metric.WithDescription("Number of change sets appended"),
		metric.WithUnit("{changeset}"),
	)

	AppendDuration, _ = meter.Float64Histogram(
		"eventstore.append.duration",
		metric.WithDescription("Append operation duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	ConcurrencyConflicts, _ = meter.Int64Counter(
		"eventstore.concurrency.conflicts",
		metric.WithDescription("Number of appends rejected by a stream position conflict"),
		metric.WithUnit("{conflict}"),
	)

	DuplicateCommits, _ = meter.Int64Counter(
		"eventstore.duplicate.commits",
		metric.WithDescription("Number of appends rejected as duplicate change sets"),
		metric.WithUnit("{changeset}"),
	)

	// Read metrics
	ChangeSetsLoaded, _ = meter.Int64Counter(
		"eventstore.changesets.loaded",
		metric.WithDescription("Number of change sets yielded by cursors"),
		metric.WithUnit("{changeset}"),
	)

	ReadDuration, _ = meter.Float64Histogram(
		"eventstore.read.duration",
		metric.WithDescription("Cursor lifetime from open to exhaustion"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	StoreErrors, _ = meter.Int64Counter(
		"eventstore.errors",
		metric.WithDescription("Number of event store errors"),
		metric.WithUnit("{error}"),
	)

	// Notification metrics
	NotificationDeliveries, _ = meter.Int64Counter(
		"eventstore.notification.deliveries",
		metric.WithDescription("Number of commit notifications delivered to listeners"),
		metric.WithUnit("{notification}"),
	)

	NotificationFailures, _ = meter.Int64Counter(
		"eventstore.notification.failures",
		metric.WithDescription("Number of failed listener deliveries driving the retry loop"),
		metric.WithUnit("{error}"),
	)
)
