package otel

import (
	"context"

	"github.com/terraskye/eventstore"
)

type telemetryListener struct {
	next eventstore.CommitListener
}

// WithListenerTelemetry decorates a CommitListener with delivery metrics.
// Failed deliveries increment the failure counter and still propagate, so
// the notifier's retry loop observes them.
func WithListenerTelemetry(next eventstore.CommitListener) eventstore.CommitListener {
	return &telemetryListener{next: next}
}

func (l *telemetryListener) Receive(notification eventstore.CommitNotification) error {
	ctx := context.Background()
	err := l.next.Receive(notification)
	if err != nil {
		NotificationFailures.Add(ctx, 1)
		return err
	}
	NotificationDeliveries.Add(ctx, 1)
	return nil
}
