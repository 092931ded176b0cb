// Package telemetry wires OpenTelemetry metrics and tracing for the
// auth server.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeLimited = "rate_limited"
	OutcomeDropped = "dropped"
)

var ErrNilMeter = errors.New("nil meter")

// QueueSource exposes backlog figures of an asynchronous worker queue.
type QueueSource interface {
	Pending() int
	Dropped() uint64
}

// Metrics records auth and notification counters. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	authEvents    metric.Int64Counter
	notifications metric.Int64Counter
	registration  metric.Registration
	meter         metric.Meter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}

	auth, err := meter.Int64Counter("soultalk_auth_events_total",
		metric.WithDescription("Auth flow attempts by event and outcome."))
	if err != nil {
		return nil, fmt.Errorf("create auth counter: %w", err)
	}

	notifications, err := meter.Int64Counter("soultalk_notifications_total",
		metric.WithDescription("Outbound emails by kind and outcome."))
	if err != nil {
		return nil, fmt.Errorf("create notification counter: %w", err)
	}

	return &Metrics{authEvents: auth, notifications: notifications, meter: meter}, nil
}

// RecordAuth counts one auth flow attempt, e.g. ("login", OutcomeFailure).
func (m *Metrics) RecordAuth(ctx context.Context, event, outcome string) {
	if m == nil {
		return
	}
	m.authEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("outcome", outcome),
	))
}

// RecordNotification counts one email delivery attempt.
func (m *Metrics) RecordNotification(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// ObserveQueue publishes the backlog and drop count of src on every
// collection. Only one queue can be observed at a time.
func (m *Metrics) ObserveQueue(src QueueSource) error {
	if m == nil || src == nil {
		return nil
	}

	pending, err := m.meter.Int64ObservableGauge("soultalk_mail_queue_pending",
		metric.WithDescription("Emails waiting in the dispatcher queue."))
	if err != nil {
		return fmt.Errorf("create queue gauge: %w", err)
	}
	dropped, err := m.meter.Int64ObservableCounter("soultalk_mail_dropped_total",
		metric.WithDescription("Emails dropped due to dispatcher backpressure."))
	if err != nil {
		return fmt.Errorf("create dropped counter: %w", err)
	}

	reg, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(pending, int64(src.Pending()))
		o.ObserveInt64(dropped, int64(src.Dropped()))
		return nil
	}, pending, dropped)
	if err != nil {
		return fmt.Errorf("register callback: %w", err)
	}
	m.registration = reg
	return nil
}

func (m *Metrics) Close() error {
	if m == nil || m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}
