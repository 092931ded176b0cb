package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(provider.Meter("soultalk-test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestRecordAuth(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAuth(ctx, "login", OutcomeSuccess)
	m.RecordAuth(ctx, "login", OutcomeSuccess)
	m.RecordAuth(ctx, "login", OutcomeFailure)

	got := collect(t, reader)
	sum, ok := got["soultalk_auth_events_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byOutcome := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("outcome"))
		byOutcome[v.AsString()] = dp.Value
	}
	assert.Equal(t, int64(2), byOutcome[OutcomeSuccess])
	assert.Equal(t, int64(1), byOutcome[OutcomeFailure])
}

type fakeQueue struct{}

func (fakeQueue) Pending() int    { return 4 }
func (fakeQueue) Dropped() uint64 { return 7 }

func TestObserveQueue(t *testing.T) {
	m, reader := newTestMetrics(t)
	require.NoError(t, m.ObserveQueue(fakeQueue{}))
	t.Cleanup(func() { _ = m.Close() })

	got := collect(t, reader)

	gauge, ok := got["soultalk_mail_queue_pending"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(4), gauge.DataPoints[0].Value)

	dropped, ok := got["soultalk_mail_dropped_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(7), dropped.DataPoints[0].Value)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordAuth(context.Background(), "login", OutcomeSuccess)
	m.RecordNotification(context.Background(), "verification", OutcomeDropped)
	assert.NoError(t, m.ObserveQueue(fakeQueue{}))
	assert.NoError(t, m.Close())
}

func TestNewMetrics_NilMeter(t *testing.T) {
	_, err := NewMetrics(nil)
	assert.ErrorIs(t, err, ErrNilMeter)
}

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "soultalk-auth", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
