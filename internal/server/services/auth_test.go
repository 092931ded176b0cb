package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/server/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, err := range []error{
		common.ErrorNotFound,
		common.ErrInvalidToken,
		common.ErrProviderKindLinked.Withf("custom"),
		fmt.Errorf("wrapped: %w", common.ErrLastLoginMethod),
		context.Canceled,
	} {
		assert.Same(t, err, h.svc.fail(ctx, "op", err))
	}

	assert.Same(t, common.ErrorInternal, h.svc.fail(ctx, "op", errors.New("db error: boom")))
	assert.NoError(t, h.svc.fail(ctx, "op", nil))
}

func TestAuthService_RecordsOutcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := telemetry.NewMetrics(provider.Meter("services-test"))
	require.NoError(t, err)

	h := newHarness(t, WithMetrics(m))
	h.seedUser("alice@example.com", "s3cret-pass", true)

	h.commit()
	_, err = h.svc.Login(context.Background(), "alice@example.com", "s3cret-pass", h.client)
	require.NoError(t, err)
	h.rollback()
	_, err = h.svc.Login(context.Background(), "alice@example.com", "wrong-pass", h.client)
	require.Error(t, err)
	h.limit.err = common.ErrRateLimited
	_, err = h.svc.Login(context.Background(), "alice@example.com", "s3cret-pass", h.client)
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byOutcome := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if metric.Name != "soultalk_auth_events_total" {
				continue
			}
			for _, dp := range metric.Data.(metricdata.Sum[int64]).DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("outcome"))
				byOutcome[v.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{
		telemetry.OutcomeSuccess: 1,
		telemetry.OutcomeFailure: 1,
		telemetry.OutcomeLimited: 1,
	}, byOutcome)
}
