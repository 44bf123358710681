package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newManual(t *testing.T) (*AppMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	m, err := NewAppMetrics(provider.Meter("test"), "grocery-test")
	require.NoError(t, err)
	return m, reader
}

func findSum(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, mm := range sm.Metrics {
			if mm.Name == name {
				sum, ok := mm.Data.(metricdata.Sum[int64])
				require.True(t, ok, "metric %s is not an int64 sum", name)
				return sum
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.Sum[int64]{}
}

func TestRecordDBQuery(t *testing.T) {
	m, reader := newManual(t)
	ctx := context.Background()

	m.RecordDBQuery(ctx, "SELECT", "products", "SELECT 1", time.Now(), true)
	m.RecordDBQuery(ctx, "SELECT", "products", "SELECT 1", time.Now(), false)

	sum := findSum(t, reader, "db.client.queries.count")
	require.Len(t, sum.DataPoints, 2)

	var statuses []string
	for _, dp := range sum.DataPoints {
		assert.Equal(t, int64(1), dp.Value)
		status, ok := dp.Attributes.Value("status")
		require.True(t, ok)
		statuses = append(statuses, status.AsString())
		svc, ok := dp.Attributes.Value("service.name")
		require.True(t, ok)
		assert.Equal(t, "grocery-test", svc.AsString())
	}
	assert.ElementsMatch(t, []string{"success", "error"}, statuses)
}

func TestAttrsAddsServiceName(t *testing.T) {
	m, reader := newManual(t)

	m.OrdersCreated.Add(context.Background(), 3, m.Attrs(attribute.String("order_status", "pending")))

	sum := findSum(t, reader, "orders_created_total")
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
	svc, ok := sum.DataPoints[0].Attributes.Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "grocery-test", svc.AsString())
}

func TestParseHeaders(t *testing.T) {
	headers := parseHeaders(" signoz-ingestion-key = abc ,x-team=store,broken")
	assert.Equal(t, map[string]string{"signoz-ingestion-key": "abc", "x-team": "store"}, headers)
	assert.Empty(t, parseHeaders(""))
}

func TestNewNoop(t *testing.T) {
	m := NewNoop()
	assert.NotPanics(t, func() {
		m.RecordDBQuery(context.Background(), "INSERT", "orders", "INSERT", time.Now(), true)
	})
}
