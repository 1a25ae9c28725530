package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/log"
)

// newTestFactory creates a Factory wired to an in-memory ManualReader so we
// can collect and inspect metric data without any exporter.
func newTestFactory(t *testing.T) (*Factory, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	factory, err := NewFactory(mp.Meter("resilience-test"), &log.NoneLogger{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	return factory, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}

	return nil
}

func hasAttribute(attrs attribute.Set, key, value string) bool {
	v, found := attrs.Value(attribute.Key(key))
	if !found {
		return false
	}

	return v.AsString() == value
}

func TestNewFactory_NilMeter(t *testing.T) {
	factory, err := NewFactory(nil, &log.NoneLogger{})

	require.ErrorIs(t, err, ErrNilMeter)
	assert.Nil(t, factory)
}

func TestFactory_CounterRecordsWithLabels(t *testing.T) {
	factory, reader := newTestFactory(t)

	counter, err := factory.Counter(MetricFallbackExecutions)
	require.NoError(t, err)

	err = counter.
		WithLabels(map[string]string{"service": "payment-gateway", "outcome": "success"}).
		AddOne(context.Background())
	require.NoError(t, err)

	rm := collectMetrics(t, reader)
	m := findMetric(rm, MetricFallbackExecutions.Name)
	require.NotNil(t, m)

	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64] data type, got %T", m.Data)
	require.Len(t, data.DataPoints, 1)

	dp := data.DataPoints[0]
	assert.Equal(t, int64(1), dp.Value)
	assert.True(t, hasAttribute(dp.Attributes, "service", "payment-gateway"))
	assert.True(t, hasAttribute(dp.Attributes, "outcome", "success"))
}

func TestFactory_GaugeKeepsLastValue(t *testing.T) {
	factory, reader := newTestFactory(t)

	gauge, err := factory.Gauge(MetricServiceAvailability)
	require.NoError(t, err)

	require.NoError(t, gauge.Set(context.Background(), 50))
	require.NoError(t, gauge.Set(context.Background(), 75))

	rm := collectMetrics(t, reader)
	m := findMetric(rm, MetricServiceAvailability.Name)
	require.NotNil(t, m)

	data, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "expected Gauge[int64] data type, got %T", m.Data)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, int64(75), data.DataPoints[0].Value)
}

func TestFactory_HistogramDefaultBuckets(t *testing.T) {
	factory, reader := newTestFactory(t)

	histogram, err := factory.Histogram(MetricHealthCheckDuration)
	require.NoError(t, err)

	require.NoError(t, histogram.Record(context.Background(), 42))

	rm := collectMetrics(t, reader)
	m := findMetric(rm, MetricHealthCheckDuration.Name)
	require.NotNil(t, m)

	data, ok := m.Data.(metricdata.Histogram[int64])
	require.True(t, ok, "expected Histogram[int64] data type, got %T", m.Data)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, uint64(1), data.DataPoints[0].Count)
	assert.Equal(t, DefaultDurationBuckets, data.DataPoints[0].Bounds)
}

func TestFactory_ConcurrentCounterCreation(t *testing.T) {
	factory, reader := newTestFactory(t)

	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			counter, err := factory.Counter(MetricBreakerStateChanges)
			if assert.NoError(t, err) {
				_ = counter.AddOne(context.Background())
			}
		}()
	}

	wg.Wait()

	rm := collectMetrics(t, reader)
	m := findMetric(rm, MetricBreakerStateChanges.Name)
	require.NotNil(t, m)

	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}

	assert.Equal(t, int64(20), total)
}

func TestSelectDefaultBuckets(t *testing.T) {
	assert.Equal(t, DefaultRecoveryBuckets, selectDefaultBuckets("circuit_breaker.recovery.duration"))
	assert.Equal(t, DefaultDurationBuckets, selectDefaultBuckets("health.check.duration"))
	assert.Equal(t, DefaultDurationBuckets, selectDefaultBuckets("unknown.metric"))
}

func TestNewNopFactory_RecordsWithoutError(t *testing.T) {
	factory := NewNopFactory()

	counter, err := factory.Counter(MetricFallbackExecutions)
	require.NoError(t, err)
	assert.NoError(t, counter.AddOne(context.Background()))

	require.NoError(t, factory.RecordSystemCPUUsage(context.Background(), 10))
	require.NoError(t, factory.RecordSystemMemUsage(context.Background(), 20))
}

func TestSystemSampler_RecordsGauges(t *testing.T) {
	factory, reader := newTestFactory(t)

	sampler := NewSystemSampler(factory, &log.NoneLogger{}, time.Second)
	sampler.sample(context.Background())

	rm := collectMetrics(t, reader)
	assert.NotNil(t, findMetric(rm, MetricSystemCPUUsage.Name))
	assert.NotNil(t, findMetric(rm, MetricSystemMemUsage.Name))
}

func TestSystemSampler_StartStop(t *testing.T) {
	factory, _ := newTestFactory(t)

	sampler := NewSystemSampler(factory, &log.NoneLogger{}, time.Second)
	sampler.Start()
	sampler.Stop()

	// Stop is idempotent.
	sampler.Stop()
}
