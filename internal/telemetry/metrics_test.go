package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestGetMetricsRecordsBuilds(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	ctx := context.Background()
	m := GetMetrics()
	require.Same(t, m, GetMetrics())

	m.BuildsTotal.Add(ctx, 2)
	m.OutputBytes.Add(ctx, 1024)
	m.BuildDuration.Record(ctx, 12.5)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Equal(t, meterName, rm.ScopeMetrics[0].Scope.Name)

	sums := make(map[string]int64)
	names := make(map[string]bool)
	for _, md := range rm.ScopeMetrics[0].Metrics {
		names[md.Name] = true
		if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range sum.DataPoints {
				sums[md.Name] += dp.Value
			}
		}
	}

	require.Equal(t, int64(2), sums["prodbuild.builds.total"])
	require.Equal(t, int64(1024), sums["prodbuild.outputs.bytes"])
	require.True(t, names["prodbuild.builds.duration"])
}
