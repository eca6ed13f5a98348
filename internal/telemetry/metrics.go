package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/prodbuild"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Build metrics
	BuildsTotal        metric.Int64Counter
	BuildDuration      metric.Float64Histogram
	BuildWarningsTotal metric.Int64Counter
	OutputBytes        metric.Int64Counter

	// Resolution metrics
	ResolutionsTotal      metric.Int64Counter
	ResolutionErrorsTotal metric.Int64Counter

	// Serve metrics
	RequestsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments. The global meter
// provider is a no-op until InitTelemetry runs, so instruments are always safe
// to use.
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.BuildsTotal, _ = meter.Int64Counter(
		"prodbuild.builds.total",
		metric.WithDescription("Total number of builds by status"),
		metric.WithUnit("{build}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"prodbuild.builds.duration",
		metric.WithDescription("Duration of builds"),
		metric.WithUnit("ms"),
	)

	m.BuildWarningsTotal, _ = meter.Int64Counter(
		"prodbuild.builds.warnings.total",
		metric.WithDescription("Total number of build warnings"),
		metric.WithUnit("{warning}"),
	)

	m.OutputBytes, _ = meter.Int64Counter(
		"prodbuild.outputs.bytes",
		metric.WithDescription("Total bytes written to output directories"),
		metric.WithUnit("By"),
	)

	m.ResolutionsTotal, _ = meter.Int64Counter(
		"prodbuild.resolutions.total",
		metric.WithDescription("Total number of configuration resolutions"),
		metric.WithUnit("{resolution}"),
	)

	m.ResolutionErrorsTotal, _ = meter.Int64Counter(
		"prodbuild.resolutions.errors.total",
		metric.WithDescription("Total number of failed configuration resolutions"),
		metric.WithUnit("{error}"),
	)

	m.RequestsTotal, _ = meter.Int64Counter(
		"prodbuild.serve.requests.total",
		metric.WithDescription("Total number of requests served from the output directory"),
		metric.WithUnit("{request}"),
	)

	return m
}
