package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// AnalysisMetrics are the instruments recorded for every analysis.
type AnalysisMetrics struct {
	AnalysesTotal      metric.Int64Counter
	AnalysisErrors     metric.Int64Counter
	AnomaliesFlagged   metric.Int64Counter
	RejectedEvents     metric.Int64Counter
	AnalysisDuration   metric.Float64Histogram
	ProviderRequests   metric.Int64Counter
	HTTPRequestsTotal  metric.Int64Counter
	HTTPRequestLatency metric.Float64Histogram
}

// NewAnalysisMetrics creates the instruments on meter. A nil meter yields no-op
// instruments.
func NewAnalysisMetrics(meter metric.Meter) (*AnalysisMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	var (
		m   AnalysisMetrics
		err error
	)

	if m.AnalysesTotal, err = meter.Int64Counter("finsight_analyses_total",
		metric.WithDescription("Completed anomaly analyses")); err != nil {
		return nil, fmt.Errorf("create analyses counter: %w", err)
	}
	if m.AnalysisErrors, err = meter.Int64Counter("finsight_analysis_errors_total",
		metric.WithDescription("Analyses that failed")); err != nil {
		return nil, fmt.Errorf("create analysis error counter: %w", err)
	}
	if m.AnomaliesFlagged, err = meter.Int64Counter("finsight_anomalies_flagged_total",
		metric.WithDescription("Pre-event volume anomalies flagged")); err != nil {
		return nil, fmt.Errorf("create anomalies counter: %w", err)
	}
	if m.RejectedEvents, err = meter.Int64Counter("finsight_rejected_events_total",
		metric.WithDescription("Event marks ignored as unparsable or out of range")); err != nil {
		return nil, fmt.Errorf("create rejected events counter: %w", err)
	}
	if m.AnalysisDuration, err = meter.Float64Histogram("finsight_analysis_duration_seconds",
		metric.WithDescription("Time spent on a single analysis including data fetch"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	if m.ProviderRequests, err = meter.Int64Counter("finsight_provider_requests_total",
		metric.WithDescription("Market data fetches by provider and outcome")); err != nil {
		return nil, fmt.Errorf("create provider counter: %w", err)
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter("finsight_http_requests_total",
		metric.WithDescription("HTTP requests served")); err != nil {
		return nil, fmt.Errorf("create http counter: %w", err)
	}
	if m.HTTPRequestLatency, err = meter.Float64Histogram("finsight_http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create http histogram: %w", err)
	}

	return &m, nil
}

// RecordAnalysis records the outcome of one analysis.
func (m *AnalysisMetrics) RecordAnalysis(ctx context.Context, source string, anomalies, rejected int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("source", source))

	if err != nil {
		m.AnalysisErrors.Add(ctx, 1, attrs)
		return
	}
	m.AnalysesTotal.Add(ctx, 1, attrs)
	m.AnomaliesFlagged.Add(ctx, int64(anomalies), attrs)
	m.RejectedEvents.Add(ctx, int64(rejected), attrs)
	m.AnalysisDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordProviderRequest counts a market data fetch.
func (m *AnalysisMetrics) RecordProviderRequest(ctx context.Context, provider string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// RecordHTTPRequest records a served request.
func (m *AnalysisMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestLatency.Record(ctx, duration.Seconds(), attrs)
}
