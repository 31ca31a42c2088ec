// Package services holds the application layer between HTTP handlers or the
// CLI and the detection core.
//
// AnalysisService runs one analysis end to end: it resolves parameters against
// the configured bounds, obtains a series from a marketdata.Provider or from
// caller supplied points, parses event marks, runs anomaly.DetectAnomalies and
// stores the resulting report in a bounded in-memory ReportStore. Completed
// analyses are broadcast through a Notifier and counted in
// infrastructure.AnalysisMetrics.
//
// AnalyzeBatch fans one request template out over several symbols with an
// errgroup limited to the configured concurrency. Each symbol gets its own
// baseline.
//
// HealthService answers the health, readiness, liveness and version endpoints.
package services
