package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"finsight/internal/anomaly"
)

// Report bundles everything produced by one analysis.
type Report struct {
	Symbol      string
	Interval    string
	Source      string
	GeneratedAt time.Time
	Options     anomaly.Options
	Baseline    anomaly.Baseline
	Statistics  anomaly.Statistics
	Summary     anomaly.AnomalySummary
	Points      []anomaly.AnnotatedPoint
	Accepted    []anomaly.EventMark
	Rejected    []anomaly.RejectedEvent
}

// SummaryHeaders are the columns written by WriteSummaryCSV.
var SummaryHeaders = []string{"date", "volume", "z_score", "anomaly_score", "percentage_above_avg", "severity"}

// SeriesHeaders are the columns written by WriteSeriesCSV.
var SeriesHeaders = []string{"date", "open", "high", "low", "close", "volume", "z_score", "is_anomaly", "is_event_day", "anomaly_score"}

// SummaryRecords converts the flagged days into CSV rows.
func SummaryRecords(summary anomaly.AnomalySummary, precision int) [][]string {
	records := make([][]string, 0, len(summary.Details))
	for _, d := range summary.Details {
		records = append(records, []string{
			formatTime(d.Time),
			formatFixed(d.Volume, 0),
			formatFixed(d.ZScore, precision),
			formatFixed(d.AnomalyScore, precision),
			formatFixed(d.PercentAboveAverage, precision),
			string(d.Severity),
		})
	}
	return records
}

// SeriesRecords converts every annotated point into CSV rows.
func SeriesRecords(points []anomaly.AnnotatedPoint, precision int) [][]string {
	records := make([][]string, 0, len(points))
	for _, p := range points {
		records = append(records, []string{
			formatTime(p.Time),
			formatFixed(p.Open, precision),
			formatFixed(p.High, precision),
			formatFixed(p.Low, precision),
			formatFixed(p.Close, precision),
			formatFixed(p.Volume, 0),
			formatFixed(p.ZScore, precision),
			formatBool(p.IsAnomaly),
			formatBool(p.IsEventDay),
			formatFixed(p.AnomalyScore, precision),
		})
	}
	return records
}

// WriteSummaryCSV writes the flagged days with numbers fixed to precision decimals.
func WriteSummaryCSV(w io.Writer, summary anomaly.AnomalySummary, precision int) error {
	return writeRecords(w, SummaryHeaders, SummaryRecords(summary, precision))
}

// WriteSeriesCSV writes the full annotated series.
func WriteSeriesCSV(w io.Writer, points []anomaly.AnnotatedPoint, precision int) error {
	return writeRecords(w, SeriesHeaders, SeriesRecords(points, precision))
}

// RenderTextReport writes the plain-text analysis report.
func RenderTextReport(w io.Writer, r Report) error {
	ew := &errWriter{w: w}
	stats := r.Statistics

	ew.printf("FIN-SIGHT Analysis Report\n")
	if r.Symbol != "" {
		ew.printf("Symbol: %s", r.Symbol)
		if r.Interval != "" {
			ew.printf(" (%s)", r.Interval)
		}
		ew.printf("\n")
	}
	ew.printf("Generated: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))

	ew.printf("SUMMARY\n-------\n")
	ew.printf("Total Days Analyzed: %s\n", formatThousands(float64(stats.TotalDays), 0))
	ew.printf("Anomalies Detected: %d\n", r.Summary.TotalAnomalies)
	ew.printf("Event Days: %d\n", stats.EventDayCount)
	if r.Options.PreEventWindowDays > 0 {
		ew.printf("Pre-Event Window: %d days\n", r.Options.PreEventWindowDays)
	}
	ew.printf("Z Multiplier: %s\n\n", formatFixed(r.Baseline.ZMultiplier, 1))

	ew.printf("STATISTICS\n----------\n")
	ew.printf("Average Volume: %s\n", formatThousands(stats.Mean, 0))
	ew.printf("Standard Deviation: %s\n", formatThousands(stats.StdDev, 0))
	ew.printf("Minimum Volume: %s\n", formatThousands(stats.Min, 0))
	ew.printf("Maximum Volume: %s\n", formatThousands(stats.Max, 0))
	ew.printf("Median Volume: %s\n", formatThousands(stats.Median, 0))
	ew.printf("Anomaly Threshold: %s\n", formatThousands(stats.Threshold, 0))
	if r.Baseline.Degenerate {
		ew.printf("Note: volume is constant, no day can exceed the threshold\n")
	}
	ew.printf("\n")

	ew.printf("ANOMALIES\n---------\n")
	if r.Summary.TotalAnomalies == 0 {
		ew.printf("No anomalies detected.\n")
	}
	for _, d := range r.Summary.Details {
		ew.printf("\nDate: %s\n", formatTime(d.Time))
		ew.printf("  Volume: %s\n", formatThousands(d.Volume, 0))
		ew.printf("  Z-Score: %s\n", formatFixed(d.ZScore, 2))
		ew.printf("  Severity: %s\n", d.Severity)
		ew.printf("  Above Average: %s\n", formatPercent(d.PercentAboveAverage))
	}

	if len(r.Rejected) > 0 {
		ew.printf("\nIGNORED EVENTS\n--------------\n")
		for _, rej := range r.Rejected {
			ew.printf("%s: %s\n", rej.Reason, rej.Message)
		}
	}

	return ew.err
}

type jsonReport struct {
	Symbol      string                  `json:"symbol,omitempty"`
	Interval    string                  `json:"interval,omitempty"`
	GeneratedAt time.Time               `json:"generated_at"`
	Summary     jsonSummary             `json:"summary"`
	Statistics  anomaly.Statistics      `json:"statistics"`
	Anomalies   []anomaly.AnomalyDetail `json:"anomalies"`
	Rejected    []anomaly.RejectedEvent `json:"rejected_events,omitempty"`
}

type jsonSummary struct {
	TotalDays         int `json:"total_days"`
	AnomaliesDetected int `json:"anomalies_detected"`
	EventDays         int `json:"event_days"`
}

// RenderJSONReport writes the report as indented JSON.
func RenderJSONReport(w io.Writer, r Report) error {
	anomalies := r.Summary.Details
	if anomalies == nil {
		anomalies = []anomaly.AnomalyDetail{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		Symbol:      r.Symbol,
		Interval:    r.Interval,
		GeneratedAt: r.GeneratedAt,
		Summary: jsonSummary{
			TotalDays:         r.Statistics.TotalDays,
			AnomaliesDetected: r.Summary.TotalAnomalies,
			EventDays:         r.Statistics.EventDayCount,
		},
		Statistics: r.Statistics,
		Anomalies:  anomalies,
		Rejected:   r.Rejected,
	})
}

// formatTime drops the clock for midnight timestamps
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
