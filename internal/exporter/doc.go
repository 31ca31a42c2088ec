// Package exporter renders analysis results as CSV, XLSX, text and JSON.
//
// CSVWriter writes files under the reports directory with an optional UTF-8 BOM so
// Excel opens them with the right encoding.
//
// The Write* functions stream a single result to any io.Writer:
//
//	WriteSummaryCSV  flagged days only (date, volume, z_score, anomaly_score, percentage_above_avg)
//	WriteSeriesCSV   every point with its detection flags
//	WriteWorkbook    Anomalies, Series and Statistics sheets in one .xlsx file
//
// RenderTextReport and RenderJSONReport produce the human readable report.
//
// Example usage:
//
//	report := exporter.Report{Symbol: "IBM", Summary: summary, Statistics: stats}
//	if err := exporter.WriteSummaryCSV(w, report.Summary, 2); err != nil {
//		return err
//	}
package exporter
