package exporter

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	sheetAnomalies  = "Anomalies"
	sheetSeries     = "Series"
	sheetStatistics = "Statistics"
)

// WriteWorkbook writes the report as an .xlsx workbook with Anomalies, Series and
// Statistics sheets.
func WriteWorkbook(w io.Writer, r Report, precision int) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetAnomalies); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetSeries, sheetStatistics} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	anomalies := make([][]interface{}, 0, len(r.Summary.Details))
	for _, d := range r.Summary.Details {
		anomalies = append(anomalies, []interface{}{
			formatTime(d.Time),
			d.Volume,
			round(d.ZScore, precision),
			round(d.AnomalyScore, precision),
			round(d.PercentAboveAverage, precision),
			string(d.Severity),
		})
	}
	if err := writeSheet(f, sheetAnomalies, header, SummaryHeaders, anomalies); err != nil {
		return err
	}

	series := make([][]interface{}, 0, len(r.Points))
	for _, p := range r.Points {
		series = append(series, []interface{}{
			formatTime(p.Time),
			p.Open, p.High, p.Low, p.Close, p.Volume,
			round(p.ZScore, precision),
			p.IsAnomaly,
			p.IsEventDay,
			round(p.AnomalyScore, precision),
		})
	}
	if err := writeSheet(f, sheetSeries, header, SeriesHeaders, series); err != nil {
		return err
	}

	s := r.Statistics
	stats := [][]interface{}{
		{"symbol", r.Symbol},
		{"total_days", s.TotalDays},
		{"average_volume", round(s.Mean, precision)},
		{"std_deviation", round(s.StdDev, precision)},
		{"min_volume", s.Min},
		{"max_volume", s.Max},
		{"median_volume", s.Median},
		{"anomaly_threshold", round(s.Threshold, precision)},
		{"z_multiplier", r.Baseline.ZMultiplier},
		{"pre_event_window_days", r.Options.PreEventWindowDays},
		{"anomaly_count", s.AnomalyCount},
		{"event_day_count", s.EventDayCount},
		{"rejected_events", len(r.Rejected)},
	}
	if err := writeSheet(f, sheetStatistics, header, []string{"metric", "value"}, stats); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]interface{}) error {
	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}

	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func round(f float64, precision int) float64 {
	return decimal.NewFromFloat(f).Round(int32(clampPrecision(precision))).InexactFloat64()
}
