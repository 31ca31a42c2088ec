package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"finsight/internal/anomaly"
)

// LoadSeriesFile reads a series from a .csv or .xlsx file with the columns
// Date,Open,High,Low,Close,Volume. A header row is optional. The result is sorted
// ascending but otherwise unvalidated.
func LoadSeriesFile(path string) ([]anomaly.TimePoint, error) {
	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbookRows(path)
	case ".csv", ".txt", "":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open series file: %w", err)
		}
		defer f.Close()
		rows, err = readCSVRows(f)
	default:
		return nil, fmt.Errorf("unsupported series file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	return parseRows(rows)
}

// ReadSeriesCSV parses CSV content in the LoadSeriesFile layout.
func ReadSeriesCSV(r io.Reader) ([]anomaly.TimePoint, error) {
	rows, err := readCSVRows(r)
	if err != nil {
		return nil, err
	}
	return parseRows(rows)
}

func readCSVRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV records: %w", err)
	}
	return records, nil
}

func readWorkbookRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func parseRows(rows [][]string) ([]anomaly.TimePoint, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty series file")
	}

	if len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}

	start := 0
	if isHeaderRow(rows[0]) {
		start = 1
	}

	points := make([]anomaly.TimePoint, 0, len(rows)-start)
	for i := start; i < len(rows); i++ {
		if blankRow(rows[i]) {
			continue
		}
		p, err := parseRecord(rows[i], i+1)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("series file contains no data rows")
	}

	return clip(points, time.Time{}, time.Time{}), nil
}

func parseRecord(record []string, line int) (anomaly.TimePoint, error) {
	if len(record) < 6 {
		return anomaly.TimePoint{}, fmt.Errorf("line %d: expected 6 columns, got %d", line, len(record))
	}

	t, err := parseRowDate(strings.TrimSpace(record[0]))
	if err != nil {
		return anomaly.TimePoint{}, fmt.Errorf("line %d: %w", line, err)
	}

	p := anomaly.TimePoint{Time: t}
	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", record[1], &p.Open},
		{"high", record[2], &p.High},
		{"low", record[3], &p.Low},
		{"close", record[4], &p.Close},
		{"volume", record[5], &p.Volume},
	} {
		v, err := parseNumber(f.raw)
		if err != nil {
			return anomaly.TimePoint{}, fmt.Errorf("line %d: parse %s: %w", line, f.name, err)
		}
		*f.dst = v
	}
	return p, nil
}

// parseNumber accepts thousands separators as written by spreadsheet exports
func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(s, 64)
}

func parseRowDate(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"01/02/2006",
		"2006/01/02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date %q", s)
}

func isHeaderRow(record []string) bool {
	if len(record) == 0 {
		return false
	}
	_, err := parseRowDate(strings.TrimSpace(record[0]))
	return err != nil
}

func blankRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
