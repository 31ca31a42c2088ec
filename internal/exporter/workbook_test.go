package exporter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	report := sampleReport(t)

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, report, 2))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetAnomalies, sheetSeries, sheetStatistics}, f.GetSheetList())

	anomalies, err := f.GetRows(sheetAnomalies)
	require.NoError(t, err)
	require.Len(t, anomalies, 2)
	assert.Equal(t, SummaryHeaders, anomalies[0])
	assert.Equal(t, "2024-01-08", anomalies[1][0])
	assert.Equal(t, "2.85", anomalies[1][2])
	assert.Equal(t, "Medium", anomalies[1][5])

	series, err := f.GetRows(sheetSeries)
	require.NoError(t, err)
	assert.Len(t, series, 11)

	total, err := f.GetCellValue(sheetStatistics, "B3")
	require.NoError(t, err)
	assert.Equal(t, "10", total)
}
