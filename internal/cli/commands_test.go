package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/anomaly"
	apperrors "finsight/internal/errors"
	"finsight/internal/services"
)

const spikeCSV = `Date,Open,High,Low,Close,Volume
2024-03-01,10,10,10,10,100
2024-03-02,10,10,10,10,100
2024-03-03,10,10,10,10,100
2024-03-04,10,10,10,10,100
2024-03-05,10,10,10,10,100
2024-03-06,10,10,10,10,100
2024-03-07,10,10,10,10,100
2024-03-08,10,10,10,10,500
2024-03-09,10,10,10,10,100
2024-03-10,10,10,10,10,100
`

// fixture writes a config, a series file and an events file into a temp dir.
func fixture(t *testing.T) (dir, configPath, seriesPath, eventsPath string) {
	t.Helper()
	dir = t.TempDir()

	configPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("export:\n  bom: false\n"), 0644))

	seriesPath = filepath.Join(dir, "ACME Daily.csv")
	require.NoError(t, os.WriteFile(seriesPath, []byte(spikeCSV), 0644))

	eventsPath = filepath.Join(dir, "events.txt")
	require.NoError(t, os.WriteFile(eventsPath, []byte("# earnings\n2024-03-09, Q1 earnings\nsoon\n"), 0644))
	return dir, configPath, seriesPath, eventsPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyze_FileWritesReports(t *testing.T) {
	dir, configPath, seriesPath, eventsPath := fixture(t)
	outDir := filepath.Join(dir, "reports")

	out, err := execute(t, "analyze",
		"--config", configPath,
		"--file", seriesPath,
		"--events", eventsPath,
		"--z", "2",
		"--out", outDir,
		"--xlsx",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "FIN-SIGHT Analysis Report")
	assert.Contains(t, out, "2024-03-08")
	assert.Contains(t, out, "Medium")
	assert.Contains(t, out, `rejected "soon"`)

	anomalies, err := os.ReadFile(filepath.Join(outDir, "acme_daily_anomalies.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(anomalies)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "date,volume,z_score,anomaly_score,percentage_above_avg,severity", lines[0])
	assert.Equal(t, "2024-03-08,500,2.85,2.85,257.14,Medium", lines[1])

	series, err := os.ReadFile(filepath.Join(outDir, "acme_daily_series.csv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(series)), "\n"), 11)

	info, err := os.Stat(filepath.Join(outDir, "acme_daily.xlsx"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestAnalyze_JSONWithoutFiles(t *testing.T) {
	dir, configPath, seriesPath, _ := fixture(t)

	out, err := execute(t, "analyze",
		"--config", configPath,
		"--file", seriesPath,
		"--event", "2024-03-09",
		"--z", "2",
		"--json",
		"--no-files",
		"--out", filepath.Join(dir, "reports"),
	)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded), out)

	_, err = os.Stat(filepath.Join(dir, "reports"))
	assert.True(t, os.IsNotExist(err), "no files are written with --no-files")
}

func TestAnalyze_Errors(t *testing.T) {
	_, configPath, seriesPath, _ := fixture(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "neither symbol nor file",
			args:    []string{"analyze", "--config", configPath},
			wantErr: "exactly one of --symbol or --file",
		},
		{
			name:    "both symbol and file",
			args:    []string{"analyze", "--config", configPath, "--symbol", "IBM", "--file", seriesPath},
			wantErr: "exactly one of --symbol or --file",
		},
		{
			name:    "bad start date",
			args:    []string{"analyze", "--config", configPath, "--file", seriesPath, "--start", "03/01/2024"},
			wantErr: "invalid --start",
		},
		{
			name:    "missing events file",
			args:    []string{"analyze", "--config", configPath, "--file", seriesPath, "--events", "/nonexistent/events.txt"},
			wantErr: "read events file",
		},
		{
			name:    "z out of range",
			args:    []string{"analyze", "--config", configPath, "--file", seriesPath, "--z", "9", "--no-files"},
			wantErr: "z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAnalyze_ErrorTypes(t *testing.T) {
	dir, configPath, seriesPath, _ := fixture(t)

	badSeries := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(badSeries, []byte("Date,Open,High,Low,Close,Volume\n2024-03-01,10,10,10,10,lots\n"), 0644))

	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("not a directory"), 0644))

	tests := []struct {
		name     string
		args     []string
		wantType apperrors.ErrorType
	}{
		{
			name:     "unreadable series file",
			args:     []string{"analyze", "--config", configPath, "--file", badSeries},
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "output directory is a file",
			args:     []string{"analyze", "--config", configPath, "--file", seriesPath, "--out", filepath.Join(blocked, "reports")},
			wantType: apperrors.ErrTypeStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr), err.Error())
			assert.Equal(t, tt.wantType, appErr.Type)
		})
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		want    string
	}{
		{
			name: "yahoo needs no key",
			yaml: "provider:\n  kind: yahoo\nexport:\n  reports_dir: " + filepath.Join(dir, "ok") + "\n",
			want: "All checks passed",
		},
		{
			name:    "alpha vantage without key",
			yaml:    "provider:\n  kind: alphavantage\n  api_key: \"\"\nexport:\n  reports_dir: " + filepath.Join(dir, "av") + "\n",
			wantErr: true,
			want:    "FAIL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ALPHA_VANTAGE_API_KEY", "")
			t.Setenv("FINSIGHT_PROVIDER_API_KEY", "")
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))

			out, err := execute(t, "check", "--config", path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "finsight")
}

func TestFileBase(t *testing.T) {
	tests := []struct {
		name   string
		report services.AnalysisReport
		want   string
	}{
		{name: "symbol", report: services.AnalysisReport{Symbol: "BRK.B"}, want: "brk.b"},
		{name: "source file", report: services.AnalysisReport{Source: "My Series.xlsx"}, want: "my_series"},
		{name: "path separators", report: services.AnalysisReport{Source: "a/b"}, want: "a_b"},
		{name: "empty", report: services.AnalysisReport{}, want: "analysis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fileBase(&tt.report))
		})
	}
}

func TestRenderSummary(t *testing.T) {
	report := &services.AnalysisReport{
		Symbol:   "IBM",
		Interval: "daily",
		Source:   "alphavantage",
		Summary: anomaly.AnomalySummary{
			TotalAnomalies: 1,
			Details: []anomaly.AnomalyDetail{{
				Time:         time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
				Volume:       500,
				AnomalyScore: 2.85,
				Severity:     anomaly.SeverityMedium,
			}},
		},
		Rejected: []anomaly.RejectedEvent{{Raw: "soon", Reason: "unparsable"}},
	}

	out := renderSummary(report)
	assert.Contains(t, out, "IBM (daily, alphavantage)")
	assert.Contains(t, out, "2024-03-08")
	assert.Contains(t, out, "Medium")
	assert.Contains(t, out, `rejected "soon"`)
}
