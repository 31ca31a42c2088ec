package events

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/anomaly"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "date only", input: "2024-01-19", want: time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)},
		{name: "iso datetime", input: "2024-01-19T15:30:00", want: time.Date(2024, 1, 19, 15, 30, 0, 0, time.UTC)},
		{name: "space datetime", input: "2024-01-19 15:30:00", want: time.Date(2024, 1, 19, 15, 30, 0, 0, time.UTC)},
		{name: "rfc3339 utc", input: "2024-01-19T15:30:00Z", want: time.Date(2024, 1, 19, 15, 30, 0, 0, time.UTC)},
		{name: "surrounding space", input: "  2024-01-19  ", want: time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)},
		{name: "empty", input: "", wantErr: true},
		{name: "us format", input: "01/19/2024", wantErr: true},
		{name: "invalid day", input: "2024-02-30", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestParse(t *testing.T) {
	text := strings.Join([]string{
		"# earnings calendar",
		"2024-01-19",
		"",
		"2024-04-18, Q1 earnings",
		"not a date",
		"   ",
		"2024-07-18T16:30:00,guidance call ",
		"2024-13-01, bad month",
	}, "\n")

	marks, lineErrs := Parse(text)

	require.Len(t, marks, 3)
	assert.Equal(t, time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC), marks[0].Time)
	assert.Empty(t, marks[0].Label)
	assert.Equal(t, "Q1 earnings", marks[1].Label)
	assert.Equal(t, "guidance call", marks[2].Label)
	assert.Equal(t, 16, marks[2].Time.Hour())

	require.Len(t, lineErrs, 2)
	assert.Equal(t, 5, lineErrs[0].Line)
	assert.Equal(t, "not a date", lineErrs[0].Raw)
	assert.Equal(t, 8, lineErrs[1].Line)
	assert.Contains(t, lineErrs[1].Error(), "line 8")
}

func TestParse_Empty(t *testing.T) {
	marks, lineErrs := Parse("\n# nothing here\n\n")
	assert.Empty(t, marks)
	assert.Empty(t, lineErrs)
}

func TestParseAll(t *testing.T) {
	marks, lineErrs := ParseAll([]string{"2024-01-19", "yesterday", "2024-02-01 09:30:00"})

	assert.Len(t, marks, 2)
	require.Len(t, lineErrs, 1)
	assert.Equal(t, 2, lineErrs[0].Line)
}

func TestLineError_Rejected(t *testing.T) {
	le := LineError{Line: 3, Raw: "soon", Err: errors.New("unrecognised date format")}
	rej := le.Rejected()

	assert.Equal(t, anomaly.RejectUnparsable, rej.Reason)
	assert.Equal(t, 3, rej.Line)
	assert.Equal(t, "soon", rej.Raw)
	assert.True(t, rej.Time.IsZero())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestParseReader_ReadError(t *testing.T) {
	_, _, err := ParseReader(failingReader{})
	assert.ErrorContains(t, err, "disk gone")
}
