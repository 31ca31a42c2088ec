// Package events parses event-date lists into anomaly event marks.
//
// The input format is one event per line:
//
//	# comments and blank lines are ignored
//	2024-01-19
//	2024-04-18, Q1 earnings
//	2024-07-18T16:30:00, guidance call
//
// Lines that cannot be parsed are reported individually and never stop the parse.
package events

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"finsight/internal/anomaly"
)

// Layouts lists the accepted timestamp formats, tried in order.
var Layouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// LineError describes a line that could not be turned into an event mark.
type LineError struct {
	Line int
	Raw  string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Raw, e.Err)
}

func (e LineError) Unwrap() error {
	return e.Err
}

// Rejected converts the line error into a rejected event for reporting.
func (e LineError) Rejected() anomaly.RejectedEvent {
	return anomaly.RejectedEvent{
		Raw:     e.Raw,
		Line:    e.Line,
		Reason:  anomaly.RejectUnparsable,
		Message: e.Err.Error(),
	}
}

// Parse reads event marks from text. Timestamps without a zone are read as UTC.
func Parse(text string) ([]anomaly.EventMark, []LineError) {
	marks, lineErrs, _ := ParseReader(strings.NewReader(text))
	return marks, lineErrs
}

// ParseReader is Parse over a reader. The error is non-nil only when r fails.
func ParseReader(r io.Reader) ([]anomaly.EventMark, []LineError, error) {
	var (
		marks    []anomaly.EventMark
		lineErrs []LineError
	)

	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		mark, err := ParseLine(line)
		if err != nil {
			lineErrs = append(lineErrs, LineError{Line: n, Raw: line, Err: err})
			continue
		}
		marks = append(marks, mark)
	}
	if err := scanner.Err(); err != nil {
		return marks, lineErrs, fmt.Errorf("read events: %w", err)
	}

	return marks, lineErrs, nil
}

// ParseLine parses a single "date[, label]" entry.
func ParseLine(line string) (anomaly.EventMark, error) {
	raw, label, _ := strings.Cut(line, ",")
	t, err := ParseTime(raw)
	if err != nil {
		return anomaly.EventMark{}, err
	}
	return anomaly.EventMark{Time: t, Label: strings.TrimSpace(label)}, nil
}

// ParseTime parses s with the first matching entry in Layouts.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range Layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date format %q", s)
}

// ParseAll parses a list of raw date strings, such as a JSON array from a request.
// The line number of each error is its 1-based position in raw.
func ParseAll(raw []string) ([]anomaly.EventMark, []LineError) {
	marks := make([]anomaly.EventMark, 0, len(raw))
	var lineErrs []LineError
	for i, s := range raw {
		mark, err := ParseLine(s)
		if err != nil {
			lineErrs = append(lineErrs, LineError{Line: i + 1, Raw: s, Err: err})
			continue
		}
		marks = append(marks, mark)
	}
	return marks, lineErrs
}
