// Package marketdata supplies volume series to the detector.
//
// Series come from a remote Provider (Alpha Vantage or Yahoo Finance) or from a local
// CSV/XLSX file. Every source returns points sorted ascending by time.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"finsight/internal/anomaly"
)

var (
	// ErrSymbolNotFound is returned when the provider does not know the symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrRateLimited is returned when the provider refuses the request for quota reasons.
	ErrRateLimited = errors.New("provider rate limit reached")
	// ErrNoData is returned when the provider answers without any series.
	ErrNoData = errors.New("no data available")
	// ErrMissingAPIKey is returned when a provider that needs a key has none.
	ErrMissingAPIKey = errors.New("provider API key not configured")
)

// Interval is the bar size of a series.
type Interval string

const (
	IntervalDaily    Interval = "daily"
	IntervalIntraday Interval = "intraday"
	IntervalWeekly   Interval = "weekly"
)

// ParseInterval maps a user supplied name onto an Interval. Empty means daily.
func ParseInterval(s string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(s))) {
	case "", IntervalDaily:
		return IntervalDaily, nil
	case IntervalIntraday, "60min", "hourly":
		return IntervalIntraday, nil
	case IntervalWeekly:
		return IntervalWeekly, nil
	}
	return "", fmt.Errorf("unsupported interval %q", s)
}

// SeriesRequest selects the series to fetch. Zero Start or End leaves that side open.
type SeriesRequest struct {
	Symbol   string
	Interval Interval
	Start    time.Time
	End      time.Time
	// Full asks for the complete history instead of the most recent bars.
	Full bool
}

// Provider fetches a volume series for a symbol.
type Provider interface {
	Name() string
	FetchSeries(ctx context.Context, req SeriesRequest) ([]anomaly.TimePoint, error)
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidSymbol reports whether symbol is 2-20 letters, digits, dots or dashes
// after trimming.
func ValidSymbol(symbol string) bool {
	symbol = strings.TrimSpace(symbol)
	if len(symbol) < 2 || len(symbol) > 20 {
		return false
	}
	for _, ch := range symbol {
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '.', ch == '-':
		default:
			return false
		}
	}
	return true
}

// clip sorts points ascending and keeps those within [start, end].
func clip(points []anomaly.TimePoint, start, end time.Time) []anomaly.TimePoint {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})

	out := points[:0]
	for _, p := range points {
		if !start.IsZero() && p.Time.Before(start) {
			continue
		}
		if !end.IsZero() && p.Time.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out
}
