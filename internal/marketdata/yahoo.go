package marketdata

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"finsight/internal/anomaly"
)

// barIter is the subset of *chart.Iter the client reads.
type barIter interface {
	Next() bool
	Bar() *finance.ChartBar
	Err() error
}

// YahooClient reads bars from the Yahoo Finance chart API. It needs no API key.
type YahooClient struct {
	chart func(*chart.Params) barIter
	now   func() time.Time
}

// NewYahooClient creates a Yahoo Finance provider.
func NewYahooClient() *YahooClient {
	return &YahooClient{
		chart: func(p *chart.Params) barIter { return chart.Get(p) },
		now:   time.Now,
	}
}

// Name implements Provider
func (c *YahooClient) Name() string { return "yahoo" }

// FetchSeries implements Provider. Daily and weekly bars are stamped at midnight UTC
// so event dates match them exactly.
func (c *YahooClient) FetchSeries(ctx context.Context, req SeriesRequest) ([]anomaly.TimePoint, error) {
	symbol := NormalizeSymbol(req.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrSymbolNotFound)
	}

	end := req.End
	if end.IsZero() {
		end = c.now()
	}
	start := req.Start
	if start.IsZero() {
		start = end.AddDate(-1, 0, 0)
		if req.Full {
			start = end.AddDate(-20, 0, 0)
		}
	}
	// the chart end bound is exclusive
	end = end.AddDate(0, 0, 1)

	interval := datetime.OneDay
	switch req.Interval {
	case IntervalIntraday:
		interval = datetime.Interval("60m")
	case IntervalWeekly:
		interval = datetime.Interval("1wk")
	}

	iter := c.chart(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: interval,
	})

	var points []anomaly.TimePoint
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := iter.Bar()
		t := time.Unix(int64(bar.Timestamp), 0).UTC()
		if req.Interval != IntervalIntraday {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		points = append(points, anomaly.TimePoint{
			Time:   t,
			Open:   bar.Open.InexactFloat64(),
			High:   bar.High.InexactFloat64(),
			Low:    bar.Low.InexactFloat64(),
			Close:  bar.Close.InexactFloat64(),
			Volume: float64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, ErrNoData)
	}

	return clip(points, req.Start, req.End), nil
}
