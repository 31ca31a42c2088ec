package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"finsight/internal/anomaly"
)

// DefaultAlphaVantageURL is the public Alpha Vantage endpoint.
const DefaultAlphaVantageURL = "https://www.alphavantage.co"

// AlphaVantageOptions configures an AlphaVantageClient.
type AlphaVantageOptions struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
	MaxRetries        int
	// RetryInterval is the first backoff delay between transport retries.
	RetryInterval time.Duration
}

// AlphaVantageClient reads time series from the Alpha Vantage query API.
type AlphaVantageClient struct {
	client     *resty.Client
	limiter    *rate.Limiter
	apiKey     string
	maxRetries int
	retryDelay time.Duration
}

// NewAlphaVantageClient creates a client. Zero options take the free tier defaults.
func NewAlphaVantageClient(opts AlphaVantageOptions) *AlphaVantageClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAlphaVantageURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 5
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = time.Second
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Accept", "application/json")

	return &AlphaVantageClient{
		client:     client,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1),
		apiKey:     opts.APIKey,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryInterval,
	}
}

// Name implements Provider
func (c *AlphaVantageClient) Name() string { return "alphavantage" }

// FetchSeries implements Provider.
func (c *AlphaVantageClient) FetchSeries(ctx context.Context, req SeriesRequest) ([]anomaly.TimePoint, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	symbol := NormalizeSymbol(req.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrSymbolNotFound)
	}

	params := map[string]string{
		"symbol":   symbol,
		"apikey":   c.apiKey,
		"datatype": "json",
	}
	switch req.Interval {
	case IntervalIntraday:
		params["function"] = "TIME_SERIES_INTRADAY"
		params["interval"] = "60min"
	case IntervalWeekly:
		params["function"] = "TIME_SERIES_WEEKLY"
	default:
		params["function"] = "TIME_SERIES_DAILY"
	}
	if req.Interval != IntervalWeekly {
		params["outputsize"] = "compact"
		if req.Full {
			params["outputsize"] = "full"
		}
	}

	body, err := c.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("alphavantage %s %s: %w", params["function"], symbol, err)
	}

	points, err := parseAlphaVantage(body)
	if err != nil {
		return nil, fmt.Errorf("alphavantage %s %s: %w", params["function"], symbol, err)
	}

	return clip(points, req.Start, req.End), nil
}

// query performs a rate-limited GET with exponential backoff on transport and 5xx errors
func (c *AlphaVantageClient) query(ctx context.Context, params map[string]string) ([]byte, error) {
	var body []byte
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get("/query")
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}

		switch {
		case resp.StatusCode() == http.StatusTooManyRequests:
			return backoff.Permanent(ErrRateLimited)
		case resp.StatusCode() >= 500:
			return &StatusError{StatusCode: resp.StatusCode()}
		case resp.StatusCode() != http.StatusOK:
			return backoff.Permanent(&StatusError{StatusCode: resp.StatusCode()})
		}

		body = resp.Body()
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = c.retryDelay
	strategy.MaxElapsedTime = 2 * time.Minute

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(strategy, uint64(c.maxRetries)), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// StatusError is a non-200 answer from the provider.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

type avBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// parseAlphaVantage decodes a TIME_SERIES_* payload. The series key differs per
// function ("Time Series (Daily)", "Time Series (60min)", "Weekly Time Series").
func parseAlphaVantage(body []byte) ([]anomaly.TimePoint, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if raw, ok := payload["Error Message"]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, unquote(raw))
	}
	for _, key := range []string{"Note", "Information"} {
		if raw, ok := payload[key]; ok {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, unquote(raw))
		}
	}

	var series map[string]avBar
	for key, raw := range payload {
		if !strings.Contains(key, "Time Series") {
			continue
		}
		if err := json.Unmarshal(raw, &series); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		break
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}

	points := make([]anomaly.TimePoint, 0, len(series))
	for stamp, bar := range series {
		p, err := bar.point(stamp)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func (b avBar) point(stamp string) (anomaly.TimePoint, error) {
	t, err := parseStamp(stamp)
	if err != nil {
		return anomaly.TimePoint{}, err
	}

	p := anomaly.TimePoint{Time: t}
	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", b.Open, &p.Open},
		{"high", b.High, &p.High},
		{"low", b.Low, &p.Low},
		{"close", b.Close, &p.Close},
		{"volume", b.Volume, &p.Volume},
	} {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
		if err != nil {
			return anomaly.TimePoint{}, fmt.Errorf("bar %s: parse %s %q: %w", stamp, f.name, f.raw, err)
		}
		*f.dst = v
	}
	return p, nil
}

func parseStamp(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func unquote(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}
