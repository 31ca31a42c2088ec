package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"finsight/internal/anomaly"
	"finsight/internal/config"
	apperrors "finsight/internal/errors"
	"finsight/internal/events"
	"finsight/internal/exporter"
	"finsight/internal/infrastructure"
	"finsight/internal/marketdata"
)

// EventAnalysisCompleted is broadcast after every stored analysis.
const EventAnalysisCompleted = "analysis.completed"

// Notifier receives analysis lifecycle events. The websocket hub implements it.
type Notifier interface {
	Broadcast(messageType string, data interface{})
}

// AnalysisRequest describes one detection run. Either Symbol (fetched from the
// provider) or Points must be set; Points wins when both are.
type AnalysisRequest struct {
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time
	Full     bool

	// Events are single date strings; EventsText is a newline separated list
	// with optional labels and comments. Both may be used at once.
	Events     []string
	EventsText string

	// Zero means the configured default.
	ZMultiplier        float64
	PreEventWindowDays int

	Points []anomaly.TimePoint
	// Source labels caller supplied points, e.g. the file they came from.
	Source string
}

// AnalysisReport is the stored result of one analysis.
type AnalysisReport struct {
	ID         string                   `json:"id"`
	Symbol     string                   `json:"symbol,omitempty"`
	Interval   string                   `json:"interval"`
	Source     string                   `json:"source"`
	CreatedAt  time.Time                `json:"created_at"`
	Duration   time.Duration            `json:"duration_ns"`
	Options    anomaly.Options          `json:"options"`
	Baseline   anomaly.Baseline         `json:"baseline"`
	Statistics anomaly.Statistics       `json:"statistics"`
	Summary    anomaly.AnomalySummary   `json:"summary"`
	Points     []anomaly.AnnotatedPoint `json:"points"`
	Accepted   []anomaly.EventMark      `json:"accepted_events"`
	Rejected   []anomaly.RejectedEvent  `json:"rejected_events"`
}

// ReportHeader is the list view of an AnalysisReport.
type ReportHeader struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol,omitempty"`
	Interval  string    `json:"interval"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	TotalDays int       `json:"total_days"`
	Anomalies int       `json:"anomalies_detected"`
	EventDays int       `json:"event_days"`
	Rejected  int       `json:"rejected_events"`
}

// Header summarises the report.
func (r *AnalysisReport) Header() ReportHeader {
	return ReportHeader{
		ID:        r.ID,
		Symbol:    r.Symbol,
		Interval:  r.Interval,
		Source:    r.Source,
		CreatedAt: r.CreatedAt,
		TotalDays: r.Statistics.TotalDays,
		Anomalies: r.Summary.TotalAnomalies,
		EventDays: r.Statistics.EventDayCount,
		Rejected:  len(r.Rejected),
	}
}

// Export converts the report for the exporter package.
func (r *AnalysisReport) Export() exporter.Report {
	return exporter.Report{
		Symbol:      r.Symbol,
		Interval:    r.Interval,
		Source:      r.Source,
		GeneratedAt: r.CreatedAt,
		Options:     r.Options,
		Baseline:    r.Baseline,
		Statistics:  r.Statistics,
		Summary:     r.Summary,
		Points:      r.Points,
		Accepted:    r.Accepted,
		Rejected:    r.Rejected,
	}
}

// BatchRequest runs Template once per symbol. Template.Symbol and
// Template.Points are ignored.
type BatchRequest struct {
	Symbols  []string
	Template AnalysisRequest
}

// BatchItem is the outcome for one symbol of a batch.
type BatchItem struct {
	Symbol string        `json:"symbol"`
	Report *ReportHeader `json:"report,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// BatchResult lists outcomes in the order the symbols were given.
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// AnalysisService runs detection requests end to end: fetch, validate,
// detect, summarise, store and notify.
type AnalysisService struct {
	provider  marketdata.Provider
	detection config.DetectionConfig
	batch     config.BatchConfig
	store     *ReportStore
	notifier  Notifier
	metrics   *infrastructure.AnalysisMetrics
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// NewAnalysisService wires the service. provider, notifier and metrics may be nil.
func NewAnalysisService(provider marketdata.Provider, cfg *config.Config, notifier Notifier, metrics *infrastructure.AnalysisMetrics, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		provider:  provider,
		detection: cfg.Detection,
		batch:     cfg.Batch,
		store:     NewReportStore(cfg.Batch.StoreCapacity),
		notifier:  notifier,
		metrics:   metrics,
		tracer:    otel.Tracer(infrastructure.MeterName),
		logger:    logger.With(slog.String("component", "analysis_service")),
		now:       time.Now,
	}
}

// Analyze runs one analysis and stores its report.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisReport, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "analysis.analyze",
		trace.WithAttributes(attribute.String("symbol", req.Symbol)))
	defer span.End()

	report, err := s.analyze(ctx, req)

	source := sourceLabel(req)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.metrics.RecordAnalysis(ctx, source, 0, 0, time.Since(start), err)
		s.logger.WarnContext(ctx, "analysis failed",
			slog.String("symbol", req.Symbol),
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	report.Duration = time.Since(start)
	if evicted := s.store.Put(report); evicted != "" {
		s.logger.DebugContext(ctx, "report evicted", slog.String("id", evicted))
	}

	s.metrics.RecordAnalysis(ctx, source, report.Summary.TotalAnomalies, len(report.Rejected), report.Duration, nil)
	s.logger.InfoContext(ctx, "analysis completed",
		slog.String("id", report.ID),
		slog.String("symbol", report.Symbol),
		slog.String("source", report.Source),
		slog.Int("points", len(report.Points)),
		slog.Int("accepted_events", len(report.Accepted)),
		slog.Int("rejected_events", len(report.Rejected)),
		slog.Int("anomalies", report.Summary.TotalAnomalies),
		slog.Duration("duration", report.Duration),
	)
	span.SetAttributes(attribute.Int("anomalies", report.Summary.TotalAnomalies))

	if s.notifier != nil {
		s.notifier.Broadcast(EventAnalysisCompleted, report.Header())
	}
	return report, nil
}

func (s *AnalysisService) analyze(ctx context.Context, req AnalysisRequest) (*AnalysisReport, error) {
	opts, err := s.options(req)
	if err != nil {
		return nil, err
	}
	interval, err := marketdata.ParseInterval(req.Interval)
	if err != nil {
		return nil, &anomaly.ParamError{Name: "interval", Value: req.Interval, Reason: err.Error()}
	}
	if err := s.checkRange(req.Start, req.End); err != nil {
		return nil, err
	}

	series, symbol, source, err := s.series(ctx, req, interval)
	if err != nil {
		return nil, err
	}
	if err := anomaly.ValidateSeries(series); err != nil {
		return nil, fmt.Errorf("validate %s series: %w", source, err)
	}

	marks, rejected := parseEvents(req)

	detection, err := anomaly.DetectAnomalies(series, nil, marks, opts)
	if err != nil {
		return nil, fmt.Errorf("detect anomalies: %w", err)
	}
	rejected = append(rejected, detection.Rejected...)

	return &AnalysisReport{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		Interval:   string(interval),
		Source:     source,
		CreatedAt:  s.now().UTC(),
		Options:    opts,
		Baseline:   detection.Baseline,
		Statistics: anomaly.GetStatistics(series, detection.Baseline, detection.Points),
		Summary:    anomaly.Summarize(detection.Points, detection.Baseline),
		Points:     detection.Points,
		Accepted:   detection.Accepted,
		Rejected:   rejected,
	}, nil
}

// options applies defaults and the configured bounds.
func (s *AnalysisService) options(req AnalysisRequest) (anomaly.Options, error) {
	opts := anomaly.Options{
		ZMultiplier:        req.ZMultiplier,
		PreEventWindowDays: req.PreEventWindowDays,
	}
	if opts.ZMultiplier == 0 {
		opts.ZMultiplier = s.detection.ZMultiplier
	}
	if opts.PreEventWindowDays == 0 {
		opts.PreEventWindowDays = s.detection.PreEventWindowDays
	}

	d := s.detection
	if opts.ZMultiplier < d.MinZMultiplier || opts.ZMultiplier > d.MaxZMultiplier {
		return opts, &anomaly.ParamError{
			Name:   "z_multiplier",
			Value:  opts.ZMultiplier,
			Reason: fmt.Sprintf("must be between %v and %v", d.MinZMultiplier, d.MaxZMultiplier),
		}
	}
	if opts.PreEventWindowDays < d.MinWindowDays || opts.PreEventWindowDays > d.MaxWindowDays {
		return opts, &anomaly.ParamError{
			Name:   "pre_event_window_days",
			Value:  opts.PreEventWindowDays,
			Reason: fmt.Sprintf("must be between %d and %d", d.MinWindowDays, d.MaxWindowDays),
		}
	}
	return opts, opts.Validate()
}

func (s *AnalysisService) checkRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return nil
	}
	if end.Before(start) {
		return &anomaly.ParamError{Name: "end", Value: end.Format("2006-01-02"), Reason: "must not be before start"}
	}

	days := int(end.Sub(start).Hours() / 24)
	d := s.detection
	if d.MinRangeDays > 0 && days < d.MinRangeDays {
		return &anomaly.ParamError{Name: "start", Value: days, Reason: fmt.Sprintf("date range must span at least %d days", d.MinRangeDays)}
	}
	if d.MaxRangeDays > 0 && days > d.MaxRangeDays {
		return &anomaly.ParamError{Name: "start", Value: days, Reason: fmt.Sprintf("date range must span at most %d days", d.MaxRangeDays)}
	}
	return nil
}

// series returns the points to analyse with the symbol and a source label.
func (s *AnalysisService) series(ctx context.Context, req AnalysisRequest, interval marketdata.Interval) ([]anomaly.TimePoint, string, string, error) {
	symbol := marketdata.NormalizeSymbol(req.Symbol)

	if len(req.Points) > 0 {
		if symbol != "" && !marketdata.ValidSymbol(symbol) {
			return nil, "", "", &anomaly.ParamError{Name: "symbol", Value: req.Symbol, Reason: "must be 2-20 letters, digits, dots or dashes"}
		}
		points := make([]anomaly.TimePoint, len(req.Points))
		copy(points, req.Points)
		return points, symbol, sourceLabel(req), nil
	}

	if symbol == "" {
		return nil, "", "", apperrors.NewAppValidationError("symbol or points required").WithCause(ErrNoSeries)
	}
	if !marketdata.ValidSymbol(symbol) {
		return nil, "", "", &anomaly.ParamError{Name: "symbol", Value: req.Symbol, Reason: "must be 2-20 letters, digits, dots or dashes"}
	}
	if s.provider == nil {
		return nil, "", "", apperrors.NewConfigError("cannot fetch "+symbol, ErrNoProvider)
	}

	points, err := s.provider.FetchSeries(ctx, marketdata.SeriesRequest{
		Symbol:   symbol,
		Interval: interval,
		Start:    req.Start,
		End:      req.End,
		Full:     req.Full,
	})
	s.metrics.RecordProviderRequest(ctx, s.provider.Name(), err)
	if err != nil {
		return nil, "", "", apperrors.NewProviderError(
			fmt.Sprintf("fetch %s from %s", symbol, s.provider.Name()), err,
		).WithContext("symbol", symbol)
	}
	return points, symbol, s.provider.Name(), nil
}

// parseEvents turns both event inputs into marks; lines that fail to parse
// become rejected events.
func parseEvents(req AnalysisRequest) ([]anomaly.EventMark, []anomaly.RejectedEvent) {
	marks, lineErrs := events.ParseAll(req.Events)
	if strings.TrimSpace(req.EventsText) != "" {
		textMarks, textErrs := events.Parse(req.EventsText)
		marks = append(marks, textMarks...)
		lineErrs = append(lineErrs, textErrs...)
	}

	rejected := make([]anomaly.RejectedEvent, 0, len(lineErrs))
	for _, le := range lineErrs {
		rejected = append(rejected, le.Rejected())
	}
	return marks, rejected
}

func sourceLabel(req AnalysisRequest) string {
	switch {
	case len(req.Points) > 0 && req.Source != "":
		return req.Source
	case len(req.Points) > 0:
		return "upload"
	default:
		return "provider"
	}
}

// AnalyzeBatch analyses every symbol concurrently, bounded by the configured
// concurrency. A failing symbol does not stop the others; only a cancelled
// context fails the whole batch.
func (s *AnalysisService) AnalyzeBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if len(req.Symbols) == 0 {
		return nil, &anomaly.ParamError{Name: "symbols", Value: 0, Reason: "at least one symbol is required"}
	}
	if s.batch.MaxSymbols > 0 && len(req.Symbols) > s.batch.MaxSymbols {
		return nil, &anomaly.ParamError{
			Name:   "symbols",
			Value:  len(req.Symbols),
			Reason: fmt.Sprintf("at most %d symbols per batch", s.batch.MaxSymbols),
		}
	}

	items := make([]BatchItem, len(req.Symbols))
	var g errgroup.Group
	if s.batch.MaxConcurrency > 0 {
		g.SetLimit(s.batch.MaxConcurrency)
	}

	for i, symbol := range req.Symbols {
		g.Go(func() error {
			item := BatchItem{Symbol: marketdata.NormalizeSymbol(symbol)}
			if err := ctx.Err(); err != nil {
				item.Error = err.Error()
				items[i] = item
				return nil
			}

			single := req.Template
			single.Symbol = symbol
			single.Points = nil
			report, err := s.Analyze(ctx, single)
			if err != nil {
				item.Error = err.Error()
			} else {
				header := report.Header()
				item.Report = &header
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		s.logger.WarnContext(ctx, "batch analysis cancelled",
			slog.Int("symbols", len(req.Symbols)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("batch of %d symbols: %w", len(req.Symbols), err)
	}

	result := &BatchResult{Items: items}
	for _, item := range items {
		if item.Error != "" {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}

	s.logger.InfoContext(ctx, "batch analysis completed",
		slog.Int("symbols", len(req.Symbols)),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

// Get returns a stored report.
func (s *AnalysisService) Get(id string) (*AnalysisReport, error) {
	report, ok := s.store.Get(id)
	if !ok {
		return nil, apperrors.NewNotFoundError("analysis "+id).WithCause(ErrAnalysisNotFound)
	}
	return report, nil
}

// List returns headers of the stored reports, most recent first.
func (s *AnalysisService) List() []ReportHeader {
	return s.store.List()
}

// StoredReports returns how many reports are held.
func (s *AnalysisService) StoredReports() int {
	return s.store.Len()
}

// ProviderName returns the configured provider or "none".
func (s *AnalysisService) ProviderName() string {
	if s.provider == nil {
		return "none"
	}
	return s.provider.Name()
}
