package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"finsight/internal/app"
	"finsight/internal/config"
	apperrors "finsight/internal/errors"
	"finsight/internal/exporter"
	"finsight/internal/infrastructure"
	"finsight/internal/marketdata"
	"finsight/internal/services"
)

// NewRootCmd creates the finsight command tree
func NewRootCmd() *cobra.Command {
	var (
		configFile string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:   "finsight",
		Short: "FinSight - pre-event trading volume anomaly detection",
		Long: `FinSight flags unusual trading volume in the days before known events
(earnings, filings, announcements) by comparing each day against the series baseline.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path (YAML)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	load := func() (*config.Config, error) {
		if configFile != "" {
			return config.LoadFrom(configFile)
		}
		return config.Load()
	}
	logger := func(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
		logCfg := cfg.Logging
		logCfg.Level = "warn"
		if debug {
			logCfg.Level = "debug"
		}
		return infrastructure.NewLogger(logCfg, cmd.ErrOrStderr())
	}

	rootCmd.AddCommand(newAnalyzeCmd(load, logger))
	rootCmd.AddCommand(newServeCmd(load))
	rootCmd.AddCommand(newCheckCmd(load))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

type configLoader func() (*config.Config, error)

type loggerFactory func(*cobra.Command, *config.Config) *slog.Logger

type analyzeOptions struct {
	symbol     string
	file       string
	eventsFile string
	events     []string
	interval   string
	start      string
	end        string
	full       bool
	z          float64
	window     int
	out        string
	precision  int
	xlsx       bool
	json       bool
	noFiles    bool
}

func newAnalyzeCmd(load configLoader, newLogger loggerFactory) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Detect pre-event volume anomalies for a symbol or a series file",
		Long: `Run one analysis and print the report. The series comes from the configured
market data provider (--symbol) or from a CSV/XLSX file with the columns
Date,Open,High,Low,Close,Volume (--file).

Example: finsight analyze --symbol IBM --event 2024-01-24 --z 2.5 --xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.symbol == "") == (opts.file == "") {
				return fmt.Errorf("exactly one of --symbol or --file is required")
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), cfg, newLogger(cmd, cfg), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.symbol, "symbol", "s", "", "Ticker symbol to fetch from the provider")
	f.StringVarP(&opts.file, "file", "f", "", "CSV or XLSX series file")
	f.StringVarP(&opts.eventsFile, "events", "e", "", "File with one event date per line (optional label after a comma)")
	f.StringSliceVar(&opts.events, "event", nil, "Event date, repeatable (YYYY-MM-DD)")
	f.StringVar(&opts.interval, "interval", "daily", "Bar interval: daily, intraday or weekly")
	f.StringVar(&opts.start, "start", "", "First date to analyse (YYYY-MM-DD)")
	f.StringVar(&opts.end, "end", "", "Last date to analyse (YYYY-MM-DD)")
	f.BoolVar(&opts.full, "full", false, "Request the provider's full history")
	f.Float64Var(&opts.z, "z", 0, "Z-score multiplier (default from config)")
	f.IntVar(&opts.window, "window", 0, "Pre-event window in days (default from config)")
	f.StringVarP(&opts.out, "out", "o", "", "Output directory for CSV/XLSX files (default from config)")
	f.IntVar(&opts.precision, "precision", -1, "Decimal places in exported files (default from config)")
	f.BoolVar(&opts.xlsx, "xlsx", false, "Also write an XLSX workbook")
	f.BoolVar(&opts.json, "json", false, "Print the report as JSON instead of text")
	f.BoolVar(&opts.noFiles, "no-files", false, "Print the report only")

	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger, opts *analyzeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = infrastructure.EnsureTraceID(ctx)
	logger = infrastructure.WithComponent(logger, "cli")

	req := services.AnalysisRequest{
		Symbol:             opts.symbol,
		Interval:           opts.interval,
		Full:               opts.full,
		Events:             opts.events,
		ZMultiplier:        opts.z,
		PreEventWindowDays: opts.window,
	}

	var err error
	if req.Start, err = parseFlagDate("start", opts.start); err != nil {
		return err
	}
	if req.End, err = parseFlagDate("end", opts.end); err != nil {
		return err
	}

	if opts.eventsFile != "" {
		text, err := os.ReadFile(opts.eventsFile)
		if err != nil {
			return fmt.Errorf("read events file: %w", err)
		}
		req.EventsText = string(text)
	}

	if opts.file != "" {
		points, err := marketdata.LoadSeriesFile(opts.file)
		if err != nil {
			return apperrors.NewParsingError("load "+filepath.Base(opts.file), err)
		}
		req.Points = points
		req.Source = filepath.Base(opts.file)
	}

	provider, err := app.NewProvider(cfg.Provider)
	if err != nil {
		return err
	}
	service := services.NewAnalysisService(provider, cfg, nil, nil, logger)

	report, err := service.Analyze(ctx, req)
	if err != nil {
		return err
	}

	if opts.json {
		if err := exporter.RenderJSONReport(out, report.Export()); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, renderSummary(report))
		if err := exporter.RenderTextReport(out, report.Export()); err != nil {
			return err
		}
	}

	if opts.noFiles {
		return nil
	}

	precision := cfg.Export.Precision
	if opts.precision >= 0 {
		precision = opts.precision
	}
	dir := cfg.Export.ReportsDir
	if opts.out != "" {
		dir = opts.out
	}

	written, err := writeReportFiles(dir, exporter.NewCSVWriter(dir, cfg.Export.BOM, logger), report, precision, opts.xlsx)
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Fprintln(out, mutedStyle.Render("wrote "+path))
	}
	return nil
}

// writeReportFiles writes the anomaly and series CSVs, and the workbook when asked.
func writeReportFiles(dir string, w *exporter.CSVWriter, report *services.AnalysisReport, precision int, xlsx bool) ([]string, error) {
	base := fileBase(report)
	var written []string

	path, err := w.WriteCSV(base+"_anomalies.csv", exporter.WriteOptions{
		Headers:   exporter.SummaryHeaders,
		Records:   exporter.SummaryRecords(report.Summary, precision),
		BOMPrefix: w.BOM(),
	})
	if err != nil {
		return written, apperrors.NewStorageError("write anomalies", err)
	}
	written = append(written, path)

	path, err = w.WriteCSV(base+"_series.csv", exporter.WriteOptions{
		Headers:   exporter.SeriesHeaders,
		Records:   exporter.SeriesRecords(report.Points, precision),
		BOMPrefix: w.BOM(),
	})
	if err != nil {
		return written, apperrors.NewStorageError("write series", err)
	}
	written = append(written, path)

	if xlsx {
		name := base + ".xlsx"
		if err := w.WriteFile(name, func(f io.Writer) error {
			return exporter.WriteWorkbook(f, report.Export(), precision)
		}); err != nil {
			return written, apperrors.NewStorageError("write workbook", err)
		}
		written = append(written, filepath.Join(dir, name))
	}

	return written, nil
}

// fileBase names output files after the symbol, or the series file without its extension.
func fileBase(report *services.AnalysisReport) string {
	base := report.Symbol
	if base == "" {
		base = strings.TrimSuffix(report.Source, filepath.Ext(report.Source))
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		base = "analysis"
	}
	return strings.ToLower(base)
}

func parseFlagDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q, use YYYY-MM-DD", name, value)
	}
	return t, nil
}

func newServeCmd(load configLoader) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}

			application, err := app.NewApplication(cfg)
			if err != nil {
				return err
			}
			return application.Run()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from config)")
	return cmd
}

func newCheckCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and provider setup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("FinSight configuration check"))

			cfg, err := load()
			if err != nil {
				fmt.Fprintln(out, checkLine("Configuration", false, err.Error()))
				return err
			}
			fmt.Fprintln(out, checkLine("Configuration", true, ""))

			return runChecks(out, cfg)
		},
	}
}

// runChecks prints one line per check and fails if any failed.
func runChecks(out io.Writer, cfg *config.Config) error {
	failed := 0
	report := func(label string, ok bool, detail string) {
		if !ok {
			failed++
		}
		fmt.Fprintln(out, checkLine(label, ok, detail))
	}

	_, err := app.NewProvider(cfg.Provider)
	report("Provider", err == nil, cfg.Provider.Kind)

	if cfg.Provider.Kind == config.ProviderAlphaVantage {
		report("Alpha Vantage API key", cfg.Provider.APIKey != "",
			"set ALPHA_VANTAGE_API_KEY or FINSIGHT_PROVIDER_API_KEY")
	}

	report("Detection defaults", true, fmt.Sprintf("z=%.2f window=%dd", cfg.Detection.ZMultiplier, cfg.Detection.PreEventWindowDays))

	dirErr := checkWritable(cfg.Export.ReportsDir)
	detail := cfg.Export.ReportsDir
	if dirErr != nil {
		detail = dirErr.Error()
	}
	report("Reports directory", dirErr == nil, detail)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Fprintln(out, okStyle.Render("All checks passed"))
	return nil
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".finsight-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", config.AppName, config.AppVersion, app.BuildTime)
		},
	}
}
