package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "finsight/internal/errors"
	"finsight/internal/exporter"
	"finsight/internal/middleware"
	"finsight/internal/services"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeText = "text/plain; charset=utf-8"

	defaultPrecision = 2
)

type reportCtxKey struct{}

// AnalysisHandler handles analysis requests with RFC 7807 error responses
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validation   *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
	bom          bool
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service AnalysisServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "analysis_handler")),
		errorHandler: errorHandler,
		validation:   middleware.NewValidationMiddleware(logger, errorHandler),
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
	}
}

// WithBOM prefixes CSV downloads with a UTF-8 byte order mark.
func (h *AnalysisHandler) WithBOM(bom bool) *AnalysisHandler {
	h.bom = bom
	return h
}

// Routes returns the analysis routes, mounted under /api/analyses
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(
		middleware.ContentTypeValidator("application/json"),
		h.validation.ValidateRequest,
	).Group(func(r chi.Router) {
		r.Post("/", h.CreateAnalysis)
		r.Post("/batch", h.CreateBatch)
	})

	r.Get("/", h.ListAnalyses)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.ReportCtx)
		r.Get("/", h.GetAnalysis)
		r.Get("/anomalies.csv", h.DownloadAnomaliesCSV)
		r.Get("/series.csv", h.DownloadSeriesCSV)
		r.Get("/workbook.xlsx", h.DownloadWorkbook)
		r.Get("/report", h.GetReport)
	})

	return r
}

// ReportCtx loads the report named by {id} into the request context
func (h *AnalysisHandler) ReportCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		report, err := h.service.Get(id)
		if err != nil {
			if errors.Is(err, services.ErrAnalysisNotFound) {
				h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
					http.StatusNotFound,
					apierrors.ErrAnalysisNotFound.ErrorCode,
					fmt.Sprintf("Analysis %s not found", id),
					map[string]string{"id": id},
				))
				return
			}
			h.errorHandler.HandleError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithReport(r.Context(), report)))
	})
}

// CreateAnalysis handles POST /api/analyses
func (h *AnalysisHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var body AnalysisRequest
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&body); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	req, err := body.toService()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	report, err := h.service.Analyze(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/analyses/"+report.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, report)
}

// CreateBatch handles POST /api/analyses/batch
func (h *AnalysisHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchRequest
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&body); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	req, err := body.toService()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.AnalyzeBatch(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "batch served",
		slog.Int("symbols", len(req.Symbols)),
		slog.Int("failed", result.Failed),
	)
	render.JSON(w, r, result)
}

// ListAnalyses handles GET /api/analyses
func (h *AnalysisHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	headers := h.service.List()
	render.JSON(w, r, map[string]interface{}{
		"data":  headers,
		"count": len(headers),
	})
}

// GetAnalysis handles GET /api/analyses/{id}
func (h *AnalysisHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, reportFromContext(r.Context()))
}

// DownloadAnomaliesCSV handles GET /api/analyses/{id}/anomalies.csv
func (h *AnalysisHandler) DownloadAnomaliesCSV(w http.ResponseWriter, r *http.Request) {
	precision, ok := h.query.ValidateInt(w, r, "precision", 0, exporter.MaxPrecision, defaultPrecision)
	if !ok {
		return
	}
	report := reportFromContext(r.Context())
	h.write(w, r, "csv", contentTypeCSV, report.ID+"_anomalies.csv", h.csv(func(out io.Writer) error {
		return exporter.WriteSummaryCSV(out, report.Summary, precision)
	}))
}

// DownloadSeriesCSV handles GET /api/analyses/{id}/series.csv
func (h *AnalysisHandler) DownloadSeriesCSV(w http.ResponseWriter, r *http.Request) {
	precision, ok := h.query.ValidateInt(w, r, "precision", 0, exporter.MaxPrecision, defaultPrecision)
	if !ok {
		return
	}
	report := reportFromContext(r.Context())
	h.write(w, r, "csv", contentTypeCSV, report.ID+"_series.csv", h.csv(func(out io.Writer) error {
		return exporter.WriteSeriesCSV(out, report.Points, precision)
	}))
}

// DownloadWorkbook handles GET /api/analyses/{id}/workbook.xlsx
func (h *AnalysisHandler) DownloadWorkbook(w http.ResponseWriter, r *http.Request) {
	precision, ok := h.query.ValidateInt(w, r, "precision", 0, exporter.MaxPrecision, defaultPrecision)
	if !ok {
		return
	}
	report := reportFromContext(r.Context())
	h.write(w, r, "xlsx", contentTypeXLSX, report.ID+".xlsx", func(out io.Writer) error {
		return exporter.WriteWorkbook(out, report.Export(), precision)
	})
}

// GetReport handles GET /api/analyses/{id}/report?format=text|json
func (h *AnalysisHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	format, ok := h.query.ValidateEnum(w, r, "format", []string{"text", "json"}, "text")
	if !ok {
		return
	}
	report := reportFromContext(r.Context())

	if format == "json" {
		h.write(w, r, "json", "application/json", "", func(out io.Writer) error {
			return exporter.RenderJSONReport(out, report.Export())
		})
		return
	}
	h.write(w, r, "text", contentTypeText, "", func(out io.Writer) error {
		return exporter.RenderTextReport(out, report.Export())
	})
}

// csv adds the byte order mark in front of fill when enabled
func (h *AnalysisHandler) csv(fill func(io.Writer) error) func(io.Writer) error {
	if !h.bom {
		return fill
	}
	return func(out io.Writer) error {
		if err := exporter.WriteBOM(out); err != nil {
			return err
		}
		return fill(out)
	}
}

// write renders into a buffer first so a failed export still gets a problem response.
func (h *AnalysisHandler) write(w http.ResponseWriter, r *http.Request, format, contentType, filename string, fill func(io.Writer) error) {
	var buf bytes.Buffer
	if err := fill(&buf); err != nil {
		h.logger.ErrorContext(r.Context(), "export failed",
			slog.String("format", format),
			slog.String("error", err.Error()),
		)
		h.errorHandler.HandleError(w, r, apierrors.ExportError(format, err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sanitizeFilename(filename)))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "client write failed", slog.String("error", err.Error()))
	}
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', '\n', '\r':
			return '_'
		}
		return r
	}, name)
}
