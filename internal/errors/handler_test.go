package errors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/anomaly"
	"finsight/internal/infrastructure"
	"finsight/internal/marketdata"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func TestErrorHandler_ErrorToProblem(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "deadline exceeded",
			err:        fmt.Errorf("fetch: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "param error",
			err:        &anomaly.ParamError{Name: "z_multiplier", Value: -1.0, Reason: "must be positive"},
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInvalidParameter,
		},
		{
			name:       "wrapped invalid parameter sentinel",
			err:        fmt.Errorf("bounds: %w", anomaly.ErrInvalidParameter),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInvalidParameter,
		},
		{
			name:       "series validation error",
			err:        &anomaly.ValidationError{Index: 3, Field: "timestamp", Message: "not ascending"},
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInvalidSeries,
		},
		{
			name:       "insufficient data",
			err:        fmt.Errorf("analyze IBM: %w", anomaly.ErrInsufficientData),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeInsufficientData,
		},
		{
			name:       "symbol not found",
			err:        fmt.Errorf("alphavantage: %w", marketdata.ErrSymbolNotFound),
			wantStatus: http.StatusNotFound,
			wantType:   TypeSymbolNotFound,
		},
		{
			name:       "no data",
			err:        marketdata.ErrNoData,
			wantStatus: http.StatusNotFound,
			wantType:   TypeNoData,
		},
		{
			name:       "provider rate limited",
			err:        fmt.Errorf("alphavantage: %w", marketdata.ErrRateLimited),
			wantStatus: http.StatusTooManyRequests,
			wantType:   TypeProviderLimited,
		},
		{
			name:       "missing api key",
			err:        marketdata.ErrMissingAPIKey,
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeProviderConfig,
		},
		{
			name:       "upstream status",
			err:        fmt.Errorf("query: %w", &marketdata.StatusError{StatusCode: http.StatusBadGateway}),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeProviderFailed,
		},
		{
			name:       "api error passes through",
			err:        ErrAnalysisNotFound,
			wantStatus: http.StatusNotFound,
			wantType:   TypeAnalysisNotFound,
		},
		{
			name:       "app not found",
			err:        NewNotFoundError("analysis 1"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "app parsing",
			err:        NewParsingError("events", fmt.Errorf("bad line")),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "app provider",
			err:        NewProviderError("yahoo", fmt.Errorf("eof")),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeProviderFailed,
		},
		{
			name:       "generic",
			err:        fmt.Errorf("something broke"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	logger, _ := newTestLogger()
	handler := NewErrorHandler(logger, false)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/analyses", nil)

			problem := handler.ErrorToProblem(tt.err, r)

			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "/api/analyses", problem.Instance)
		})
	}
}

func TestErrorHandler_ErrorToProblemExtensions(t *testing.T) {
	logger, _ := newTestLogger()
	handler := NewErrorHandler(logger, false)
	r := httptest.NewRequest(http.MethodGet, "/x", nil)

	problem := handler.ErrorToProblem(&anomaly.ParamError{Name: "pre_event_window_days", Value: 0, Reason: "must be at least 1"}, r)
	assert.Equal(t, "pre_event_window_days", problem.Extensions["parameter"])

	problem = handler.ErrorToProblem(&anomaly.ValidationError{Index: 7, Field: "volume", Message: "negative"}, r)
	assert.Equal(t, 7, problem.Extensions["index"])

	problem = handler.ErrorToProblem(ErrValidation("symbol", "required"), r)
	assert.Equal(t, "VALIDATION_FAILED", problem.Extensions["error_code"])
	assert.Equal(t, ValidationError{Field: "symbol", Message: "required"}, problem.Extensions["details"])

	problem = handler.ErrorToProblem(NewProviderError("fetch", nil).WithContext("symbol", "IBM"), r)
	assert.Equal(t, "IBM", problem.Extensions["symbol"])
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		includeStack bool
		wantStatus   int
		wantStack    bool
		wantLevel    string
	}{
		{
			name:       "client error logs warn",
			err:        anomaly.ErrInsufficientData,
			wantStatus: http.StatusUnprocessableEntity,
			wantLevel:  "WARN",
		},
		{
			name:         "server error with stack",
			err:          fmt.Errorf("kaboom"),
			includeStack: true,
			wantStatus:   http.StatusInternalServerError,
			wantStack:    true,
			wantLevel:    "ERROR",
		},
		{
			name:         "client error never carries stack",
			err:          marketdata.ErrSymbolNotFound,
			includeStack: true,
			wantStatus:   http.StatusNotFound,
			wantLevel:    "WARN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestLogger()
			handler := NewErrorHandler(logger, tt.includeStack)

			r := httptest.NewRequest(http.MethodGet, "/api/analyses/1", nil)
			r = r.WithContext(infrastructure.WithTraceID(r.Context(), "trace-123"))
			w := httptest.NewRecorder()

			handler.HandleError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			got := decodeProblem(t, w)
			assert.Equal(t, "trace-123", got["trace_id"])
			_, hasStack := got["stack"]
			assert.Equal(t, tt.wantStack, hasStack)
			assert.Contains(t, buf.String(), `"level":"`+tt.wantLevel+`"`)
			assert.Contains(t, buf.String(), `"component":"error_handler"`)
		})
	}
}

func TestErrorHandler_HandleErrorNil(t *testing.T) {
	logger, buf := newTestLogger()
	handler := NewErrorHandler(logger, false)
	w := httptest.NewRecorder()

	handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, 0, w.Body.Len())
	assert.Empty(t, buf.String())
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	tests := []struct {
		name         string
		includeStack bool
	}{
		{"production", false},
		{"development", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestLogger()
			handler := NewErrorHandler(logger, tt.includeStack)
			w := httptest.NewRecorder()

			handler.HandlePanic(w, httptest.NewRequest(http.MethodGet, "/boom", nil), "nil map write")

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			got := decodeProblem(t, w)
			assert.Equal(t, TypeInternal, got["type"])
			if tt.includeStack {
				assert.Equal(t, "nil map write", got["panic"])
			} else {
				assert.NotContains(t, got, "panic")
			}
			assert.Contains(t, buf.String(), "panic recovered")
		})
	}
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := newTestLogger()
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, w)["type"])

	w = httptest.NewRecorder()
	handler.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	got := decodeProblem(t, w)
	assert.Equal(t, TypeMethodNotAllowed, got["type"])
	assert.Equal(t, "Method DELETE is not allowed for this endpoint", got["detail"])
}

func TestErrorHandler_JSON(t *testing.T) {
	logger, _ := newTestLogger()
	handler := NewErrorHandler(logger, false)
	w := httptest.NewRecorder()

	handler.JSON(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusAccepted, map[string]string{"ok": "yes"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"ok":"yes"}`, w.Body.String())
}
