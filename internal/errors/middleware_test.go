package errors

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMiddleware_Handler(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantLevel string
		wantBody  bool
	}{
		{"success logs info", http.StatusCreated, `{"symbol":"IBM"}`, "INFO", false},
		{"client error logs body", http.StatusBadRequest, `{"symbol":"","api_key":"s3cret"}`, "WARN", true},
		{"server error", http.StatusInternalServerError, "", "ERROR", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestLogger()
			mw := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			req := httptest.NewRequest(http.MethodPost, "/api/analyses?z=3", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			mw.Handler(next).ServeHTTP(w, req)

			out := buf.String()
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, out, `"level":"`+tt.wantLevel+`"`)
			assert.Contains(t, out, `"query":"z=3"`)
			if tt.wantBody {
				assert.Contains(t, out, "request_body")
				assert.Contains(t, out, "[REDACTED]")
				assert.NotContains(t, out, "s3cret")
			} else {
				assert.NotContains(t, out, "request_body")
			}
		})
	}
}

func TestErrorMiddleware_RecoversPanic(t *testing.T) {
	logger, buf := newTestLogger()
	mw := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected")
	})
	w := httptest.NewRecorder()

	mw.Handler(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestSanitizeRequestBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"redacts api key", `{"api_key":"abc","symbol":"IBM"}`, `{"api_key":"[REDACTED]","symbol":"IBM"}`},
		{"redacts token", `{"token":"t"}`, `{"token":"[REDACTED]"}`},
		{"untouched json", `{"symbol":"IBM"}`, `{"symbol":"IBM"}`},
		{"not json", "2024-01-19\n2024-02-01", "2024-01-19\n2024-02-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeRequestBody(tt.in))
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger, _ := newTestLogger()
	handler := NewErrorHandler(logger, false)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	w := httptest.NewRecorder()
	RecoveryMiddleware(handler)(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	RecoveryMiddleware(handler)(boom).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
