package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/anomaly"
	"finsight/internal/config"
	"finsight/internal/marketdata"
	"finsight/internal/services"
	ws "finsight/internal/websocket"
)

// stubProvider serves the same ten day series for every symbol.
type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) FetchSeries(ctx context.Context, req marketdata.SeriesRequest) ([]anomaly.TimePoint, error) {
	if req.Symbol == "MISSING" {
		return nil, marketdata.ErrSymbolNotFound
	}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points := make([]anomaly.TimePoint, 10)
	for i := range points {
		volume := 100.0
		if i == 7 {
			volume = 500
		}
		points[i] = anomaly.TimePoint{Time: start.AddDate(0, 0, i), Close: 10, Volume: volume}
	}
	return points, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Security.RateLimit.Enabled = false
	cfg.Security.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

func newTestApp(t *testing.T, mutate func(*config.Config)) *Application {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := NewApplication(cfg, WithLogger(logger), WithProvider(stubProvider{}))
	require.NoError(t, err)
	t.Cleanup(func() {
		if a.OTelProviders != nil {
			_ = a.OTelProviders.Shutdown(context.Background())
		}
	})
	return a
}

func request(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewApplication(t *testing.T) {
	a := newTestApp(t, nil)

	assert.NotNil(t, a.Router)
	assert.NotNil(t, a.Server)
	assert.NotNil(t, a.WebSocketHub)
	assert.NotNil(t, a.AnalysisService)
	assert.NotNil(t, a.HealthService)
	assert.NotNil(t, a.ErrorHandler)
	assert.Equal(t, "stub", a.AnalysisService.ProviderName())

	assert.Equal(t, ":8080", a.Server.Addr)
	assert.Equal(t, a.Config.Server.ReadTimeout, a.Server.ReadTimeout)
	assert.Equal(t, a.Config.Server.WriteTimeout, a.Server.WriteTimeout)
	assert.Equal(t, a.Config.Server.MaxHeaderBytes, a.Server.MaxHeaderBytes)
}

func TestNewApplication_UnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Provider.Kind = "bloomberg"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewApplication(cfg, WithLogger(logger))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bloomberg")
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		wantName string
		wantErr  bool
	}{
		{name: "alpha vantage", kind: config.ProviderAlphaVantage, wantName: "alphavantage"},
		{name: "yahoo", kind: config.ProviderYahoo, wantName: "yahoo"},
		{name: "unknown", kind: "quandl", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default().Provider
			cfg.Kind = tt.kind

			provider, err := NewProvider(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, provider.Name())
		})
	}
}

func TestApplication_Routes(t *testing.T) {
	a := newTestApp(t, nil)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantBody   string
	}{
		{name: "health", method: http.MethodGet, target: "/api/health", wantStatus: http.StatusOK, wantBody: `"version"`},
		{name: "liveness", method: http.MethodGet, target: "/api/health/live", wantStatus: http.StatusOK, wantBody: `"alive"`},
		{name: "stats", method: http.MethodGet, target: "/api/health/stats", wantStatus: http.StatusOK},
		{name: "version", method: http.MethodGet, target: "/api/version", wantStatus: http.StatusOK, wantBody: config.AppVersion},
		{name: "empty list", method: http.MethodGet, target: "/api/analyses", wantStatus: http.StatusOK, wantBody: `"count":0`},
		{name: "unknown analysis", method: http.MethodGet, target: "/api/analyses/nope", wantStatus: http.StatusNotFound, wantBody: "ANALYSIS_NOT_FOUND"},
		{name: "unknown route", method: http.MethodGet, target: "/nowhere", wantStatus: http.StatusNotFound, wantBody: "/errors/not-found"},
		{name: "prometheus", method: http.MethodGet, target: "/metrics", wantStatus: http.StatusOK, wantBody: "go_goroutines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(t, a.Router, tt.method, tt.target, "", nil)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestApplication_AnalysisRoundTrip(t *testing.T) {
	a := newTestApp(t, nil)

	body := `{"symbol":"IBM","events":["2024-03-09"],"z_multiplier":2}`
	rec := request(t, a.Router, http.MethodPost, "/api/analyses", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var report services.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "IBM", report.Symbol)
	assert.Equal(t, "stub", report.Source)
	assert.Equal(t, 1, report.Summary.TotalAnomalies)
	assert.Equal(t, "/api/analyses/"+report.ID, rec.Header().Get("Location"))

	csv := request(t, a.Router, http.MethodGet, "/api/analyses/"+report.ID+"/anomalies.csv", "", nil)
	require.Equal(t, http.StatusOK, csv.Code)
	assert.Contains(t, csv.Body.String(), "2024-03-08,500")

	list := request(t, a.Router, http.MethodGet, "/api/analyses", "", nil)
	assert.Contains(t, list.Body.String(), report.ID)
}

func TestApplication_ProviderErrorProblem(t *testing.T) {
	a := newTestApp(t, nil)

	rec := request(t, a.Router, http.MethodPost, "/api/analyses", `{"symbol":"MISSING"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "/errors/provider/symbol-not-found")
	assert.Contains(t, rec.Body.String(), "trace_id")
}

func TestApplication_SecurityHeaders(t *testing.T) {
	a := newTestApp(t, nil)

	rec := request(t, a.Router, http.MethodGet, "/api/health/live", "", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestApplication_CORS(t *testing.T) {
	tests := []struct {
		name       string
		enableCORS bool
		origin     string
		wantAllow  string
	}{
		{name: "allowed origin", enableCORS: true, origin: "http://localhost:3000", wantAllow: "http://localhost:3000"},
		{name: "foreign origin", enableCORS: true, origin: "http://evil.example", wantAllow: ""},
		{name: "disabled", enableCORS: false, origin: "http://localhost:3000", wantAllow: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, func(cfg *config.Config) { cfg.Security.EnableCORS = tt.enableCORS })

			rec := request(t, a.Router, http.MethodOptions, "/api/analyses", "", map[string]string{
				"Origin":                        tt.origin,
				"Access-Control-Request-Method": http.MethodPost,
			})
			assert.Equal(t, tt.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.enableCORS {
				assert.Equal(t, http.StatusNoContent, rec.Code)
				assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Location")
			}
		})
	}
}

func TestApplication_RateLimit(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) {
		cfg.Security.RateLimit.Enabled = true
		cfg.Security.RateLimit.RPS = 0.001
		cfg.Security.RateLimit.Burst = 1
	})

	first := request(t, a.Router, http.MethodGet, "/api/health/live", "", nil)
	second := request(t, a.Router, http.MethodGet, "/api/health/live", "", nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestApplication_WebSocketNotifications(t *testing.T) {
	a := newTestApp(t, nil)
	a.WebSocketHub.Start()
	t.Cleanup(a.WebSocketHub.Stop)

	server := httptest.NewServer(a.Router)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	readMessage := func() ws.Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg ws.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	assert.Equal(t, ws.TypeConnection, readMessage().Type)

	post, err := http.Post(server.URL+"/api/analyses", "application/json",
		strings.NewReader(`{"symbol":"IBM","events":["2024-03-09"],"z_multiplier":2}`))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusCreated, post.StatusCode)

	msg := readMessage()
	assert.Equal(t, services.EventAnalysisCompleted, msg.Type)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "IBM", data["symbol"])
	assert.EqualValues(t, 1, data["anomalies_detected"])
}

func TestApplication_StartStop(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) { cfg.Server.Port = 0 })
	a.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, a.Start(ctx, cancel))
	require.NoError(t, a.Stop(context.Background()))

	assert.Zero(t, a.WebSocketHub.ClientCount())
	select {
	case <-ctx.Done():
		t.Fatalf("server failure cancelled the context: %v", ctx.Err())
	default:
	}
}
