package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metapick/internal/metrics"
)

func TestResponseWriter(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	rw := newResponseWriter(w)
	assert.Equal(t, http.StatusOK, rw.statusCode)
	assert.False(t, rw.wroteHeader)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusNotFound, rw.statusCode, "first status wins")

	n, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(5), rw.bytesWritten)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Same(t, w, rw.Unwrap())

	rw.Flush()
	assert.True(t, w.Flushed)
}

func TestSanitizeLogField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, in, want string
	}{
		{"plain", "GET", "GET"},
		{"newline", "a\nb\r\nc", "a b  c"},
		{"null byte", "a\x00b", "ab"},
		{"ansi escape", "\x1b[31mred", "[31mred"},
		{"bell", "a\x07b", "ab"},
		{"tab kept", "a\tb", "a\tb"},
		{"unicode", "ünïcode", "ünïcode"},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sanitizeLogField(tt.in))
		})
	}
}

func TestShouldSkip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		config LoggingConfig
		want   bool
	}{
		{"api", "/api/summary", DefaultLoggingConfig(), false},
		{"metrics", "/metrics", DefaultLoggingConfig(), true},
		{"health logged", "/healthz", DefaultLoggingConfig(), false},
		{"health skipped", "/healthz", LoggingConfig{}, true},
		{"health prefix only", "/healthz/extra", LoggingConfig{}, false},
		{"custom prefix", "/api/records", LoggingConfig{SkipPaths: []string{"/api/rec"}}, true},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, shouldSkip(tt.path, tt.config))
		})
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:5", "10.0.0.1"},
		{"forwarded single", map[string]string{"X-Forwarded-For": " 10.0.0.3 "}, "1.2.3.4:5", "10.0.0.3"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.4"}, "1.2.3.4:5", "10.0.0.4"},
		{"remote addr", nil, "1.2.3.4:5678", "1.2.3.4"},
		{"ipv6 remote addr", nil, "[::1]:80", "[::1]"},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}

func TestEscapeW3CField(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "curl/8.0", escapeW3CField("curl/8.0"))
	assert.Equal(t, `"Mozilla/5.0 (X11)"`, escapeW3CField("Mozilla/5.0 (X11)"))
	assert.Equal(t, `"say ""hi"""`, escapeW3CField(`say "hi"`))
}

func TestFormatW3C(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/api/top/models?limit=5", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	r.Header.Set("User-Agent", "test agent")

	rw := newResponseWriter(httptest.NewRecorder())
	rw.WriteHeader(http.StatusTeapot)
	_, _ = rw.Write([]byte("body"))

	start := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	line := formatW3C(r, rw, start, 42*time.Millisecond)
	assert.Equal(t,
		`2024-03-01 12:30:45 192.0.2.1 GET /api/top/models limit=5 418 4 42 "test agent" -`,
		line)
}

func TestLoggerPassesThrough(t *testing.T) {
	t.Parallel()

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/api/summary", "/metrics"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusAccepted, rec.Code, path)
		assert.Equal(t, "ok", rec.Body.String(), path)
	}
}

// TestMetricsRecordsRouteTemplate reads global counters and must not run
// in parallel with other requests through the middleware.
func TestMetricsRecordsRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics(DefaultMetricsConfig()))
	r.HandleFunc("/api/top/{category}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.HandleFunc("/healthz", func(http.ResponseWriter, *http.Request) {})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/top/{category}", "404")
	before := testutil.ToFloat64(counter)

	for _, category := range []string{"models", "colors", strings.Repeat("x", 50)} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/top/"+category, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.InDelta(t, before+3, testutil.ToFloat64(counter), 1e-9)

	health := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200")
	healthBefore := testutil.ToFloat64(health)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.InDelta(t, healthBefore, testutil.ToFloat64(health), 1e-9, "skipped paths are not counted")
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.HTTPRequestsInFlight), 1e-9)
}

func TestRouteLabelUnmatched(t *testing.T) {
	t.Parallel()

	assert.Equal(t, unmatchedRoute, routeLabel(httptest.NewRequest(http.MethodGet, "/nowhere", nil)))
}
