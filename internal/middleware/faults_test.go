package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestFaultInjection_NoFaults(t *testing.T) {
	w := httptest.NewRecorder()
	FaultInjection()(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFaultInjection_FailureRate(t *testing.T) {
	tests := []struct {
		name string
		roll float64
		want int
	}{
		{"roll below rate fails", 0.1, http.StatusServiceUnavailable},
		{"roll above rate passes", 0.9, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := FaultInjection(
				WithFailureRate(0.5),
				WithRandom(func() float64 { return tt.roll }),
			)(okHandler())

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestFaultInjection_Latency(t *testing.T) {
	h := FaultInjection(WithLatency(20 * time.Millisecond))(okHandler())

	start := time.Now()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFaultInjection_LatencyAbortsOnCancel(t *testing.T) {
	var reached bool
	h := FaultInjection(WithLatency(time.Hour))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
	assert.False(t, reached)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2)(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(0)(okHandler())
	for range 5 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestResponseHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()

	ResponseHeaders()(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRequestLogger(t *testing.T) {
	var buf testWriter
	h := RequestLogger(zerolog.New(&buf))(okHandler())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/accounts/balance/ACC1000", nil))

	assert.Contains(t, buf.String(), `"path":"/accounts/balance/ACC1000"`)
	assert.Contains(t, buf.String(), `"status":200`)
}

type testWriter struct{ data []byte }

func (w *testWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *testWriter) String() string { return string(w.data) }
