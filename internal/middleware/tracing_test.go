package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingProvider() (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)), rec
}

func TestTracing_Success(t *testing.T) {
	tp, rec := newRecordingProvider()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	wrappedHandler := Tracing("fakebank", otelhttp.WithTracerProvider(tp))(handler)

	w := httptest.NewRecorder()
	wrappedHandler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "fakebank", rec.Ended()[0].Name())
}

func TestTracing_NamesSpanAfterChiRoute(t *testing.T) {
	tp, rec := newRecordingProvider()

	r := chi.NewRouter()
	r.Use(Tracing("fakebank", otelhttp.WithTracerProvider(tp)))
	r.Get("/accounts/balance/{accountId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/accounts/balance/ACC1000", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "GET /accounts/balance/{accountId}", rec.Ended()[0].Name())
}

func TestTracing_NamesSpanAfterNestedRoute(t *testing.T) {
	tp, rec := newRecordingProvider()

	r := chi.NewRouter()
	r.Use(Tracing("fakebank", otelhttp.WithTracerProvider(tp)))
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/validate/{accountId}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/accounts/validate/ACC1000", nil))

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "GET /accounts/validate/{accountId}", rec.Ended()[0].Name())
}

func TestTracing_UnmatchedRouteKeepsServiceName(t *testing.T) {
	tp, rec := newRecordingProvider()

	r := chi.NewRouter()
	r.Use(Tracing("fakebank", otelhttp.WithTracerProvider(tp)))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/nowhere", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "fakebank", rec.Ended()[0].Name())
}
