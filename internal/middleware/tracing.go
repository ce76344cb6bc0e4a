package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Tracing opens a server span per request, named after the matched chi route
// once routing has run, e.g. "GET /accounts/balance/{accountId}". Before a
// route matches the span carries the service name.
func Tracing(service string, opts ...otelhttp.Option) func(http.Handler) http.Handler {
	opts = append([]otelhttp.Option{otelhttp.WithSpanNameFormatter(routeSpanName)}, opts...)
	return func(next http.Handler) http.Handler {
		named := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			// otelhttp renames on its own only when r.Pattern is set.
			trace.SpanFromContext(r.Context()).SetName(routeSpanName(service, r))
		})
		return otelhttp.NewHandler(named, service, opts...)
	}
}

func routeSpanName(operation string, r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return r.Method + " " + rctx.RoutePattern()
	}
	return operation
}
