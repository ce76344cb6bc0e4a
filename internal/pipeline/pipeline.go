package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cassiomorais/bankclient/internal/domain/banking"
	domainErrors "github.com/cassiomorais/bankclient/internal/domain/errors"
	"github.com/cassiomorais/bankclient/internal/infrastructure/config"
	"github.com/cassiomorais/bankclient/internal/infrastructure/observability"
	"github.com/cassiomorais/bankclient/pkg/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxBodySize = 4 << 20

// TokenSource supplies bearer tokens by scope.
type TokenSource interface {
	Token(ctx context.Context, scope banking.Scope) (string, bool)
}

// Request describes one logical call. Body, when set, is sent as JSON.
type Request struct {
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Header    http.Header
	AuthScope banking.Scope
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	Attempts   int
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

type Options struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Retry      retry.Config
	Breaker    config.CircuitBreakerConfig
	Tokens     TokenSource
	Metrics    *observability.Metrics
	Logger     zerolog.Logger
	Timer      retry.Timer
}

// Pipeline dispatches requests with optional bearer auth, bounded retries for
// 5xx and transport failures, and a circuit breaker around each attempt.
type Pipeline struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	retryCfg   retry.Config
	breaker    *gobreaker.CircuitBreaker[*Response]
	tokens     TokenSource
	metrics    *observability.Metrics
	logger     zerolog.Logger
	timer      retry.Timer
	tracer     trace.Tracer
}

// statusError carries a retryable 5xx response through the retry loop.
type statusError struct {
	resp *Response
}

func (e *statusError) Error() string {
	return "server returned HTTP " + strconv.Itoa(e.resp.StatusCode)
}

func New(opts Options) *Pipeline {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	p := &Pipeline{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		httpClient: opts.HTTPClient,
		retryCfg:   opts.Retry,
		tokens:     opts.Tokens,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With().Str("component", "pipeline").Logger(),
		timer:      opts.Timer,
		tracer:     otel.Tracer("github.com/cassiomorais/bankclient/internal/pipeline"),
	}
	if opts.Breaker.Enabled {
		p.breaker = newBreaker("bank", opts.Breaker, p.metrics, p.logger)
	}
	return p
}

// Execute runs req until it yields a non-5xx response or the retry budget is
// spent. Exhausted 5xx responses become *RemoteError, transport failures
// *NetworkError. Statuses below 500 are returned as-is for the caller to
// interpret.
func (p *Pipeline) Execute(ctx context.Context, req Request) (*Response, error) {
	ctx, span := p.tracer.Start(ctx, "bank."+req.operation(), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	target := p.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.Path),
	)

	var payload []byte
	if req.Body != nil {
		var err error
		if payload, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("encode %s body: %w", req.operation(), err)
		}
	}

	header := p.header(ctx, req)

	// attempts counts requests that reached the transport; a breaker
	// rejection is not one.
	attempts := 0
	resp, err := retry.DoWithResult(ctx, p.retryCfg, func() (*Response, error) {
		return p.dispatch(func() (*Response, error) {
			attempts++
			return p.attempt(ctx, req, target, payload, header)
		})
	},
		retry.If(retryable(ctx)),
		retry.OnRetry(func(n uint, delay time.Duration, err error) {
			p.logger.Warn().
				Err(err).
				Str("operation", req.operation()).
				Uint("retry", n+1).
				Dur("delay", delay).
				Msg("Request failed, retrying")
			if p.metrics != nil {
				p.metrics.ClientRetries.WithLabelValues(req.operation(), retryReason(err)).Inc()
			}
		}),
		retry.WithTimer(p.timer),
	)
	span.SetAttributes(attribute.Int("http.attempts", attempts))

	if err == nil {
		resp.Attempts = attempts
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		return resp, nil
	}

	err = p.classify(req, target, attempts, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (p *Pipeline) header(ctx context.Context, req Request) http.Header {
	h := http.Header{}
	for k, vs := range req.Header {
		h[k] = append([]string(nil), vs...)
	}
	h.Set("Accept", "application/json")
	if p.userAgent != "" {
		h.Set("User-Agent", p.userAgent)
	}
	if req.Body != nil {
		h.Set("Content-Type", "application/json")
	}

	if req.AuthScope == "" {
		return h
	}
	if p.tokens != nil {
		if tok, ok := p.tokens.Token(ctx, req.AuthScope); ok {
			h.Set("Authorization", "Bearer "+tok)
			return h
		}
	}
	p.logger.Warn().
		Str("operation", req.operation()).
		Str("scope", req.AuthScope.String()).
		Msg("Authentication requested but token unavailable, proceeding without it")
	return h
}

func (p *Pipeline) dispatch(send func() (*Response, error)) (*Response, error) {
	if p.breaker == nil {
		return send()
	}
	return p.breaker.Execute(send)
}

func (p *Pipeline) attempt(ctx context.Context, req Request, target string, payload []byte, header http.Header) (*Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = header.Clone()
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.observe(req, "error", start)
		p.logger.Debug().Err(err).Str("request_id", requestID).Str("url", target).Msg("Attempt failed")
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		p.observe(req, "error", start)
		return nil, fmt.Errorf("read response body: %w", err)
	}
	p.observe(req, statusClass(httpResp.StatusCode), start)

	p.logger.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("url", target).
		Int("status", httpResp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Attempt completed")

	resp := &Response{StatusCode: httpResp.StatusCode, Body: data, Header: httpResp.Header}
	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, &statusError{resp: resp}
	}
	return resp, nil
}

func (p *Pipeline) classify(req Request, target string, attempts int, err error) error {
	var se *statusError
	if errors.As(err, &se) {
		return &domainErrors.RemoteError{
			Operation:  req.operation(),
			StatusCode: se.resp.StatusCode,
			Body:       Excerpt(se.resp.Body),
			Attempts:   attempts,
		}
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %w", domainErrors.ErrCircuitOpen, err)
	}
	return &domainErrors.NetworkError{
		Method:   req.Method,
		URL:      target,
		Attempts: attempts,
		Err:      err,
	}
}

func (p *Pipeline) observe(req Request, outcome string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.ClientRequests.WithLabelValues(req.Method, req.operation(), outcome).Inc()
	p.metrics.ClientRequestDuration.WithLabelValues(req.Method, req.operation()).Observe(time.Since(start).Seconds())
}

// retryable retries 5xx responses and transport failures, but never a
// cancelled caller or an open breaker.
func retryable(ctx context.Context) func(error) bool {
	return func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false
		}
		return true
	}
}

func retryReason(err error) string {
	var se *statusError
	if errors.As(err, &se) {
		return "server_error"
	}
	return "network"
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

const excerptLimit = 512

// Excerpt shortens a response body for error messages to at most
// excerptLimit bytes without splitting a UTF-8 sequence.
func Excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= excerptLimit {
		return s
	}
	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func (r Request) operation() string {
	if r.Operation != "" {
		return r.Operation
	}
	return strings.ToLower(r.Method) + " " + r.Path
}
