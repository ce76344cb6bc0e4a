package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cassiomorais/bankclient/internal/auth"
	"github.com/cassiomorais/bankclient/internal/domain/banking"
	domainErrors "github.com/cassiomorais/bankclient/internal/domain/errors"
	"github.com/cassiomorais/bankclient/internal/infrastructure/config"
	"github.com/cassiomorais/bankclient/internal/infrastructure/observability"
	"github.com/cassiomorais/bankclient/internal/pipeline"
	"github.com/cassiomorais/bankclient/pkg/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const metricsNamespace = "bankclient"

type Options struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Registry   *prometheus.Registry
	HTTPClient *http.Client
	Timer      retry.Timer
	Now        func() time.Time
}

// Client talks to the remote banking service. It is safe for concurrent use.
type Client struct {
	cfg        *config.Config
	pipeline   *pipeline.Pipeline
	tokens     *auth.TokenCache
	httpClient *http.Client
	registry   *prometheus.Registry
	metrics    *observability.Metrics
	logger     zerolog.Logger
	now        func() time.Time
	started    time.Time
	closed     atomic.Bool
}

func New(opts Options) (*Client, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("client: config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = pipeline.NewHTTPClient(opts.Config.Client)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cfg := opts.Config
	logger := opts.Logger.With().Str("base_url", cfg.Client.BaseURL).Logger()
	metrics := observability.NewMetrics(metricsNamespace, opts.Registry)

	tokens := auth.NewTokenCache(auth.Options{
		BaseURL: cfg.Client.BaseURL,
		Credentials: auth.Credentials{
			Username: cfg.Auth.Username,
			Password: cfg.Auth.Password,
		},
		DefaultTTL:   cfg.Auth.TokenTTL,
		ExpiryBuffer: cfg.Auth.ExpiryBuffer,
		HTTPClient:   opts.HTTPClient,
		Metrics:      metrics,
		Logger:       logger,
		Now:          opts.Now,
	})

	p := pipeline.New(pipeline.Options{
		BaseURL:    cfg.Client.BaseURL,
		UserAgent:  cfg.Client.UserAgent,
		HTTPClient: opts.HTTPClient,
		Retry: retry.Config{
			MaxRetries: cfg.Client.MaxRetries,
			BaseDelay:  cfg.Client.RetryDelay,
			MaxDelay:   cfg.Client.MaxRetryDelay,
		},
		Breaker: cfg.CircuitBreaker,
		Tokens:  tokens,
		Metrics: metrics,
		Logger:  logger,
		Timer:   opts.Timer,
	})

	logger.Info().
		Dur("timeout", cfg.Client.Timeout).
		Int("max_retries", cfg.Client.MaxRetries).
		Msg("Banking client initialized")

	return &Client{
		cfg:        cfg,
		pipeline:   p,
		tokens:     tokens,
		httpClient: opts.HTTPClient,
		registry:   opts.Registry,
		metrics:    metrics,
		logger:     logger,
		now:        opts.Now,
		started:    opts.Now(),
	}, nil
}

// Token returns a bearer token for scope, from cache when still fresh.
func (c *Client) Token(ctx context.Context, scope banking.Scope) (string, bool) {
	return c.tokens.Token(ctx, scope)
}

// CachedTokens lists the tokens currently held.
func (c *Client) CachedTokens() []auth.TokenInfo {
	return c.tokens.Stats()
}

// Close drops cached tokens and idle connections. Calling it again is a no-op.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.tokens.Clear()
	c.httpClient.CloseIdleConnections()
	c.logger.Debug().Msg("Banking client closed")
	return nil
}

func (c *Client) record(operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "failure"
		if domainErrors.IsValidation(err) {
			result = "rejected"
		}
	}
	c.metrics.OperationsTotal.WithLabelValues(operation, result).Inc()
	c.metrics.OperationDuration.WithLabelValues(operation).Observe(c.now().Sub(start).Seconds())
}

func (c *Client) remoteError(operation string, resp *pipeline.Response) error {
	return &domainErrors.RemoteError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Body:       pipeline.Excerpt(resp.Body),
		Attempts:   resp.Attempts,
	}
}

// statusOf extracts the HTTP status behind err, or 0 for transport failures.
func statusOf(err error) (int, string) {
	var remote *domainErrors.RemoteError
	if errors.As(err, &remote) {
		return remote.StatusCode, remote.Body
	}
	return 0, err.Error()
}
