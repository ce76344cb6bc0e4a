package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cassiomorais/bankclient/internal/domain/banking"
	"github.com/cassiomorais/bankclient/internal/infrastructure/observability"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const maxTokenResponseSize = 64 << 10

// Credentials is the payload sent to the auth endpoint.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Options struct {
	BaseURL      string
	Credentials  Credentials
	DefaultTTL   time.Duration
	ExpiryBuffer time.Duration
	HTTPClient   *http.Client
	Metrics      *observability.Metrics
	Logger       zerolog.Logger
	Now          func() time.Time
}

// TokenInfo describes one cached entry.
type TokenInfo struct {
	Scope     banking.Scope
	ExpiresAt time.Time
	Fresh     bool
}

// TokenCache hands out bearer tokens per scope and refreshes them shortly
// before they expire. Failures are logged and reported as an absent token.
type TokenCache struct {
	baseURL    string
	creds      Credentials
	defaultTTL time.Duration
	buffer     time.Duration
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     zerolog.Logger
	now        func() time.Time

	mu     sync.Mutex
	tokens map[banking.Scope]banking.CachedToken
	group  singleflight.Group
}

type tokenResponse struct {
	Token     string   `json:"token"`
	ExpiresIn *float64 `json:"expiresIn,omitempty"`
}

func NewTokenCache(opts Options) *TokenCache {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	return &TokenCache{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		creds:      opts.Credentials,
		defaultTTL: opts.DefaultTTL,
		buffer:     opts.ExpiryBuffer,
		httpClient: opts.HTTPClient,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With().Str("component", "token_cache").Logger(),
		now:        opts.Now,
		tokens:     make(map[banking.Scope]banking.CachedToken),
	}
}

// Token returns a usable token for scope, fetching a new one when the cached
// entry is missing or inside the expiry buffer.
func (c *TokenCache) Token(ctx context.Context, scope banking.Scope) (string, bool) {
	if tok, ok := c.cached(scope); ok {
		c.countLookup(scope, "hit")
		c.logger.Debug().Str("scope", scope.String()).Msg("Using cached token")
		return tok, true
	}
	c.countLookup(scope, "miss")

	v, err, _ := c.group.Do(scope.String(), func() (any, error) {
		// A concurrent caller may have refreshed while we waited.
		if tok, ok := c.cached(scope); ok {
			return tok, nil
		}
		entry, err := c.fetch(ctx, scope)
		if err != nil {
			c.countFetch(scope, "failure")
			return "", err
		}
		c.countFetch(scope, "success")

		c.mu.Lock()
		c.tokens[scope] = entry
		c.mu.Unlock()

		c.logger.Info().
			Str("scope", scope.String()).
			Time("expires_at", entry.ExpiresAt).
			Msg("Obtained new token")
		return entry.Token, nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("scope", scope.String()).Msg("Token acquisition failed")
		return "", false
	}
	return v.(string), true
}

// Clear drops every cached token.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.tokens)
}

// Stats lists cached entries ordered by scope.
func (c *TokenCache) Stats() []TokenInfo {
	now := c.now()

	c.mu.Lock()
	infos := make([]TokenInfo, 0, len(c.tokens))
	for scope, tok := range c.tokens {
		infos = append(infos, TokenInfo{
			Scope:     scope,
			ExpiresAt: tok.ExpiresAt,
			Fresh:     tok.FreshAt(now, c.buffer),
		})
	}
	c.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Scope < infos[j].Scope })
	return infos
}

// ValidStructure reports whether token has the three dot-separated segments of a JWT.
func ValidStructure(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

func (c *TokenCache) cached(scope banking.Scope) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.tokens[scope]
	if !ok || !tok.FreshAt(c.now(), c.buffer) {
		return "", false
	}
	return tok.Token, true
}

func (c *TokenCache) fetch(ctx context.Context, scope banking.Scope) (banking.CachedToken, error) {
	payload, err := json.Marshal(c.creds)
	if err != nil {
		return banking.CachedToken{}, fmt.Errorf("encode credentials: %w", err)
	}

	endpoint := c.baseURL + "/authToken?claim=" + url.QueryEscape(scope.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return banking.CachedToken{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return banking.CachedToken{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return banking.CachedToken{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return banking.CachedToken{}, fmt.Errorf("auth endpoint returned HTTP %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return banking.CachedToken{}, fmt.Errorf("decode token response: %w", err)
	}
	if tr.Token == "" {
		return banking.CachedToken{}, fmt.Errorf("auth response carried no token")
	}

	return banking.CachedToken{Token: tr.Token, ExpiresAt: c.expiry(tr)}, nil
}

// expiry prefers the server's expiresIn, then the JWT exp claim, then the default TTL.
func (c *TokenCache) expiry(tr tokenResponse) time.Time {
	now := c.now()
	if tr.ExpiresIn != nil && *tr.ExpiresIn > 0 {
		return now.Add(time.Duration(*tr.ExpiresIn * float64(time.Second)))
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tr.Token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}

	return now.Add(c.defaultTTL)
}

func (c *TokenCache) countLookup(scope banking.Scope, result string) {
	if c.metrics != nil {
		c.metrics.TokenCacheLookups.WithLabelValues(scope.String(), result).Inc()
	}
}

func (c *TokenCache) countFetch(scope banking.Scope, result string) {
	if c.metrics != nil {
		c.metrics.TokenFetches.WithLabelValues(scope.String(), result).Inc()
	}
}
