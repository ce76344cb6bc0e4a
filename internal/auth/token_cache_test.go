package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cassiomorais/bankclient/internal/domain/banking"
	"github.com/cassiomorais/bankclient/internal/infrastructure/observability"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type authServer struct {
	*httptest.Server
	calls  atomic.Int32
	scopes chan string
}

// newAuthServer answers every token request with respond.
func newAuthServer(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) *authServer {
	t.Helper()
	s := &authServer{scopes: make(chan string, 64)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.scopes <- r.URL.Query().Get("claim")
		respond(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func jsonToken(token string, expiresIn any) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"token": token}
		if expiresIn != nil {
			body["expiresIn"] = expiresIn
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}

func newCache(baseURL string, clock *fakeClock, metrics *observability.Metrics) *TokenCache {
	return NewTokenCache(Options{
		BaseURL:      baseURL,
		Credentials:  Credentials{Username: "modern_client", Password: "secure_password"},
		DefaultTTL:   time.Hour,
		ExpiryBuffer: 5 * time.Minute,
		Metrics:      metrics,
		Logger:       zerolog.Nop(),
		Now:          clock.Now,
	})
}

func TestTokenCache_SendsCredentialsAndScope(t *testing.T) {
	var got Credentials
	srv := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/authToken", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		jsonToken("a.b.c", 3600)(w, r)
	})

	tok, ok := newCache(srv.URL, newFakeClock(), nil).Token(t.Context(), banking.ScopeTransfer)

	require.True(t, ok)
	assert.Equal(t, "a.b.c", tok)
	assert.Equal(t, "transfer", <-srv.scopes)
	assert.Equal(t, Credentials{Username: "modern_client", Password: "secure_password"}, got)
}

func TestTokenCache_ReusesCachedToken(t *testing.T) {
	srv := newAuthServer(t, jsonToken("a.b.c", 3600))
	cache := newCache(srv.URL, newFakeClock(), nil)

	for range 5 {
		tok, ok := cache.Token(t.Context(), banking.ScopeEnquiry)
		require.True(t, ok)
		assert.Equal(t, "a.b.c", tok)
	}

	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestTokenCache_RefreshesInsideExpiryBuffer(t *testing.T) {
	srv := newAuthServer(t, jsonToken("a.b.c", 3600))
	clock := newFakeClock()
	cache := newCache(srv.URL, clock, nil)

	_, ok := cache.Token(t.Context(), banking.ScopeTransfer)
	require.True(t, ok)

	clock.Advance(55*time.Minute - time.Second)
	_, ok = cache.Token(t.Context(), banking.ScopeTransfer)
	require.True(t, ok)
	assert.Equal(t, int32(1), srv.calls.Load(), "still outside the buffer")

	clock.Advance(time.Second)
	_, ok = cache.Token(t.Context(), banking.ScopeTransfer)
	require.True(t, ok)
	assert.Equal(t, int32(2), srv.calls.Load(), "expiry minus buffer reached")

	_, ok = cache.Token(t.Context(), banking.ScopeTransfer)
	require.True(t, ok)
	assert.Equal(t, int32(2), srv.calls.Load(), "refreshed token is cached again")
}

func TestTokenCache_ScopesAreIndependent(t *testing.T) {
	srv := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		jsonToken("tok."+r.URL.Query().Get("claim")+".sig", 3600)(w, r)
	})
	cache := newCache(srv.URL, newFakeClock(), nil)

	transfer, ok := cache.Token(t.Context(), banking.ScopeTransfer)
	require.True(t, ok)
	enquiry, ok := cache.Token(t.Context(), banking.ScopeEnquiry)
	require.True(t, ok)

	assert.Equal(t, "tok.transfer.sig", transfer)
	assert.Equal(t, "tok.enquiry.sig", enquiry)
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestTokenCache_FailuresReportAbsent(t *testing.T) {
	tests := []struct {
		name    string
		respond func(http.ResponseWriter, *http.Request)
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"missing token field", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"expiresIn":3600}`))
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAuthServer(t, tt.respond)
			cache := newCache(srv.URL, newFakeClock(), nil)

			tok, ok := cache.Token(t.Context(), banking.ScopeTransfer)
			assert.False(t, ok)
			assert.Empty(t, tok)
			assert.Empty(t, cache.Stats())
		})
	}
}

func TestTokenCache_TransportFailureReportsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tok, ok := newCache(url, newFakeClock(), nil).Token(t.Context(), banking.ScopeTransfer)
	assert.False(t, ok)
	assert.Empty(t, tok)
}

func TestTokenCache_ExpiryFromJWTClaim(t *testing.T) {
	clock := newFakeClock()
	exp := clock.Now().Add(20 * time.Minute)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	srv := newAuthServer(t, jsonToken(signed, nil))
	cache := newCache(srv.URL, clock, nil)

	_, ok := cache.Token(t.Context(), banking.ScopeTransfer)
	require.True(t, ok)

	stats := cache.Stats()
	require.Len(t, stats, 1)
	assert.True(t, exp.Equal(stats[0].ExpiresAt))

	clock.Advance(15 * time.Minute)
	_, ok = cache.Token(t.Context(), banking.ScopeTransfer)
	require.True(t, ok)
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestTokenCache_DefaultTTLForOpaqueToken(t *testing.T) {
	clock := newFakeClock()
	srv := newAuthServer(t, jsonToken("opaque-token", nil))
	cache := newCache(srv.URL, clock, nil)

	_, ok := cache.Token(t.Context(), banking.ScopeEnquiry)
	require.True(t, ok)

	stats := cache.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, clock.Now().Add(time.Hour), stats[0].ExpiresAt)
	assert.True(t, stats[0].Fresh)
}

func TestTokenCache_ConcurrentMissesShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	srv := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		jsonToken("a.b.c", 3600)(w, r)
	})
	cache := newCache(srv.URL, newFakeClock(), nil)

	const callers = 20
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, ok := cache.Token(t.Context(), banking.ScopeTransfer)
			if ok {
				results[i] = tok
			}
		}()
	}

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), srv.calls.Load())
	for _, tok := range results {
		assert.Equal(t, "a.b.c", tok)
	}
}

func TestTokenCache_ClearForcesRefetch(t *testing.T) {
	srv := newAuthServer(t, jsonToken("a.b.c", 3600))
	cache := newCache(srv.URL, newFakeClock(), nil)

	cache.Token(t.Context(), banking.ScopeTransfer)
	cache.Clear()
	assert.Empty(t, cache.Stats())

	cache.Token(t.Context(), banking.ScopeTransfer)
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestTokenCache_StatsOrderedByScope(t *testing.T) {
	srv := newAuthServer(t, jsonToken("a.b.c", 3600))
	cache := newCache(srv.URL, newFakeClock(), nil)

	cache.Token(t.Context(), banking.ScopeTransfer)
	cache.Token(t.Context(), banking.ScopeEnquiry)

	stats := cache.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, banking.ScopeEnquiry, stats[0].Scope)
	assert.Equal(t, banking.ScopeTransfer, stats[1].Scope)
}

func TestTokenCache_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	srv := newAuthServer(t, jsonToken("a.b.c", 3600))
	cache := newCache(srv.URL, newFakeClock(), metrics)

	cache.Token(t.Context(), banking.ScopeTransfer)
	cache.Token(t.Context(), banking.ScopeTransfer)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TokenCacheLookups.WithLabelValues("transfer", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TokenCacheLookups.WithLabelValues("transfer", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TokenFetches.WithLabelValues("transfer", "success")))
}

func TestValidStructure(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"header.payload.signature", true},
		{"a.b", false},
		{"a.b.c.d", false},
		{"a..c", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidStructure(tt.token))
		})
	}
}
