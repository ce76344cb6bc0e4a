package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cassiomorais/bankclient/internal/service"
)

type contextKey string

const ClaimsKey contextKey = "claims"

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	VerifyToken(token string) (*service.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token. A non-empty scope
// must match the token's scope claim.
func RequireAuth(verifier TokenVerifier, scope string) func(http.Handler) http.Handler {
	return authenticate(verifier, scope, true)
}

// OptionalAuth lets anonymous requests through but rejects a bearer token
// that is present and invalid or issued for another scope.
func OptionalAuth(verifier TokenVerifier, scope string) func(http.Handler) http.Handler {
	return authenticate(verifier, scope, false)
}

func authenticate(verifier TokenVerifier, scope string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				if required {
					writeAuthError(w, http.StatusUnauthorized, "missing authorization header", "auth_required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "invalid authorization scheme", "auth_invalid_scheme")
				return
			}

			claims, err := verifier.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token", "auth_invalid")
				return
			}
			if scope != "" && claims.Scope != scope {
				writeAuthError(w, http.StatusForbidden, "token scope does not permit this operation", "insufficient_scope")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClaims(ctx context.Context) (*service.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*service.Claims)
	return claims, ok
}

func writeAuthError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  code,
	})
}
