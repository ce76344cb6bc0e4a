package service

import (
	"crypto/subtle"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/bankclient/internal/domain/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carries the scope a token was issued for.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// AuthService issues and verifies HS256 bearer tokens for known clients.
type AuthService struct {
	secret  []byte
	ttl     time.Duration
	clients map[string]string
	scopes  map[string]bool
	now     func() time.Time
}

func NewAuthService(secret string, ttl time.Duration, clients map[string]string, now func() time.Time) *AuthService {
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		secret:  []byte(secret),
		ttl:     ttl,
		clients: clients,
		scopes:  map[string]bool{"transfer": true, "enquiry": true},
		now:     now,
	}
}

// IssueToken returns a signed token for scope and its lifetime.
func (s *AuthService) IssueToken(username, password, scope string) (string, time.Duration, error) {
	if !s.scopes[scope] {
		return "", 0, domainErrors.NewValidationError("claim", fmt.Sprintf("unknown scope %q", scope))
	}
	want, ok := s.clients[username]
	if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(password)) != 1 {
		return "", 0, domainErrors.ErrBadCredentials
	}

	now := s.now()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return signed, s.ttl, nil
}

// VerifyToken checks the signature and expiry of a bearer token.
func (s *AuthService) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, domainErrors.ErrUnauthorized
	}
	return claims, nil
}
