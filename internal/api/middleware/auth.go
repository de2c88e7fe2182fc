package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/api/problem"
	"github.com/ayo6706/concert-ticketing/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
	traceContextKey    contextKey = "trace_id"
)

// ErrAuthNotConfigured is returned when no signing secret has been set.
var ErrAuthNotConfigured = errors.New("auth is not configured")

var (
	errInvalidToken  = errors.New("invalid token")
	errInvalidClaims = errors.New("invalid token claims")
)

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller may manage concerts and ticket pools.
func (i Identity) IsAdmin() bool {
	return i.Role == domain.RoleAdmin
}

type authClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type jwtSettings struct {
	mu       sync.RWMutex
	secret   []byte
	issuer   string
	audience string
}

var settings jwtSettings

func SetJWTSecret(secret string) {
	if secret == "" {
		return
	}
	settings.mu.Lock()
	settings.secret = []byte(secret)
	settings.mu.Unlock()
}

func SetJWTValidation(issuer, audience string) {
	settings.mu.Lock()
	settings.issuer = strings.TrimSpace(issuer)
	settings.audience = strings.TrimSpace(audience)
	settings.mu.Unlock()
}

// JWTSecret returns a copy of the signing secret.
func JWTSecret() []byte {
	settings.mu.RLock()
	defer settings.mu.RUnlock()
	clone := make([]byte, len(settings.secret))
	copy(clone, settings.secret)
	return clone
}

func JWTIssuer() string {
	settings.mu.RLock()
	defer settings.mu.RUnlock()
	return settings.issuer
}

func JWTAudience() string {
	settings.mu.RLock()
	defer settings.mu.RUnlock()
	return settings.audience
}

// IssueToken signs an HS256 token for the identity, valid for ttl from now.
func IssueToken(id Identity, now time.Time, ttl time.Duration) (string, error) {
	secret := JWTSecret()
	if len(secret) == 0 {
		return "", ErrAuthNotConfigured
	}
	claims := authClaims{
		UserID: id.UserID,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    JWTIssuer(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if aud := JWTAudience(); aud != "" {
		claims.Audience = jwt.ClaimStrings{aud}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(tokenString string) (Identity, error) {
	secret := JWTSecret()
	if len(secret) == 0 {
		return Identity{}, ErrAuthNotConfigured
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if iss := JWTIssuer(); iss != "" {
		opts = append(opts, jwt.WithIssuer(iss))
	}
	if aud := JWTAudience(); aud != "" {
		opts = append(opts, jwt.WithAudience(aud))
	}

	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Identity{}, errInvalidToken
	}
	return Identity{UserID: claims.UserID, Role: claims.Role}, validateSubject(claims)
}

func validateSubject(claims *authClaims) error {
	if claims.UserID == "" {
		return errInvalidClaims
	}
	if claims.Subject != "" && claims.Subject != claims.UserID {
		return errInvalidClaims
	}
	return nil
}

func unauthorized(w http.ResponseWriter, r *http.Request, slug, detail string) {
	problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/"+slug), http.StatusText(http.StatusUnauthorized), detail)
}

// AuthMiddleware validates the bearer token and stores the caller's Identity in the context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, r, "authorization-header-required", "Authorization header required")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			unauthorized(w, r, "invalid-token-format", "Invalid token format")
			return
		}

		id, err := parseToken(tokenString)
		switch {
		case errors.Is(err, ErrAuthNotConfigured):
			problem.Write(w, r, http.StatusInternalServerError, problem.Type("auth/misconfigured"), http.StatusText(http.StatusInternalServerError), err.Error())
			return
		case errors.Is(err, errInvalidClaims):
			unauthorized(w, r, "invalid-token-claims", "Invalid token claims")
			return
		case err != nil:
			unauthorized(w, r, "invalid-token", "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

// RequireRole rejects callers whose role differs from requiredRole.
func RequireRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := IdentityFromContext(r.Context())
			if id.Role != requiredRole {
				problem.Write(w, r, http.StatusForbidden, problem.Type("auth/insufficient-permissions"), http.StatusText(http.StatusForbidden), "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok && id.UserID != ""
}

// TraceIDFromContext returns the trace id for the request.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceContextKey).(string); ok {
		return v
	}
	return ""
}
