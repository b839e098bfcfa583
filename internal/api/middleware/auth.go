package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	traceContextKey     contextKey = "trace_id"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == domain.RoleAdmin
}

// tokenSettings are set once at startup from config.
var tokenSettings struct {
	secret   []byte
	issuer   string
	audience string
}

type authClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

var (
	errMissingHeader = errors.New("authorization header required")
	errBadScheme     = errors.New("invalid token format")
	errBadClaims     = errors.New("invalid token claims")
)

func SetJWTSecret(secret string) {
	if secret == "" {
		return
	}
	tokenSettings.secret = []byte(secret)
}

// SetJWTValidation enables iss/aud checks. Empty values disable the check.
func SetJWTValidation(issuer, audience string) {
	tokenSettings.issuer = strings.TrimSpace(issuer)
	tokenSettings.audience = strings.TrimSpace(audience)
}

func JWTSecret() []byte {
	return append([]byte(nil), tokenSettings.secret...)
}

func JWTIssuer() string   { return tokenSettings.issuer }
func JWTAudience() string { return tokenSettings.audience }

// AuthMiddleware validates the bearer token and attaches the Principal.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(tokenSettings.secret) == 0 {
			writeProblem(w, r, http.StatusInternalServerError, "auth/misconfigured", "auth is not configured")
			return
		}

		raw, err := bearerToken(r)
		if err != nil {
			slug := "auth/invalid-token-format"
			if errors.Is(err, errMissingHeader) {
				slug = "auth/authorization-header-required"
			}
			writeProblem(w, r, http.StatusUnauthorized, slug, capitalize(err.Error()))
			return
		}

		principal, err := parsePrincipal(raw)
		if err != nil {
			slug, detail := "auth/invalid-token", "Invalid token"
			if errors.Is(err, errBadClaims) {
				slug, detail = "auth/invalid-token-claims", "Invalid token claims"
			}
			writeProblem(w, r, http.StatusUnauthorized, slug, detail)
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errBadScheme
	}
	return strings.TrimSpace(token), nil
}

func parsePrincipal(raw string) (Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if tokenSettings.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tokenSettings.issuer))
	}
	if tokenSettings.audience != "" {
		opts = append(opts, jwt.WithAudience(tokenSettings.audience))
	}

	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return tokenSettings.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("parse token: %w", err)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: user_id", errBadClaims)
	}
	if claims.Subject != "" && claims.Subject != claims.UserID {
		return Principal{}, fmt.Errorf("%w: subject mismatch", errBadClaims)
	}
	if claims.Role != domain.RoleUser && claims.Role != domain.RoleAdmin {
		return Principal{}, fmt.Errorf("%w: role %q", errBadClaims, claims.Role)
	}
	return Principal{UserID: userID, Role: claims.Role}, nil
}

// RequireRole admits callers holding any of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || !hasRole(p.Role, roles) {
				writeProblem(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(role string, allowed []string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

// UserIDFromContext returns the authenticated user id, or "" for anonymous
// requests.
func UserIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.UserID.String()
	}
	return ""
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

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
