// Package auth issues and verifies the HS256 bearer tokens that protect the
// proxy API. Tokens identify the tenant; the webhook ingestion path never
// goes through this package.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"evolution-gateway/internal/common/errors"
	"evolution-gateway/internal/common/logging"
)

const issuer = "evolution-gateway"

// Claims carries the tenant identity embedded in every token.
type Claims struct {
	TenantID   string `json:"clientId"`
	TenantName string `json:"clientName"`
	UserID     string `json:"userId,omitempty"`
	Role       string `json:"userRole,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens.
type Service struct {
	secret []byte
	expiry time.Duration
	logger logging.Logger

	now func() time.Time
}

// New creates the auth service. The secret must already be validated by the
// configuration layer.
func New(secret string, expiry time.Duration, logger logging.Logger) (*Service, error) {
	if secret == "" {
		return nil, errors.ConfigError("JWT secret is required")
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Service{
		secret: []byte(secret),
		expiry: expiry,
		logger: logger.WithFields(logging.String("component", "auth")),
		now:    time.Now,
	}, nil
}

// GenerateToken issues a signed token for the tenant.
func (s *Service) GenerateToken(tenantID, tenantName, userID, role string) (string, error) {
	if tenantID == "" {
		return "", errors.ValidationError("clientId is required")
	}

	now := s.now()
	claims := &Claims{
		TenantID:   tenantID,
		TenantName: tenantName,
		UserID:     userID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token, returning its claims.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.AuthorizationError("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, errors.AuthorizationError("invalid or expired token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.AuthorizationError("invalid token claims")
	}
	if claims.TenantID == "" {
		return nil, errors.AuthorizationError("token missing tenant identity")
	}
	return claims, nil
}

type contextKey struct{}

// ClaimsFromContext returns the verified claims attached by the middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok
}

// TenantFromRequest returns the authenticated tenant ID or the empty string.
// The rate limiter uses it to key the message-send class per tenant.
func TenantFromRequest(r *http.Request) string {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return claims.TenantID
	}
	return ""
}

// RequireTenantAccess checks a request-supplied tenant id against the
// authenticated claims. Requests that do not name a tenant are allowed;
// naming another tenant is a forbidden access.
func RequireTenantAccess(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return nil
	}
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return errors.AuthorizationError("authentication required")
	}
	if claims.TenantID != tenantID {
		return errors.ForbiddenError("access denied for this client")
	}
	return nil
}

// Middleware rejects requests without a valid bearer token and attaches the
// claims to the request context.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			s.unauthorized(w, "Authorization token required")
			return
		}

		claims, err := s.VerifyToken(token)
		if err != nil {
			s.logger.Warn("Token rejected",
				logging.String("path", r.URL.Path),
				logging.Err(err),
			)
			s.unauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}

func (s *Service) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"success": false, "message": "` + message + `"}`))
}
