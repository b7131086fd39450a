// Package middleware provides HTTP middleware for the marketplace gateway.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/altarlane/marketplace/internal/errors"
	internalhttputil "github.com/altarlane/marketplace/internal/httputil"
	"github.com/altarlane/marketplace/internal/logging"
)

// Claims are the Supabase access-token claims the gateway relies on.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies Supabase-issued HS256 access tokens.
type AuthMiddleware struct {
	secret       []byte
	audience     string
	logger       *logging.Logger
	skipPaths    map[string]bool
	skipPrefixes []string
}

// NewAuthMiddleware creates the middleware. Paths ending in "/" in skipPaths are matched as prefixes.
func NewAuthMiddleware(secret []byte, logger *logging.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	var prefixes []string
	for _, path := range skipPaths {
		if strings.HasSuffix(path, "/") {
			prefixes = append(prefixes, path)
			continue
		}
		skip[path] = true
	}

	return &AuthMiddleware{
		secret:       secret,
		audience:     "authenticated",
		logger:       logger,
		skipPaths:    skip,
		skipPrefixes: prefixes,
	}
}

func (m *AuthMiddleware) skipped(path string) bool {
	if m.skipPaths[path] {
		return true
	}
	for _, p := range m.skipPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Handler rejects requests without a valid bearer token.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipped(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, m.attachOptional(r))
			return
		}

		tokenString, err := bearerToken(r)
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		claims, err := m.validateToken(tokenString)
		if err != nil {
			m.logger.LogSecurityEvent(r.Context(), "invalid_token", map[string]interface{}{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			m.respondError(w, r, err)
			return
		}

		ctx := withClaims(r.Context(), claims)
		m.logger.WithContext(ctx).WithField("role", claims.Role).Debug("authentication successful")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// attachOptional adds identity from a valid token on unauthenticated routes.
func (m *AuthMiddleware) attachOptional(r *http.Request) *http.Request {
	tokenString, err := bearerToken(r)
	if err != nil {
		return r
	}
	claims, err := m.validateToken(tokenString)
	if err != nil {
		return r
	}
	return r.WithContext(withClaims(r.Context(), claims))
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		// Browsers cannot set headers on WebSocket upgrades.
		if isWebSocketUpgrade(r) {
			if token := r.URL.Query().Get("access_token"); token != "" {
				return token, nil
			}
		}
		return "", errors.Unauthorized("missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.Unauthorized("invalid Authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func withClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = logging.WithUserID(ctx, claims.Subject)
	if claims.Role != "" {
		ctx = logging.WithRole(ctx, claims.Role)
	}
	if claims.Email != "" {
		ctx = logging.WithEmail(ctx, claims.Email)
	}
	return ctx
}

// validateToken validates a JWT token and returns claims
func (m *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, errors.InvalidToken(nil)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "missing subject")
	}
	return claims, nil
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("authentication failed", err)
	}

	internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("authentication failed")
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}

// GetUserRole extracts user role from context
func GetUserRole(ctx context.Context) string {
	return logging.GetRole(ctx)
}

// RequireUserID middleware ensures user ID is present in context
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			internalhttputil.Unauthorized(w, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
