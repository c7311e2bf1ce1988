// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/httputil"
	"github.com/cafeteria-hr/service_layer/internal/logging"
)

type userContextKey struct{}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(user.User)
	return u, ok
}

// TokenFromRequest extracts the bearer session token, or "".
func TokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (user.User, error)
}

// AuthMiddleware resolves bearer session tokens and rejects unauthenticated
// requests outside the skip list.
type AuthMiddleware struct {
	auth        Authenticator
	logger      *logging.Logger
	skipPaths   map[string]bool
	skipPrefixs []string
}

// NewAuthMiddleware creates a new authentication middleware. Paths ending in
// "/" are treated as prefixes.
func NewAuthMiddleware(auth Authenticator, logger *logging.Logger, skipPaths []string) *AuthMiddleware {
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
		auth:        auth,
		logger:      logger,
		skipPaths:   skip,
		skipPrefixs: prefixes,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := TokenFromRequest(r)
		if token == "" {
			httputil.Unauthorized(w, "missing bearer token")
			return
		}

		u, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("session validation failed")
			m.respondError(w, r, err)
			return
		}

		ctx := WithUser(r.Context(), u)
		ctx = logging.WithUser(ctx, u.ID, string(u.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) skip(path string) bool {
	if m.skipPaths[path] {
		return true
	}
	for _, prefix := range m.skipPrefixs {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if svcErr := apperr.GetServiceError(err); svcErr != nil {
		httputil.WriteErrorResponse(w, r, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
		return
	}
	httputil.Unauthorized(w, "")
}
