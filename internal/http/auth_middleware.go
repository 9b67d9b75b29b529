package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwtpkg "github.com/james-spears/refactored-computing-machine/pkg/jwt"
)

type authContextKey string

// Identity is the verified caller attached to an authenticated request.
type Identity struct {
	Subject string
	Email   string
}

const contextKeyAuth authContextKey = "relgate-identity"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request carries a valid access token before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the Authorization header and enriches the context.
// A missing header or a non-access token is 401; a bad signature or expiry is 403.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, bool) {
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		r.logger.Debug("authorization header invalid", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return req.Context(), false
	}
	claims, err := r.tokens.Verify(token)
	if err != nil {
		r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusForbidden, "invalid or expired token")
		return req.Context(), false
	}
	if claims.Type != jwtpkg.TokenAccess {
		r.logger.Warn("token type rejected", "type", claims.Type, "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "invalid token type")
		return req.Context(), false
	}
	id := Identity{Subject: claims.Subject, Email: claims.Email}
	return context.WithValue(req.Context(), contextKeyAuth, id), true
}

// IdentityFromContext extracts the verified caller from ctx.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKeyAuth).(Identity)
	return id, ok
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
