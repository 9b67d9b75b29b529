package httpx

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/james-spears/refactored-computing-machine/internal/domain"
	"github.com/james-spears/refactored-computing-machine/internal/repository"
	"github.com/james-spears/refactored-computing-machine/internal/service/auth"
	"github.com/james-spears/refactored-computing-machine/internal/service/catalog"
	jwtpkg "github.com/james-spears/refactored-computing-machine/pkg/jwt"
)

const (
	msgAuthRateLimited = "too many authentication attempts, please try again later"
	msgRateLimited     = "rate limit exceeded"
	healthCheckTimeout = 2 * time.Second
)

// Limits configures request throttling and body size.
type Limits struct {
	AuthLimit  int
	AuthWindow time.Duration
	UserLimit  int
	UserWindow time.Duration
	BodyBytes  int64
}

// DefaultLimits mirrors the production defaults.
func DefaultLimits() Limits {
	return Limits{
		AuthLimit:  10,
		AuthWindow: 30 * time.Minute,
		UserLimit:  120,
		UserWindow: time.Minute,
		BodyBytes:  1 << 20,
	}
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     *auth.Service
	tokens   *jwtpkg.Manager
	catalog  *catalog.Catalog
	limiter  RateLimiter
	limits   Limits
	metrics  *metrics
	dbHealth func(context.Context) error
}

// Deps groups the collaborators of a Router.
type Deps struct {
	Logger   *slog.Logger
	Auth     *auth.Service
	Tokens   *jwtpkg.Manager
	Catalog  *catalog.Catalog
	Limiter  RateLimiter
	Limits   Limits
	DBHealth func(context.Context) error
}

// NewRouter assembles routes with dependencies.
func NewRouter(deps Deps) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   deps.Logger,
		auth:     deps.Auth,
		tokens:   deps.Tokens,
		catalog:  deps.Catalog,
		limiter:  deps.Limiter,
		limits:   deps.Limits,
		metrics:  newMetrics(),
		dbHealth: deps.DBHealth,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.limits.BodyBytes <= 0 {
		r.limits.BodyBytes = DefaultLimits().BodyBytes
	}
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("healthz", r.handleHealthz))
	r.mux.Handle("/metrics", r.metrics.handler())
	r.mux.HandleFunc("/auth/register", r.audit("auth_register", r.authRate("auth_register", r.handleRegister)))
	r.mux.HandleFunc("/auth/login", r.audit("auth_login", r.authRate("auth_login", r.handleLogin)))
	r.mux.HandleFunc("/auth/refresh", r.audit("auth_refresh", r.authRate("auth_refresh", r.handleRefresh)))
	r.mux.HandleFunc("/auth/profile", r.audit("auth_profile", r.handlerAuthRate("auth_profile", r.handleProfile)))
	r.mux.HandleFunc("/auth/logout", r.audit("auth_logout", r.handleLogout))
	for _, kind := range domain.Kinds {
		route := "catalog_" + string(kind)
		handler := r.audit(route, r.handlerAuthRate(route, r.handleCatalog(kind)))
		r.mux.HandleFunc("/"+string(kind), handler)
		r.mux.HandleFunc("/"+string(kind)+"/", handler)
	}
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentialsPayload
	if !r.decodeJSON(w, req, &payload) {
		return
	}
	user, tokens, err := r.auth.Register(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    user.Summary(),
		"tokens":  tokens,
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentialsPayload
	if !r.decodeJSON(w, req, &payload) {
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    user.Summary(),
		"tokens":  tokens,
	})
}

func (r *Router) handleRefresh(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !r.decodeJSON(w, req, &payload) {
		return
	}
	tokens, err := r.auth.Refresh(req.Context(), payload.RefreshToken)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Tokens refreshed successfully",
		"tokens":  tokens,
	})
}

func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) {
	id, ok := IdentityFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for profile", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	switch req.Method {
	case http.MethodGet:
		user, err := r.auth.Profile(req.Context(), id.Subject)
		if err != nil {
			r.writeProfileError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user.Summary()})
	case http.MethodPut:
		var payload struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if !r.decodeJSON(w, req, &payload) {
			return
		}
		user, err := r.auth.UpdateProfile(req.Context(), id.Subject, auth.UpdateProfileInput{
			CurrentPassword: payload.CurrentPassword,
			NewPassword:     payload.NewPassword,
		})
		if err != nil {
			r.writeProfileError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Profile updated successfully",
			"user":    user.Summary(),
		})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) writeProfileError(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	r.writeServiceError(w, req, err)
}

// handleLogout is stateless; clients discard their tokens.
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (r *Router) handleCatalog(kind domain.Kind) http.HandlerFunc {
	prefix := "/" + string(kind)
	return func(w http.ResponseWriter, req *http.Request) {
		col, ok := r.catalog.Collection(kind)
		if !ok {
			r.notFound(w)
			return
		}
		id := strings.Trim(strings.TrimPrefix(req.URL.Path, prefix), "/")
		if strings.Contains(id, "/") {
			r.notFound(w)
			return
		}
		if id == "" {
			r.handleCollection(w, req, col)
			return
		}
		r.handleEntry(w, req, col, id)
	}
}

func (r *Router) handleCollection(w http.ResponseWriter, req *http.Request, col catalog.Collection) {
	switch req.Method {
	case http.MethodGet:
		items, err := col.ListEntries(req.Context())
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		body, ok := r.readBody(w, req)
		if !ok {
			return
		}
		id, err := col.AddEntry(req.Context(), body)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleEntry(w http.ResponseWriter, req *http.Request, col catalog.Collection, id string) {
	switch req.Method {
	case http.MethodGet:
		item, err := col.GetEntry(req.Context(), id)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPatch:
		body, ok := r.readBody(w, req)
		if !ok {
			return
		}
		item, err := col.UpdateEntry(req.Context(), id, body)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodDelete:
		if err := col.Remove(req.Context(), id); err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": id})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			r.logger.Error("database health check failed", "error", err)
			status = "degraded"
			components["database"] = map[string]any{"status": "down"}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.metrics.recordRequest(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if id, ok := IdentityFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", id.Subject)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
