package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/james-spears/refactored-computing-machine/internal/repository/memory"
	"github.com/james-spears/refactored-computing-machine/internal/service/auth"
	"github.com/james-spears/refactored-computing-machine/internal/service/catalog"
	jwtpkg "github.com/james-spears/refactored-computing-machine/pkg/jwt"
	"github.com/james-spears/refactored-computing-machine/pkg/logger"
)

const testPassword = "Str0ng!Pass"

func testTokenConfig() jwtpkg.Config {
	return jwtpkg.Config{
		Secret:   []byte("router-test-secret"),
		Issuer:   "auth-service",
		Audience: "auth-client",
	}
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	tokens, err := jwtpkg.NewManager(testTokenConfig())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	repo := memory.New()
	log := logger.Discard()
	r := NewRouter(Deps{
		Logger:  log,
		Auth:    auth.New(repo, tokens, log, bcrypt.MinCost),
		Tokens:  tokens,
		Catalog: catalog.New(repo, log),
		Limiter: NewMemoryRateLimiter(),
		Limits:  DefaultLimits(),
	})
	t.Cleanup(r.Close)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type authResponse struct {
	Message string `json:"message"`
	User    struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Tokens jwtpkg.TokenPair `json:"tokens"`
	Error  string           `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func register(t *testing.T, h http.Handler, email string) authResponse {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{"email": email, "password": testPassword})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", email, rec.Code, rec.Body.String())
	}
	return decode[authResponse](t, rec)
}

func TestRegisterReturnsTokensWithoutPassword(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(t, r, http.MethodPost, "/auth/register", "", map[string]string{"email": "a@x.com", "password": testPassword})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), testPassword) {
		t.Fatalf("response leaked plaintext password")
	}
	if strings.Contains(strings.ToLower(rec.Body.String()), "hash") {
		t.Fatalf("response leaked password hash field")
	}
	resp := decode[authResponse](t, rec)
	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", resp.Tokens)
	}
	if resp.User.Email != "a@x.com" || resp.User.ID == "" {
		t.Fatalf("unexpected user %+v", resp.User)
	}
	if resp.Tokens.ExpiresIn != 900 || resp.Tokens.TokenType != "Bearer" {
		t.Fatalf("unexpected token metadata %+v", resp.Tokens)
	}
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	r := newTestRouter(t)
	register(t, r, "dup@x.com")
	rec := doJSON(t, r, http.MethodPost, "/auth/register", "", map[string]string{"email": "DUP@x.com", "password": testPassword})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterWeakPasswordListsViolations(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(t, r, http.MethodPost, "/auth/register", "", map[string]string{"email": "weak@x.com", "password": "aaaaaaaa"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decode[struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}](t, rec)
	want := []string{
		"Password must contain at least one uppercase letter",
		"Password must contain at least one number",
		"Password must contain at least one special character",
		"Password contains common weak patterns",
	}
	if len(resp.Details) != len(want) {
		t.Fatalf("expected %d details, got %v", len(want), resp.Details)
	}
	for i := range want {
		if resp.Details[i] != want[i] {
			t.Fatalf("detail %d: expected %q, got %q", i, want[i], resp.Details[i])
		}
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	r := newTestRouter(t)
	cases := []struct {
		name string
		body any
	}{
		{name: "malformed json", body: "{"},
		{name: "missing password", body: map[string]string{"email": "a@x.com"}},
		{name: "bad email", body: map[string]string{"email": "nope", "password": testPassword}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, r, http.MethodPost, "/auth/register", "", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
	if rec := doJSON(t, r, http.MethodGet, "/auth/register", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestRegisterRateLimited(t *testing.T) {
	r := newTestRouter(t)
	for i := 0; i < 10; i++ {
		register(t, r, fmt.Sprintf("user%d@x.com", i))
	}
	rec := doJSON(t, r, http.MethodPost, "/auth/register", "", "not even json")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[authResponse](t, rec).Error; got != msgAuthRateLimited {
		t.Fatalf("unexpected message %q", got)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" || rec.Header().Get("X-RateLimit-Limit") != "10" {
		t.Fatalf("unexpected rate headers %v", rec.Header())
	}

	// login is counted separately
	if rec := doJSON(t, r, http.MethodPost, "/auth/login", "", map[string]string{"email": "user0@x.com", "password": testPassword}); rec.Code != http.StatusOK {
		t.Fatalf("expected login to pass, got %d", rec.Code)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	r := newTestRouter(t)
	register(t, r, "known@x.com")

	wrong := doJSON(t, r, http.MethodPost, "/auth/login", "", map[string]string{"email": "known@x.com", "password": "Wr0ng!Pass"})
	unknown := doJSON(t, r, http.MethodPost, "/auth/login", "", map[string]string{"email": "ghost@x.com", "password": testPassword})
	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Fatalf("bodies differ: %q vs %q", wrong.Body.String(), unknown.Body.String())
	}

	ok := doJSON(t, r, http.MethodPost, "/auth/login", "", map[string]string{"email": "Known@X.com", "password": testPassword})
	if ok.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", ok.Code, ok.Body.String())
	}
}

func TestProfileAuthentication(t *testing.T) {
	r := newTestRouter(t)
	resp := register(t, r, "me@x.com")

	cases := []struct {
		name   string
		header string
		status int
		msg    string
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized, msg: "authentication required"},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized, msg: "authentication required"},
		{name: "garbage token", header: "Bearer not.a.jwt", status: http.StatusForbidden, msg: "invalid or expired token"},
		{name: "refresh token", header: "Bearer " + resp.Tokens.RefreshToken, status: http.StatusUnauthorized, msg: "invalid token type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if got := decode[authResponse](t, rec).Error; got != tc.msg {
				t.Fatalf("expected %q, got %q", tc.msg, got)
			}
		})
	}

	rec := doJSON(t, r, http.MethodGet, "/auth/profile", resp.Tokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[authResponse](t, rec).User.ID; got != resp.User.ID {
		t.Fatalf("profile returned %q, want %q", got, resp.User.ID)
	}
}

func TestExpiredAccessTokenForbidden(t *testing.T) {
	r := newTestRouter(t)
	resp := register(t, r, "old@x.com")

	cfg := testTokenConfig()
	cfg.Clock = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, err := jwtpkg.NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	pair, err := stale.IssuePair(resp.User.ID, resp.User.Email)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec := doJSON(t, r, http.MethodGet, "/auth/profile", pair.AccessToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestProfileForDeletedSubjectNotFound(t *testing.T) {
	r := newTestRouter(t)
	pair, err := r.tokens.IssuePair("ghost-id", "ghost@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec := doJSON(t, r, http.MethodGet, "/auth/profile", pair.AccessToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := decode[authResponse](t, rec).Error; got != "user not found" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestRefreshTokenTypes(t *testing.T) {
	r := newTestRouter(t)
	resp := register(t, r, "refresh@x.com")

	rec := doJSON(t, r, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": resp.Tokens.AccessToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("access token as refresh: expected 401, got %d", rec.Code)
	}
	rec = doJSON(t, r, http.MethodPost, "/auth/refresh", "", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing token: expected 400, got %d", rec.Code)
	}
	rec = doJSON(t, r, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": resp.Tokens.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	fresh := decode[authResponse](t, rec).Tokens
	if rec := doJSON(t, r, http.MethodGet, "/auth/profile", fresh.AccessToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("refreshed access token rejected: %d", rec.Code)
	}
}

func TestUpdateProfileChangesPassword(t *testing.T) {
	r := newTestRouter(t)
	resp := register(t, r, "rotate@x.com")
	token := resp.Tokens.AccessToken

	rec := doJSON(t, r, http.MethodPut, "/auth/profile", token, map[string]string{"currentPassword": "Wr0ng!Pass", "newPassword": "N3w!Secret"})
	if rec.Code != http.StatusUnauthorized || decode[authResponse](t, rec).Error != "invalid credentials" {
		t.Fatalf("expected uniform 401, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, r, http.MethodPut, "/auth/profile", token, map[string]string{"newPassword": "N3w!Secret"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without current password, got %d", rec.Code)
	}
	rec = doJSON(t, r, http.MethodPut, "/auth/profile", token, map[string]string{"currentPassword": testPassword, "newPassword": "N3w!Secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, r, http.MethodPost, "/auth/login", "", map[string]string{"email": "rotate@x.com", "password": "N3w!Secret"}); rec.Code != http.StatusOK {
		t.Fatalf("login with new password: %d", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(t, r, http.MethodGet, "/auth/logout", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[authResponse](t, rec).Message; got != "Logged out successfully" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestCatalogCRUD(t *testing.T) {
	r := newTestRouter(t)
	token := register(t, r, "lead@x.com").Tokens.AccessToken

	if rec := doJSON(t, r, http.MethodGet, "/teams", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec := doJSON(t, r, http.MethodPost, "/teams", token, map[string]any{"name": "platform", "userIds": []string{"u1"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	id := decode[map[string]string](t, rec)["id"]
	if id == "" {
		t.Fatalf("expected id in response")
	}

	rec = doJSON(t, r, http.MethodPatch, "/teams/"+id, token, map[string]any{"name": "platform-core"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, r, http.MethodGet, "/teams/"+id, token, nil)
	team := decode[map[string]any](t, rec)
	if team["name"] != "platform-core" {
		t.Fatalf("unexpected team %v", team)
	}

	rec = doJSON(t, r, http.MethodGet, "/teams", token, nil)
	if list := decode[[]map[string]any](t, rec); len(list) != 1 {
		t.Fatalf("expected one team, got %v", list)
	}

	if rec := doJSON(t, r, http.MethodPost, "/teams", token, map[string]any{"userIds": []string{}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid create: expected 400, got %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodDelete, "/teams/"+id, token, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodGet, "/teams/"+id, token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodGet, "/teams/"+id+"/extra", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("nested path: expected 404, got %d", rec.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	r := newTestRouter(t)
	r.limits.BodyBytes = 64
	body := `{"email":"a@x.com","password":"` + strings.Repeat("x", 128) + `"}`
	rec := doJSON(t, r, http.MethodPost, "/auth/register", "", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}
	r.dbHealth = func(ctx context.Context) error { return errors.New("connection refused") }
	rec = doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz degraded: expected 503, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("health response leaked error detail")
	}

	rec = doJSON(t, r, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `relgate_api_http_requests_total{method="GET",route="healthz",status="200"} 1`) {
		t.Fatalf("request counter missing from metrics output")
	}
}
