package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the release-governance API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
	Details []string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, details := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg, Details: details}
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) (string, []string) {
	if body == nil {
		return "", nil
	}
	var payload struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return "", nil
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(payload.Error), payload.Details
}

// AuthResponse captures the account and token payload emitted by the API.
type AuthResponse struct {
	Message string    `json:"message"`
	User    User      `json:"user"`
	Tokens  TokenPair `json:"tokens"`
}

// User reflects API user payloads.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenPair includes access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and returns its first token pair.
func (c *Client) Register(ctx context.Context, email, password string) (AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", credentials{Email: email, Password: password}, "", &resp)
	return resp, err
}

// Login exchanges credentials for tokens.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", credentials{Email: email, Password: password}, "", &resp)
	return resp, err
}

// Refresh trades a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	var resp struct {
		Tokens TokenPair `json:"tokens"`
	}
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", body, "", &resp); err != nil {
		return TokenPair{}, err
	}
	return resp.Tokens, nil
}

// Profile returns the caller's account.
func (c *Client) Profile(ctx context.Context, token string) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, token, &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

// ChangePassword rotates the caller's password.
func (c *Client) ChangePassword(ctx context.Context, token, current, next string) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	body := map[string]string{"currentPassword": current, "newPassword": next}
	if err := c.do(ctx, http.MethodPut, "/auth/profile", body, token, &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

// Logout notifies the API; tokens must still be discarded locally.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodGet, "/auth/logout", nil, token, nil)
}

// ListCatalog returns the raw entries of a catalog collection such as "teams".
func (c *Client) ListCatalog(ctx context.Context, token, kind string) ([]json.RawMessage, error) {
	kind = strings.Trim(strings.TrimSpace(kind), "/")
	if kind == "" {
		return nil, fmt.Errorf("catalog kind is required")
	}
	var items []json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(kind), nil, token, &items); err != nil {
		return nil, err
	}
	return items, nil
}
