// Package jwt issues and verifies the HS256 access/refresh token pair.
package jwt

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

const (
	// DefaultAccessTTL is the lifetime of an access token.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL is the lifetime of a refresh token.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	secretSize = 64
)

var (
	// ErrInvalidToken covers every verification failure: bad signature, wrong
	// algorithm, issuer or audience mismatch, expiry and missing claims.
	ErrInvalidToken = errors.New("jwt: invalid or expired token")
	// ErrWrongTokenType is returned when a valid token is used for the other purpose.
	ErrWrongTokenType = errors.New("jwt: wrong token type")
	// ErrMissingSecret is returned when a Manager is built without key material.
	ErrMissingSecret = errors.New("jwt: signing secret is required")
)

// Claims defines JWT payload.
type Claims struct {
	Email string    `json:"email"`
	Type  TokenType `json:"type"`
	jwtlib.RegisteredClaims
}

// Config carries everything a Manager needs. Secret is mandatory.
type Config struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Clock overrides time.Now, mostly for tests.
	Clock func() time.Time
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

// Manager signs and verifies tokens with a single symmetric secret.
type Manager struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if strings.TrimSpace(cfg.Issuer) == "" || strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("jwt: issuer and audience are required")
	}
	m := &Manager{
		secret:     append([]byte(nil), cfg.Secret...),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Clock,
	}
	if m.accessTTL <= 0 {
		m.accessTTL = DefaultAccessTTL
	}
	if m.refreshTTL <= 0 {
		m.refreshTTL = DefaultRefreshTTL
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// GenerateSecret returns fresh random key material. Tokens signed with it do
// not survive a process restart.
func GenerateSecret() ([]byte, error) {
	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate jwt secret: %w", err)
	}
	return secret, nil
}

// AccessTTL reports the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.accessTTL
}

// IssuePair signs an access and a refresh token for the subject.
func (m *Manager) IssuePair(subject, email string) (TokenPair, error) {
	if strings.TrimSpace(subject) == "" {
		return TokenPair{}, errors.New("jwt: subject is required")
	}
	now := m.now().Truncate(time.Second)
	access, err := m.sign(subject, email, TokenAccess, now, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.sign(subject, email, TokenRefresh, now, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.accessTTL / time.Second),
		TokenType:    "Bearer",
	}, nil
}

func (m *Manager) sign(subject, email string, typ TokenType, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Email: email,
		Type:  typ,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			Audience:  jwtlib.ClaimStrings{m.audience},
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Verify validates signature and claims and returns the payload.
func (m *Manager) Verify(token string) (*Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwtlib.ParseWithClaims(trimmed, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(m.issuer),
		jwtlib.WithAudience(m.audience),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Type != TokenAccess && claims.Type != TokenRefresh {
		return nil, fmt.Errorf("%w: unknown token type", ErrInvalidToken)
	}
	return claims, nil
}

// VerifyType is Verify plus a check that the token was issued for want.
func (m *Manager) VerifyType(token string, want TokenType) (*Claims, error) {
	claims, err := m.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
