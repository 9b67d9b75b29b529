package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/james-spears/refactored-computing-machine/internal/domain"
	"github.com/james-spears/refactored-computing-machine/internal/repository"
	"github.com/james-spears/refactored-computing-machine/pkg/crypto"
	jwtpkg "github.com/james-spears/refactored-computing-machine/pkg/jwt"
	"github.com/james-spears/refactored-computing-machine/pkg/redact"
)

// Service handles authentication workflows.
type Service struct {
	users      repository.AccountStore
	tokens     *jwtpkg.Manager
	logger     *slog.Logger
	bcryptCost int
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// New constructs a Service.
func New(users repository.AccountStore, tokens *jwtpkg.Manager, logger *slog.Logger, bcryptCost int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, tokens: tokens, logger: logger, bcryptCost: bcryptCost, now: time.Now}
}

// UpdateProfileInput carries the mutable profile fields.
type UpdateProfileInput struct {
	CurrentPassword string
	NewPassword     string
}

// Register creates an account and returns it with a fresh token pair.
func (s *Service) Register(ctx context.Context, email, password string) (*domain.User, jwtpkg.TokenPair, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, jwtpkg.TokenPair{}, invalid("email and password are required")
	}
	email = NormalizeEmail(email)
	if !ValidateEmailFormat(email) {
		return nil, jwtpkg.TokenPair{}, invalid("invalid email format")
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, jwtpkg.TokenPair{}, ErrAccountExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, jwtpkg.TokenPair{}, fmt.Errorf("lookup account: %w", err)
	}
	if check := ValidatePasswordStrength(password); !check.Valid {
		return nil, jwtpkg.TokenPair{}, invalid("password does not meet security requirements", check.Messages()...)
	}

	hash, err := crypto.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, jwtpkg.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, jwtpkg.TokenPair{}, ErrAccountExists
		}
		return nil, jwtpkg.TokenPair{}, fmt.Errorf("create account: %w", err)
	}
	tokens, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, jwtpkg.TokenPair{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID, "email", redact.Email(user.Email))
	return user, tokens, nil
}

// Login authenticates a user and returns tokens. Unknown accounts and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, jwtpkg.TokenPair, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, jwtpkg.TokenPair{}, invalid("email and password are required")
	}
	email = NormalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, jwtpkg.TokenPair{}, fmt.Errorf("lookup account: %w", err)
		}
		// burn the same bcrypt work as a real comparison
		_ = crypto.ComparePassword(s.placeholderHash(), password)
		s.logger.Warn("login rejected", "reason", "unknown account", "email", redact.Email(email))
		return nil, jwtpkg.TokenPair{}, ErrInvalidCredentials
	}
	if err := s.checkPassword(user, password); err != nil {
		return nil, jwtpkg.TokenPair{}, err
	}
	tokens, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, jwtpkg.TokenPair{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, tokens, nil
}

// Refresh exchanges a refresh token for a new pair bound to the same account.
// Refresh tokens are not rotated: the presented token stays valid until expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (jwtpkg.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return jwtpkg.TokenPair{}, invalid("refresh token required")
	}
	claims, err := s.tokens.VerifyType(refreshToken, jwtpkg.TokenRefresh)
	if err != nil {
		s.logger.Warn("refresh rejected", "error", err)
		return jwtpkg.TokenPair{}, ErrInvalidToken
	}
	if _, err := s.users.FindByID(ctx, claims.Subject); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("refresh rejected", "reason", "account missing", "user_id", claims.Subject)
			return jwtpkg.TokenPair{}, ErrInvalidToken
		}
		return jwtpkg.TokenPair{}, fmt.Errorf("lookup account: %w", err)
	}
	return s.tokens.IssuePair(claims.Subject, claims.Email)
}

// Profile returns the account for an authenticated subject.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.FindByID(ctx, userID)
}

// UpdateProfile applies profile changes. Changing the password requires the
// current password and a new password that satisfies the policy.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.NewPassword == "" {
		return user, nil
	}
	if in.CurrentPassword == "" {
		return nil, invalid("current password required to change password")
	}
	if err := s.checkPassword(user, in.CurrentPassword); err != nil {
		return nil, err
	}
	if check := ValidatePasswordStrength(in.NewPassword); !check.Valid {
		return nil, invalid("new password does not meet security requirements", check.Messages()...)
	}
	hash, err := crypto.HashPassword(in.NewPassword, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, user.ID, hash, now); err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.UpdatedAt = now
	s.logger.Info("password changed", "user_id", user.ID)
	return user, nil
}

func (s *Service) checkPassword(user *domain.User, password string) error {
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		if !errors.Is(err, crypto.ErrPasswordMismatch) {
			s.logger.Error("password comparison failed", "user_id", user.ID, "error", err)
		} else {
			s.logger.Warn("password mismatch", "user_id", user.ID)
		}
		return ErrInvalidCredentials
	}
	return nil
}

func (s *Service) placeholderHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := crypto.HashPassword(uuid.NewString(), s.bcryptCost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
