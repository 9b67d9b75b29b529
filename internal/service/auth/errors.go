package auth

import "errors"

var (
	// ErrAccountExists is returned when registering an email that is taken.
	ErrAccountExists = errors.New("user already exists with this email")
	// ErrInvalidCredentials is returned for every login or password-change
	// mismatch, whether or not the account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when a refresh token cannot be honoured.
	ErrInvalidToken = errors.New("invalid or expired refresh token")
)

// ValidationError reports malformed input; Details lists every policy violation.
type ValidationError struct {
	Message string
	Details []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string, details ...string) error {
	return &ValidationError{Message: msg, Details: details}
}
