package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt work factor used for account passwords.
const DefaultPasswordCost = 12

// ErrPasswordMismatch is returned when plaintext does not match the stored hash.
var ErrPasswordMismatch = errors.New("crypto: password mismatch")

// HashPassword hashes plaintext using bcrypt at the given cost.
// Costs outside bcrypt's accepted range fall back to DefaultPasswordCost.
func HashPassword(plain string, cost int) ([]byte, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}
	return bcrypt.GenerateFromPassword([]byte(plain), cost)
}

// ComparePassword compares plaintext to hashed secret.
func ComparePassword(hash []byte, plain string) error {
	err := bcrypt.CompareHashAndPassword(hash, []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}
