package domain

import "time"

// User represents a platform account.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSummary is the public projection of a User; it never carries the hash.
type UserSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary projects the user for API responses.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}
