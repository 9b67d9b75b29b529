package repository

import (
	"context"
	"time"

	"github.com/james-spears/refactored-computing-machine/internal/domain"
)

// AccountStore persists user credentials. Emails are stored and looked up
// in the normalized (lowercase) form supplied by the caller.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id string, hash []byte, updatedAt time.Time) error
}

// DocumentStore keeps catalog entities as JSON documents keyed by kind and id.
type DocumentStore interface {
	PutDocument(ctx context.Context, kind domain.Kind, id string, body []byte) error
	GetDocument(ctx context.Context, kind domain.Kind, id string) ([]byte, error)
	ListDocuments(ctx context.Context, kind domain.Kind) ([][]byte, error)
	DeleteDocument(ctx context.Context, kind domain.Kind, id string) error
}
