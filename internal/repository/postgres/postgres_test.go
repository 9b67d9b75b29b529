package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/james-spears/refactored-computing-machine/internal/repository"
)

func TestMapErrorTranslatesUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation})
	if !errors.Is(mapError(err), repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", mapError(err))
	}
}

func TestMapErrorPassesThroughOthers(t *testing.T) {
	other := &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}
	if got := mapError(other); got != other {
		t.Fatalf("expected error passed through unchanged, got %v", got)
	}
	if mapError(nil) != nil {
		t.Fatalf("expected nil")
	}
}
