package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/james-spears/refactored-computing-machine/internal/domain"
	"github.com/james-spears/refactored-computing-machine/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.AccountStore  = (*Repository)(nil)
	_ repository.DocumentStore = (*Repository)(nil)
)

// Create inserts a user.
func (r *Repository) Create(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return mapError(err)
}

// FindByEmail fetches a user by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, created_at, updated_at FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// FindByID retrieves a user by identifier.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, created_at, updated_at FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// UpdatePassword replaces the stored password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id string, hash []byte, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, hash, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// PutDocument upserts a catalog document.
func (r *Repository) PutDocument(ctx context.Context, kind domain.Kind, id string, body []byte) error {
	const query = `INSERT INTO documents (kind, id, body, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (kind, id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`
	_, err := r.pool.Exec(ctx, query, string(kind), id, body)
	return err
}

// GetDocument loads a single document.
func (r *Repository) GetDocument(ctx context.Context, kind domain.Kind, id string) ([]byte, error) {
	const query = `SELECT body FROM documents WHERE kind = $1 AND id = $2`
	var body []byte
	if err := r.pool.QueryRow(ctx, query, string(kind), id).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return body, nil
}

// ListDocuments returns every document of a kind, oldest first.
func (r *Repository) ListDocuments(ctx context.Context, kind domain.Kind) ([][]byte, error) {
	const query = `SELECT body FROM documents WHERE kind = $1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([][]byte, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		docs = append(docs, body)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document.
func (r *Repository) DeleteDocument(ctx context.Context, kind domain.Kind, id string) error {
	const query = `DELETE FROM documents WHERE kind = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, query, string(kind), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return repository.ErrConflict
	}
	return err
}
