// Package memory implements the repository interfaces in process memory.
// It backs tests and single-node development runs (STORAGE_DRIVER=memory).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/james-spears/refactored-computing-machine/internal/domain"
	"github.com/james-spears/refactored-computing-machine/internal/repository"
)

// Repository is a mutex-guarded in-memory store.
type Repository struct {
	mu      sync.RWMutex
	users   map[string]domain.User
	byEmail map[string]string
	docs    map[domain.Kind]map[string]document
	seq     uint64
}

type document struct {
	body []byte
	seq  uint64
}

// ensure Repository satisfies interfaces.
var (
	_ repository.AccountStore  = (*Repository)(nil)
	_ repository.DocumentStore = (*Repository)(nil)
)

// New constructs an empty Repository.
func New() *Repository {
	return &Repository{
		users:   make(map[string]domain.User),
		byEmail: make(map[string]string),
		docs:    make(map[domain.Kind]map[string]document),
	}
}

// Create inserts a user, rejecting duplicate ids and emails.
func (r *Repository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return repository.ErrConflict
	}
	if _, ok := r.byEmail[user.Email]; ok {
		return repository.ErrConflict
	}
	r.users[user.ID] = cloneUser(*user)
	r.byEmail[user.Email] = user.ID
	return nil
}

// FindByEmail fetches a user by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := cloneUser(r.users[id])
	return &u, nil
}

// FindByID retrieves a user by identifier.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u = cloneUser(u)
	return &u, nil
}

// UpdatePassword replaces the stored hash.
func (r *Repository) UpdatePassword(ctx context.Context, id string, hash []byte, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = append([]byte(nil), hash...)
	u.UpdatedAt = updatedAt
	r.users[id] = u
	return nil
}

// PutDocument inserts or replaces a document.
func (r *Repository) PutDocument(ctx context.Context, kind domain.Kind, id string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	coll, ok := r.docs[kind]
	if !ok {
		coll = make(map[string]document)
		r.docs[kind] = coll
	}
	seq := coll[id].seq
	if seq == 0 {
		r.seq++
		seq = r.seq
	}
	coll[id] = document{body: append([]byte(nil), body...), seq: seq}
	return nil
}

// GetDocument returns a copy of the stored document.
func (r *Repository) GetDocument(ctx context.Context, kind domain.Kind, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[kind][id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]byte(nil), doc.body...), nil
}

// ListDocuments returns documents of a kind in insertion order.
func (r *Repository) ListDocuments(ctx context.Context, kind domain.Kind) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := make([]document, 0, len(r.docs[kind]))
	for _, doc := range r.docs[kind] {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })
	out := make([][]byte, 0, len(docs))
	for _, doc := range docs {
		out = append(out, append([]byte(nil), doc.body...))
	}
	return out, nil
}

// DeleteDocument removes a document.
func (r *Repository) DeleteDocument(ctx context.Context, kind domain.Kind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[kind][id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.docs[kind], id)
	return nil
}

func cloneUser(u domain.User) domain.User {
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return u
}
