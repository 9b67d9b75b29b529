package catalog

import (
	"context"
	"log/slog"

	"github.com/james-spears/refactored-computing-machine/internal/domain"
	"github.com/james-spears/refactored-computing-machine/internal/repository"
)

// Collection is the kind-erased view of a Service used by transports.
type Collection interface {
	Kind() domain.Kind
	GetEntry(ctx context.Context, id string) (any, error)
	ListEntries(ctx context.Context) (any, error)
	AddEntry(ctx context.Context, body []byte) (string, error)
	UpdateEntry(ctx context.Context, id string, patch []byte) (any, error)
	Remove(ctx context.Context, id string) error
}

// GetEntry implements Collection.
func (s *Service[T]) GetEntry(ctx context.Context, id string) (any, error) {
	return s.Get(ctx, id)
}

// ListEntries implements Collection.
func (s *Service[T]) ListEntries(ctx context.Context) (any, error) {
	return s.List(ctx)
}

// AddEntry implements Collection and returns the new id.
func (s *Service[T]) AddEntry(ctx context.Context, body []byte) (string, error) {
	id, _, err := s.add(ctx, body)
	return id, err
}

// UpdateEntry implements Collection.
func (s *Service[T]) UpdateEntry(ctx context.Context, id string, patch []byte) (any, error) {
	return s.Update(ctx, id, patch)
}

// Catalog indexes a Collection per kind.
type Catalog struct {
	collections map[domain.Kind]Collection
}

// New wires a Service for every governance kind on the given store.
func New(store repository.DocumentStore, logger *slog.Logger) *Catalog {
	c := &Catalog{collections: make(map[domain.Kind]Collection)}
	for _, col := range []Collection{
		NewService[domain.Team](store, logger),
		NewService[domain.Permission](store, logger),
		NewService[domain.Asset](store, logger),
		NewService[domain.Artifact](store, logger),
		NewService[domain.Project](store, logger),
		NewService[domain.Release](store, logger),
		NewService[domain.Gate](store, logger),
		NewService[domain.Criterion](store, logger),
	} {
		c.collections[col.Kind()] = col
	}
	return c
}

// Collection returns the collection for kind.
func (c *Catalog) Collection(kind domain.Kind) (Collection, bool) {
	col, ok := c.collections[kind]
	return col, ok
}
