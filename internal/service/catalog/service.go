// Package catalog exposes CRUD over the release-governance entities.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/james-spears/refactored-computing-machine/internal/domain"
	"github.com/james-spears/refactored-computing-machine/internal/repository"
)

// ErrInvalid marks a malformed or rejected document.
var ErrInvalid = errors.New("invalid document")

// Service manages a single entity kind.
type Service[T domain.Entity] struct {
	store  repository.DocumentStore
	logger *slog.Logger
	kind   domain.Kind
}

// NewService constructs a Service for T.
func NewService[T domain.Entity](store repository.DocumentStore, logger *slog.Logger) *Service[T] {
	var zero T
	return &Service[T]{store: store, logger: logger, kind: zero.Kind()}
}

// Kind returns the collection served.
func (s *Service[T]) Kind() domain.Kind {
	return s.kind
}

// Get loads one entity.
func (s *Service[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	raw, err := s.store.GetDocument(ctx, s.kind, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", s.kind, id, err)
	}
	return out, nil
}

// List returns every entity in insertion order.
func (s *Service[T]) List(ctx context.Context) ([]T, error) {
	docs, err := s.store.ListDocuments(ctx, s.kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, raw := range docs {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.kind, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// Add stores a new entity under a generated id. Any client-supplied id is ignored.
func (s *Service[T]) Add(ctx context.Context, body []byte) (T, error) {
	_, item, err := s.add(ctx, body)
	return item, err
}

func (s *Service[T]) add(ctx context.Context, body []byte) (string, T, error) {
	var zero T
	fields, err := decodeFields(body)
	if err != nil {
		return "", zero, err
	}
	id := uuid.NewString()
	item, err := s.save(ctx, id, fields)
	if err != nil {
		return "", zero, err
	}
	s.logger.Info("catalog entry created", "kind", s.kind, "id", id)
	return id, item, nil
}

// Update merges the supplied top-level fields over the stored document.
func (s *Service[T]) Update(ctx context.Context, id string, patch []byte) (T, error) {
	var zero T
	changes, err := decodeFields(patch)
	if err != nil {
		return zero, err
	}
	raw, err := s.store.GetDocument(ctx, s.kind, id)
	if err != nil {
		return zero, err
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return zero, fmt.Errorf("decode %s/%s: %w", s.kind, id, err)
	}
	for k, v := range changes {
		fields[k] = v
	}
	item, err := s.save(ctx, id, fields)
	if err != nil {
		return item, err
	}
	s.logger.Info("catalog entry updated", "kind", s.kind, "id", id)
	return item, nil
}

// Remove deletes an entity; repository.ErrNotFound when absent.
func (s *Service[T]) Remove(ctx context.Context, id string) error {
	if err := s.store.DeleteDocument(ctx, s.kind, id); err != nil {
		return err
	}
	s.logger.Info("catalog entry removed", "kind", s.kind, "id", id)
	return nil
}

func (s *Service[T]) save(ctx context.Context, id string, fields map[string]json.RawMessage) (T, error) {
	var item T
	idJSON, _ := json.Marshal(id)
	fields["id"] = idJSON
	merged, err := json.Marshal(fields)
	if err != nil {
		return item, err
	}
	if err := json.Unmarshal(merged, &item); err != nil {
		return item, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := item.Validate(); err != nil {
		return item, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	// re-encode so unknown fields are dropped
	body, err := json.Marshal(item)
	if err != nil {
		return item, err
	}
	if err := s.store.PutDocument(ctx, s.kind, id, body); err != nil {
		return item, err
	}
	return item, nil
}

func decodeFields(body []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalid)
	}
	return fields, nil
}
