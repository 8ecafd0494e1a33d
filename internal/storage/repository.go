package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-savings-must-flow/internal/service"
)

// Decoder turns a stored document into an entity, validating required fields.
type Decoder[T any] func([]byte) (*T, error)

// Repository is a typed view over one collection of a document store.
type Repository[T any] struct {
	store      service.DocumentStore
	decode     Decoder[T]
	now        func() time.Time
	collection string
}

// NewRepository builds a repository for collection using decode to read documents.
func NewRepository[T any](store service.DocumentStore, collection string, decode Decoder[T]) *Repository[T] {
	return &Repository[T]{
		store:      store,
		collection: collection,
		decode:     decode,
		now:        time.Now,
	}
}

// Collection returns the collection name.
func (r *Repository[T]) Collection() string {
	return r.collection
}

// Add stores entity and returns its id. An empty id lets the store assign one.
func (r *Repository[T]) Add(ctx context.Context, id string, entity *T) (string, error) {
	if entity == nil {
		return "", fmt.Errorf("%w: %s entity", ErrNilParameter, r.collection)
	}
	doc, err := json.Marshal(entity)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s entity: %w", r.collection, err)
	}
	return r.store.Add(ctx, r.collection, id, doc)
}

// GetByID returns the entity or an error wrapping common.ErrNotFound.
func (r *Repository[T]) GetByID(ctx context.Context, id string) (*T, error) {
	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return nil, err
	}
	return r.decode(doc)
}

// Update applies a partial update and stamps updated_at.
func (r *Repository[T]) Update(ctx context.Context, id string, fields map[string]any) (bool, error) {
	patch := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	if _, ok := patch["updated_at"]; !ok {
		patch["updated_at"] = r.now().UTC()
	}
	return r.store.Update(ctx, r.collection, id, patch)
}

// Query returns the entities matching filters. Documents that fail to
// decode are logged and skipped.
func (r *Repository[T]) Query(ctx context.Context, filters map[string]any, limit int) ([]*T, error) {
	docs, err := r.store.Query(ctx, r.collection, filters, limit)
	if err != nil {
		return nil, err
	}

	entities := make([]*T, 0, len(docs))
	for _, doc := range docs {
		entity, decodeErr := r.decode(doc)
		if decodeErr != nil {
			slog.Warn("skipping undecodable document",
				"collection", r.collection,
				"error", decodeErr)
			continue
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
