// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"
)

// Collection names used by the document store.
const (
	CollectionTransactions    = "transactions"
	CollectionPatterns        = "patterns"
	CollectionRecommendations = "recommendations"
)

// DocumentStore is the persistence collaborator. Documents are JSON objects
// grouped in collections, matched by exact-value filters and changed by
// partial updates addressed with dotted field paths such as
// "user_interaction.seen".
type DocumentStore interface {
	// Add stores doc under id. An empty id asks the store to assign one.
	// The returned id is also written into the document's "id" field.
	Add(ctx context.Context, collection, id string, doc []byte) (string, error)
	// Update sets each field path to its value. It reports false when no
	// document with that id exists.
	Update(ctx context.Context, collection, id string, fields map[string]any) (bool, error)
	// Get returns the document or common.ErrNotFound.
	Get(ctx context.Context, collection, id string) ([]byte, error)
	// Query returns documents whose field paths equal every filter value, in
	// insertion order. A limit of zero or less means no limit.
	Query(ctx context.Context, collection string, filters map[string]any, limit int) ([][]byte, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Status is the discriminator on every engine entry point result.
type Status string

// Result statuses.
const (
	StatusSuccess    Status = "success"
	StatusNoData     Status = "no_data"
	StatusNoPatterns Status = "no_patterns"
	StatusError      Status = "error"
)

// RetryOptions configures retry behavior.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
