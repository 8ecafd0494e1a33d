// Package testutil provides test utilities for the savings engine: migrated
// in-memory stores, typed repositories and fluent transaction builders.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/the-savings-must-flow/internal/service"
	"github.com/Veraticus/the-savings-must-flow/internal/storage"
)

// Repos bundles the typed repositories over one document store.
type Repos struct {
	Store           service.DocumentStore
	Transactions    *storage.TransactionRepository
	Patterns        *storage.PatternRepository
	Recommendations *storage.RecommendationRepository
}

// NewRepos builds every repository over store.
func NewRepos(store service.DocumentStore) Repos {
	return Repos{
		Store:           store,
		Transactions:    storage.NewTransactionRepository(store),
		Patterns:        storage.NewPatternRepository(store),
		Recommendations: storage.NewRecommendationRepository(store),
	}
}

// SetupTestStore creates a migrated in-memory SQLite store closed on cleanup.
func SetupTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return store
}

// SetupTestRepos returns repositories over a fresh SQLite store.
func SetupTestRepos(t *testing.T) Repos {
	t.Helper()
	return NewRepos(SetupTestStore(t))
}

// SetupMemoryRepos returns repositories over a fresh in-memory document store.
func SetupMemoryRepos(t *testing.T) (Repos, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	return NewRepos(store), store
}
