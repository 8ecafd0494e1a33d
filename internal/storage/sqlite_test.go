package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/service"
)

// createTestStorage opens a migrated file-backed SQLite store.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// eachStore runs fn against both document store implementations.
func eachStore(t *testing.T, fn func(t *testing.T, store service.DocumentStore)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) { fn(t, createTestStorage(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
}

func decodeMap(t *testing.T, doc []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(doc, &m))
	return m
}

func TestDocumentStore_AddAndGet(t *testing.T) {
	eachStore(t, func(t *testing.T, store service.DocumentStore) {
		ctx := context.Background()

		id, err := store.Add(ctx, "things", "", []byte(`{"name":"first","id":""}`))
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		doc, err := store.Get(ctx, "things", id)
		require.NoError(t, err)
		m := decodeMap(t, doc)
		assert.Equal(t, id, m["id"])
		assert.Equal(t, "first", m["name"])

		_, err = store.Get(ctx, "things", "missing")
		assert.ErrorIs(t, err, common.ErrNotFound)

		_, err = store.Get(ctx, "other", id)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestDocumentStore_AddRejects(t *testing.T) {
	eachStore(t, func(t *testing.T, store service.DocumentStore) {
		ctx := context.Background()

		_, err := store.Add(ctx, "things", "a", []byte(`{"n":1}`))
		require.NoError(t, err)

		_, err = store.Add(ctx, "things", "a", []byte(`{"n":2}`))
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)

		_, err = store.Add(ctx, "things", "b", []byte(`[1,2]`))
		assert.ErrorIs(t, err, ErrInvalidDocumentBody)

		_, err = store.Add(ctx, "things", "c", []byte(`{broken`))
		assert.ErrorIs(t, err, ErrInvalidDocumentBody)
	})
}

func TestDocumentStore_UpdateFieldPaths(t *testing.T) {
	eachStore(t, func(t *testing.T, store service.DocumentStore) {
		ctx := context.Background()
		id, err := store.Add(ctx, "recs", "r1", []byte(`{"status":"pending","show_count":0,"user_interaction":{"seen":false,"feedback":{}}}`))
		require.NoError(t, err)

		ok, err := store.Update(ctx, "recs", id, map[string]any{
			"status":                           "shown",
			"show_count":                       1,
			"user_interaction.seen":            true,
			"user_interaction.feedback.rating": 4,
			"user_interaction.dismissReason":   nil,
		})
		require.NoError(t, err)
		assert.True(t, ok)

		doc, err := store.Get(ctx, "recs", id)
		require.NoError(t, err)
		m := decodeMap(t, doc)
		assert.Equal(t, "shown", m["status"])
		assert.InDelta(t, 1, m["show_count"], 1e-9)

		ui := m["user_interaction"].(map[string]any)
		assert.Equal(t, true, ui["seen"])
		assert.Contains(t, ui, "dismissReason")
		assert.Nil(t, ui["dismissReason"])
		assert.InDelta(t, 4, ui["feedback"].(map[string]any)["rating"], 1e-9)

		ok, err = store.Update(ctx, "recs", "missing", map[string]any{"status": "shown"})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestDocumentStore_UpdateRejectsBadPaths(t *testing.T) {
	eachStore(t, func(t *testing.T, store service.DocumentStore) {
		ctx := context.Background()
		_, err := store.Add(ctx, "things", "a", []byte(`{}`))
		require.NoError(t, err)

		for _, path := range []string{"", "a..b", "$.a", "a'); DROP TABLE documents; --", "a.b[0]"} {
			_, err := store.Update(ctx, "things", "a", map[string]any{path: 1})
			assert.ErrorIs(t, err, ErrInvalidFieldPath, path)
		}
	})
}

func TestDocumentStore_Query(t *testing.T) {
	eachStore(t, func(t *testing.T, store service.DocumentStore) {
		ctx := context.Background()
		docs := []string{
			`{"user_id":"u1","status":"pending","flags":{"micro":true},"amount":5}`,
			`{"user_id":"u1","status":"shown","flags":{"micro":false},"amount":5.5}`,
			`{"user_id":"u2","status":"pending","flags":{"micro":true},"amount":5}`,
			`{"user_id":"u1","status":"pending","flags":{"micro":true},"amount":7,"group":null}`,
		}
		for _, d := range docs {
			_, err := store.Add(ctx, "things", "", []byte(d))
			require.NoError(t, err)
		}

		tests := []struct {
			filters map[string]any
			name    string
			limit   int
			want    int
		}{
			{name: "no filters", filters: nil, want: 4},
			{name: "by user", filters: map[string]any{"user_id": "u1"}, want: 3},
			{name: "user and status", filters: map[string]any{"user_id": "u1", "status": "pending"}, want: 2},
			{name: "nested bool", filters: map[string]any{"flags.micro": true}, want: 3},
			{name: "nested false", filters: map[string]any{"flags.micro": false}, want: 1},
			{name: "integer number", filters: map[string]any{"amount": 5}, want: 2},
			{name: "fractional number", filters: map[string]any{"amount": 5.5}, want: 1},
			{name: "null matches missing", filters: map[string]any{"group": nil}, want: 4},
			{name: "limit", filters: map[string]any{"user_id": "u1"}, limit: 1, want: 1},
			{name: "no match", filters: map[string]any{"user_id": "u3"}, want: 0},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := store.Query(ctx, "things", tt.filters, tt.limit)
				require.NoError(t, err)
				assert.Len(t, got, tt.want)
			})
		}

		_, err := store.Query(ctx, "things", map[string]any{"flags": map[string]any{"micro": true}}, 0)
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})
}

func TestDocumentStore_QueryKeepsInsertionOrder(t *testing.T) {
	eachStore(t, func(t *testing.T, store service.DocumentStore) {
		ctx := context.Background()
		for _, id := range []string{"c", "a", "b"} {
			_, err := store.Add(ctx, "things", id, []byte(`{"user_id":"u1"}`))
			require.NoError(t, err)
		}

		docs, err := store.Query(ctx, "things", map[string]any{"user_id": "u1"}, 0)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		ids := make([]string, 0, len(docs))
		for _, d := range docs {
			ids = append(ids, decodeMap(t, d)["id"].(string))
		}
		assert.Equal(t, []string{"c", "a", "b"}, ids)
	})
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Re-running is a no-op.
	require.NoError(t, store.Migrate(ctx))

	var count int
	err = store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'index' AND name IN ('idx_documents_user', 'idx_documents_user_status', 'idx_documents_pattern')
	`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestNewSQLiteStorage_InvalidPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestMemoryStore_FailWhen(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore().FailWhen(func(op, collection string) error {
		if op == "update" && collection == service.CollectionPatterns {
			return common.ErrStoreBusy
		}
		return nil
	})

	id, err := store.Add(ctx, service.CollectionPatterns, "", []byte(`{}`))
	require.NoError(t, err)

	_, err = store.Update(ctx, service.CollectionPatterns, id, map[string]any{"status": "resolved"})
	assert.ErrorIs(t, err, common.ErrStoreBusy)

	calls := store.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "update", calls[1].Op)
	assert.Equal(t, 1, store.Count(service.CollectionPatterns))
}
