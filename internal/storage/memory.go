package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/service"
)

// MemoryStore is an in-memory service.DocumentStore for tests. It follows the
// same matching and field-path rules as SQLiteStorage.
type MemoryStore struct {
	collections map[string]*memoryCollection
	failWhen    func(op, collection string) error
	calls       []StoreCall
	mu          sync.Mutex
}

// StoreCall records one operation executed against a MemoryStore.
type StoreCall struct {
	Fields     map[string]any
	Op         string
	Collection string
	ID         string
}

type memoryCollection struct {
	docs  map[string]map[string]any
	order []string
}

var _ service.DocumentStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// FailWhen installs a hook consulted before every operation; a non-nil
// return is reported as that operation's error. Op is one of "add",
// "update", "get" or "query".
func (m *MemoryStore) FailWhen(hook func(op, collection string) error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWhen = hook
	return m
}

// Calls returns the operations executed so far.
func (m *MemoryStore) Calls() []StoreCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StoreCall(nil), m.calls...)
}

// Count returns the number of documents in a collection.
func (m *MemoryStore) Count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[collection]; ok {
		return len(c.order)
	}
	return 0
}

func (m *MemoryStore) before(op, collection, id string, fields map[string]any) error {
	m.calls = append(m.calls, StoreCall{Op: op, Collection: collection, ID: id, Fields: fields})
	if m.failWhen != nil {
		return m.failWhen(op, collection)
	}
	return nil
}

func (m *MemoryStore) collection(name string) *memoryCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memoryCollection{docs: make(map[string]map[string]any)}
		m.collections[name] = c
	}
	return c
}

// Add stores a copy of doc.
func (m *MemoryStore) Add(ctx context.Context, collection, id string, doc []byte) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.before("add", collection, id, nil); err != nil {
		return "", err
	}
	if err := validateDocument(doc); err != nil {
		return "", err
	}

	var body map[string]any
	if err := json.Unmarshal(doc, &body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocumentBody, err)
	}
	if id == "" {
		id = uuid.NewString()
	}

	c := m.collection(collection)
	if _, exists := c.docs[id]; exists {
		return "", fmt.Errorf("failed to add %s document: %w", collection, common.ErrDuplicateEntry)
	}
	body["id"] = id
	c.docs[id] = body
	c.order = append(c.order, id)
	return id, nil
}

// Update sets each dotted path, creating intermediate objects as needed.
func (m *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.before("update", collection, id, fields); err != nil {
		return false, err
	}
	if len(fields) == 0 {
		return false, fmt.Errorf("%w: fields", ErrEmptySlice)
	}

	values := make(map[string]any, len(fields))
	for path, v := range fields {
		if err := validateFieldPath(path); err != nil {
			return false, err
		}
		normalized, err := normalizeJSON(v)
		if err != nil {
			return false, fmt.Errorf("failed to encode field %s: %w", path, err)
		}
		values[path] = normalized
	}

	body, ok := m.collection(collection).docs[id]
	if !ok {
		return false, nil
	}
	for _, path := range sortedKeys(values) {
		setPath(body, strings.Split(path, "."), values[path])
	}
	return true, nil
}

// Get returns the document or common.ErrNotFound.
func (m *MemoryStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.before("get", collection, id, nil); err != nil {
		return nil, err
	}
	body, ok := m.collection(collection).docs[id]
	if !ok {
		return nil, fmt.Errorf("%s document %s: %w", collection, id, common.ErrNotFound)
	}
	return json.Marshal(body)
}

// Query returns matching documents in insertion order.
func (m *MemoryStore) Query(ctx context.Context, collection string, filters map[string]any, limit int) ([][]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.before("query", collection, "", filters); err != nil {
		return nil, err
	}

	wanted := make(map[string]any, len(filters))
	for path, v := range filters {
		if err := validateFieldPath(path); err != nil {
			return nil, err
		}
		normalized, err := normalizeJSON(v)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", path, err)
		}
		switch normalized.(type) {
		case nil, string, float64, bool:
		default:
			return nil, fmt.Errorf("filter %s: %w: only scalar values can be matched", path, ErrInvalidFilter)
		}
		wanted[path] = normalized
	}

	c := m.collection(collection)
	var docs [][]byte
	for _, id := range c.order {
		body := c.docs[id]
		if !matches(body, wanted) {
			continue
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, data)
		if limit > 0 && len(docs) == limit {
			break
		}
	}
	return docs, nil
}

// Migrate is a no-op.
func (m *MemoryStore) Migrate(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func matches(body map[string]any, wanted map[string]any) bool {
	for path, want := range wanted {
		got, _ := getPath(body, strings.Split(path, "."))
		if got != want {
			return false
		}
	}
	return true
}

func getPath(body map[string]any, parts []string) (any, bool) {
	var cur any = body
	for _, part := range parts {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(body map[string]any, parts []string, value any) {
	obj := body
	for _, part := range parts[:len(parts)-1] {
		next, ok := obj[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			obj[part] = next
		}
		obj = next
	}
	obj[parts[len(parts)-1]] = value
}

// normalizeJSON round-trips v so stored values compare the way decoded documents do.
func normalizeJSON(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
