package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/service"
)

// SQLiteStorage implements service.DocumentStore on a single SQLite table
// using the JSON1 functions for field-path reads and partial writes.
type SQLiteStorage struct {
	db     *sql.DB
	now    func() time.Time
	dbPath string
	retry  service.RetryOptions
}

var _ service.DocumentStore = (*SQLiteStorage)(nil)

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps :memory: databases shared and writes serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
		retry:  common.DefaultRetryOptions(),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Add inserts a document. Duplicate ids within a collection yield common.ErrDuplicateEntry.
func (s *SQLiteStorage) Add(ctx context.Context, collection, id string, doc []byte) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(collection, "collection"); err != nil {
		return "", err
	}
	if err := validateDocument(doc); err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}

	now := s.now().UTC()
	err := s.withRetry(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO documents (collection, id, body, created_at, updated_at)
			VALUES (?, ?, json_set(json(?), '$.id', ?), ?, ?)`,
			collection, id, string(doc), id, now, now)
		return execErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to add %s document: %w", collection, err)
	}

	slog.Debug("added document", "collection", collection, "id", id)
	return id, nil
}

// Update applies a partial update addressed by dotted field paths.
func (s *SQLiteStorage) Update(ctx context.Context, collection, id string, fields map[string]any) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(id, "id"); err != nil {
		return false, err
	}
	if len(fields) == 0 {
		return false, fmt.Errorf("%w: fields", ErrEmptySlice)
	}

	paths := sortedKeys(fields)
	expr := "body"
	args := make([]any, 0, len(paths)*2+4)
	for _, path := range paths {
		if err := validateFieldPath(path); err != nil {
			return false, err
		}
		value, err := json.Marshal(fields[path])
		if err != nil {
			return false, fmt.Errorf("failed to encode field %s: %w", path, err)
		}
		expr = fmt.Sprintf("json_set(%s, ?, json(?))", expr)
		args = append(args, "$."+path, string(value))
	}
	args = append(args, s.now().UTC(), collection, id)

	query := fmt.Sprintf(`UPDATE documents SET body = %s, updated_at = ? WHERE collection = ? AND id = ?`, expr)

	var affected int64
	err := s.withRetry(ctx, func() error {
		result, execErr := s.db.ExecContext(ctx, query, args...)
		if execErr != nil {
			return execErr
		}
		affected, execErr = result.RowsAffected()
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("failed to update %s document %s: %w", collection, id, err)
	}
	return affected > 0, nil
}

// Get returns a single document or common.ErrNotFound.
func (s *SQLiteStorage) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s document %s: %w", collection, id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s document %s: %w", collection, id, err)
	}
	return []byte(body), nil
}

// Query returns documents matching every filter in insertion order.
func (s *SQLiteStorage) Query(ctx context.Context, collection string, filters map[string]any, limit int) ([][]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var where strings.Builder
	where.WriteString("collection = ?")
	args := []any{collection}

	for _, path := range sortedKeys(filters) {
		if err := validateFieldPath(path); err != nil {
			return nil, err
		}
		value, err := filterValue(filters[path])
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", path, err)
		}
		// Paths are validated identifiers, so inlining keeps expression indexes usable.
		column := fmt.Sprintf("json_extract(body, '$.%s')", path)
		if value == nil {
			where.WriteString(" AND " + column + " IS NULL")
			continue
		}
		where.WriteString(" AND " + column + " = ?")
		args = append(args, value)
	}

	query := "SELECT body FROM documents WHERE " + where.String() + " ORDER BY rowid"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Error("failed to close rows", "error", closeErr)
		}
	}()

	var docs [][]byte
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", collection, err)
		}
		docs = append(docs, []byte(body))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s documents: %w", collection, err)
	}
	return docs, nil
}

func (s *SQLiteStorage) withRetry(ctx context.Context, op func() error) error {
	return common.WithRetry(ctx, func() error {
		return classifyError(op())
	}, s.retry)
}

// classifyError maps driver errors onto the common sentinels.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return fmt.Errorf("%w: %v", common.ErrDuplicateEntry, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", common.ErrStoreBusy, err)
		case sqlite3.ErrCorrupt:
			return fmt.Errorf("%w: %v", common.ErrDatabaseCorrupted, err)
		}
	}
	return err
}

// filterValue reduces a filter to the scalar json_extract returns for it.
// Named string types and times go through their JSON form; booleans become
// the integers SQLite stores them as.
func filterValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var scalar any
	if err := json.Unmarshal(raw, &scalar); err != nil {
		return nil, err
	}
	switch x := scalar.(type) {
	case nil, string, float64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return nil, fmt.Errorf("%w: only scalar values can be matched", ErrInvalidFilter)
	}
}

func validateDocument(doc []byte) error {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return ErrInvalidDocumentBody
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
