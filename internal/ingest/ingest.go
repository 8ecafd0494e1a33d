// Package ingest reads transaction files into model transactions ready to be
// stored for analysis.
package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

// ErrUnsupportedFormat is returned for files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// UncategorizedCategory is assigned when a source carries no category.
const UncategorizedCategory = "uncategorized"

// Parser turns a transaction file into transactions for one user.
type Parser interface {
	ParseFile(ctx context.Context, reader io.Reader) ([]*model.Transaction, error)
}

// ParserFor picks a parser from the file extension.
func ParserFor(path, userID string) (Parser, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		return NewOFXParser(userID), nil
	case ".yaml", ".yml", ".json":
		return NewRecordParser(userID), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadFile parses the file at path for userID.
func ReadFile(ctx context.Context, path, userID string) ([]*model.Transaction, error) {
	parser, err := ParserFor(path, userID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	txns, err := parser.ParseFile(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return txns, nil
}

// transactionID derives a stable id so re-importing a file is a no-op.
func transactionID(prefix string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return fmt.Sprintf("%s-%x", prefix, sum[:12])
}

// newTransaction builds a transaction from a signed amount. Negative amounts
// are expenses.
func newTransaction(id, userID string, signed float64, txn model.Transaction) *model.Transaction {
	amount := signed
	if amount < 0 {
		amount = -amount
	}
	category := strings.TrimSpace(txn.Category)
	if category == "" {
		category = UncategorizedCategory
	}

	t := model.NewTransaction(userID, model.RoundCents(amount), txn.Date, category, strings.TrimSpace(txn.Description))
	t.ID = id
	t.IsExpense = signed < 0
	return t
}
