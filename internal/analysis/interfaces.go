package analysis

import (
	"context"
	"time"

	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

// TransactionStore is the transaction persistence the analyzer needs.
type TransactionStore interface {
	// GetTransactionsToAnalyze returns transactions never analyzed or analyzed more than maxAge ago.
	GetTransactionsToAnalyze(ctx context.Context, userID string, now time.Time, maxAge time.Duration) ([]*model.Transaction, error)
	// GetByUserIDAndDateRange returns transactions dated within [start, end].
	GetByUserIDAndDateRange(ctx context.Context, userID string, start, end time.Time) ([]*model.Transaction, error)
	// UpdateMetadata sets fields under metadata.
	UpdateMetadata(ctx context.Context, id string, fields map[string]any) (bool, error)
	// RaiseFlags sets the named analysis flags to true.
	RaiseFlags(ctx context.Context, id string, flags ...string) (bool, error)
	// MarkAnalyzed stamps lastAnalyzedAt.
	MarkAnalyzed(ctx context.Context, id string, now time.Time) (bool, error)
}

// PatternStore persists detected patterns.
type PatternStore interface {
	// Save stores the pattern and sets its id.
	Save(ctx context.Context, p *model.Pattern) (string, error)
}
