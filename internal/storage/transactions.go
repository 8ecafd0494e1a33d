package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/service"
)

// TransactionRepository stores transactions.
type TransactionRepository struct {
	*Repository[model.Transaction]
}

// NewTransactionRepository builds the transactions repository.
func NewTransactionRepository(store service.DocumentStore) *TransactionRepository {
	return &TransactionRepository{
		Repository: NewRepository(store, service.CollectionTransactions, model.DecodeTransaction),
	}
}

// Save stores a transaction and sets its id.
func (r *TransactionRepository) Save(ctx context.Context, txn *model.Transaction) (string, error) {
	if txn == nil {
		return "", fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if err := validateString(txn.UserID, "user_id"); err != nil {
		return "", err
	}
	if txn.Amount <= 0 {
		return "", fmt.Errorf("%w: transaction %s amount %v is not positive", model.ErrInvalidDocument, txn.ID, txn.Amount)
	}
	id, err := r.Add(ctx, txn.ID, txn)
	if err != nil {
		return "", err
	}
	txn.ID = id
	return id, nil
}

// SaveTransactions stores a batch, skipping ids that already exist and
// transactions without a positive amount. It returns how many were newly stored.
func (r *TransactionRepository) SaveTransactions(ctx context.Context, txns []*model.Transaction) (int, error) {
	saved := 0
	for _, txn := range txns {
		_, err := r.Save(ctx, txn)
		if errors.Is(err, common.ErrDuplicateEntry) {
			slog.Debug("skipping duplicate transaction", "id", txn.ID)
			continue
		}
		if errors.Is(err, model.ErrInvalidDocument) {
			slog.Warn("skipping invalid transaction", "id", txn.ID, "error", err)
			continue
		}
		if err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}

// GetByUserID returns every transaction of a user ordered by date.
func (r *TransactionRepository) GetByUserID(ctx context.Context, userID string) ([]*model.Transaction, error) {
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	txns, err := r.Query(ctx, map[string]any{"user_id": userID}, 0)
	if err != nil {
		return nil, err
	}
	sortByDate(txns)
	return txns, nil
}

// GetByUserIDAndDateRange returns a user's transactions dated within
// [start, end], ordered by date.
func (r *TransactionRepository) GetByUserIDAndDateRange(ctx context.Context, userID string, start, end time.Time) ([]*model.Transaction, error) {
	if err := validateDateRange(start, end); err != nil {
		return nil, err
	}
	all, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	inRange := make([]*model.Transaction, 0, len(all))
	for _, txn := range all {
		if txn.Date.Before(start) || txn.Date.After(end) {
			continue
		}
		inRange = append(inRange, txn)
	}
	return inRange, nil
}

// GetTransactionsToAnalyze returns a user's transactions that were never
// analyzed or were last analyzed more than maxAge before now.
func (r *TransactionRepository) GetTransactionsToAnalyze(ctx context.Context, userID string, now time.Time, maxAge time.Duration) ([]*model.Transaction, error) {
	all, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	stale := make([]*model.Transaction, 0, len(all))
	for _, txn := range all {
		if txn.NeedsAnalysis(now, maxAge) {
			stale = append(stale, txn)
		}
	}
	return stale, nil
}

// UpdateMetadata sets fields under metadata, e.g. "similarityHash".
func (r *TransactionRepository) UpdateMetadata(ctx context.Context, id string, fields map[string]any) (bool, error) {
	return r.Update(ctx, id, prefixed("metadata", fields))
}

// UpdateAnalysisFlags sets fields under analysis_flags, e.g. "isMicroExpense".
func (r *TransactionRepository) UpdateAnalysisFlags(ctx context.Context, id string, fields map[string]any) (bool, error) {
	return r.Update(ctx, id, prefixed("analysis_flags", fields))
}

// RaiseFlags sets each named analysis flag to true.
func (r *TransactionRepository) RaiseFlags(ctx context.Context, id string, flags ...string) (bool, error) {
	fields := make(map[string]any, len(flags))
	for _, flag := range flags {
		fields[flag] = true
	}
	return r.UpdateAnalysisFlags(ctx, id, fields)
}

// MarkAnalyzed stamps lastAnalyzedAt.
func (r *TransactionRepository) MarkAnalyzed(ctx context.Context, id string, now time.Time) (bool, error) {
	return r.UpdateAnalysisFlags(ctx, id, map[string]any{"lastAnalyzedAt": now.UTC()})
}

func prefixed(prefix string, fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[prefix+"."+k] = v
	}
	return out
}

func sortByDate(txns []*model.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].Date.Before(txns[j].Date)
	})
}
