package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/storage"
)

// TransactionBuilder builds deterministic transaction fixtures for one user.
//
// Example:
//
//	txns := testutil.NewTransactionBuilder("user-1", start).
//		Series(16, 2*24*time.Hour, 2000, "snacks", "Kiosk").
//		Build()
type TransactionBuilder struct {
	base   time.Time
	userID string
	txns   []*model.Transaction
}

// NewTransactionBuilder starts a builder whose offsets are relative to base.
func NewTransactionBuilder(userID string, base time.Time) *TransactionBuilder {
	return &TransactionBuilder{userID: userID, base: base}
}

// At adds an expense at an absolute date.
func (b *TransactionBuilder) At(date time.Time, amount float64, category, description string) *TransactionBuilder {
	txn := model.NewTransaction(b.userID, amount, date, category, description)
	txn.ID = fmt.Sprintf("%s-txn-%03d", b.userID, len(b.txns)+1)
	b.txns = append(b.txns, txn)
	return b
}

// Add adds an expense offset from the base date.
func (b *TransactionBuilder) Add(offset time.Duration, amount float64, category, description string) *TransactionBuilder {
	return b.At(b.base.Add(offset), amount, category, description)
}

// Series adds n equal expenses starting at the base date, interval apart.
func (b *TransactionBuilder) Series(n int, interval time.Duration, amount float64, category, description string) *TransactionBuilder {
	for i := 0; i < n; i++ {
		b.Add(time.Duration(i)*interval, amount, category, description)
	}
	return b
}

// Income marks the most recently added transaction as income.
func (b *TransactionBuilder) Income() *TransactionBuilder {
	if len(b.txns) > 0 {
		b.txns[len(b.txns)-1].IsExpense = false
	}
	return b
}

// Build returns the transactions built so far.
func (b *TransactionBuilder) Build() []*model.Transaction {
	return b.txns
}

// Save stores the transactions through repo and returns them.
func (b *TransactionBuilder) Save(t *testing.T, repo *storage.TransactionRepository) []*model.Transaction {
	t.Helper()
	if _, err := repo.SaveTransactions(context.Background(), b.txns); err != nil {
		t.Fatalf("failed to save transactions: %v", err)
	}
	return b.txns
}

// Days is shorthand for n whole days.
func Days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
