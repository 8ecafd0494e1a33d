package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/the-savings-must-flow/internal/config"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

// Input is what every detector sees during one analysis pass.
type Input struct {
	Now        time.Time
	UserID     string
	Current    []*model.Transaction // enriched, due for analysis
	Historical []*model.Transaction // trailing window, may overlap Current
}

// Detector finds one kind of spending pattern. Detect persists the patterns
// it creates and returns them with ids assigned.
type Detector interface {
	Name() model.PatternType
	// RequiresHistory reports whether the detector is skipped when the
	// historical window is too thin.
	RequiresHistory() bool
	Detect(ctx context.Context, in Input) ([]*model.Pattern, error)
}

// detectorBase carries what all detectors share.
type detectorBase struct {
	txns     TransactionStore
	patterns PatternStore
	cfg      config.Thresholds
}

// save persists p and returns it with its id.
func (b detectorBase) save(ctx context.Context, p *model.Pattern) error {
	if _, err := b.patterns.Save(ctx, p); err != nil {
		return fmt.Errorf("failed to save %s pattern for %s: %w", p.Type, p.Category, err)
	}
	return nil
}

// raise sets flag on each transaction in memory and in storage. Flags are
// never lowered.
func (b detectorBase) raise(ctx context.Context, txns []*model.Transaction, flag string) error {
	for _, txn := range txns {
		txn.AnalysisFlags.Set(flag)
		if _, err := b.txns.RaiseFlags(ctx, txn.ID, flag); err != nil {
			return fmt.Errorf("failed to raise %s on transaction %s: %w", flag, txn.ID, err)
		}
	}
	return nil
}

type group struct {
	key     string
	members []*model.Transaction
}

// groupBy buckets transactions by key, keeping first-seen key order so
// pattern creation is deterministic. Transactions for which key reports
// false are left out.
func groupBy(txns []*model.Transaction, key func(*model.Transaction) (string, bool)) []*group {
	index := make(map[string]*group)
	var groups []*group
	for _, txn := range txns {
		k, ok := key(txn)
		if !ok {
			continue
		}
		g, exists := index[k]
		if !exists {
			g = &group{key: k}
			index[k] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, txn)
	}
	return groups
}

func expenses(txns []*model.Transaction) []*model.Transaction {
	out := make([]*model.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.IsExpense {
			out = append(out, t)
		}
	}
	return out
}

func total(txns []*model.Transaction) float64 {
	var sum float64
	for _, t := range txns {
		sum += t.Amount
	}
	return sum
}

// percentage returns part as a percentage of whole, or zero for an empty whole.
func percentage(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

// mergeByID returns current followed by the historical transactions not in current.
func mergeByID(current, historical []*model.Transaction) []*model.Transaction {
	seen := make(map[string]struct{}, len(current))
	merged := make([]*model.Transaction, 0, len(current)+len(historical))
	for _, t := range current {
		seen[t.ID] = struct{}{}
		merged = append(merged, t)
	}
	for _, t := range historical {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		merged = append(merged, t)
	}
	return merged
}
