package analysis

import (
	"context"
	"log/slog"

	"github.com/Veraticus/the-savings-must-flow/internal/config"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

const (
	microConfidence   = 0.85
	microOptimization = 50
)

// MicroExpenseDetector finds categories where small purchases add up.
type MicroExpenseDetector struct {
	detectorBase
}

// NewMicroExpenseDetector creates the micro-expense detector.
func NewMicroExpenseDetector(txns TransactionStore, patterns PatternStore, cfg config.Thresholds) *MicroExpenseDetector {
	return &MicroExpenseDetector{detectorBase{txns: txns, patterns: patterns, cfg: cfg}}
}

// Name implements Detector.
func (d *MicroExpenseDetector) Name() model.PatternType { return model.PatternMicroExpense }

// RequiresHistory implements Detector.
func (d *MicroExpenseDetector) RequiresHistory() bool { return false }

// Detect flags every small expense and emits one pattern per category whose
// small expenses are numerous enough and sum to at least three times the
// threshold.
func (d *MicroExpenseDetector) Detect(ctx context.Context, in Input) ([]*model.Pattern, error) {
	spent := expenses(in.Current)
	var micro []*model.Transaction
	for _, t := range spent {
		if t.Amount <= d.cfg.MicroExpenseThreshold {
			micro = append(micro, t)
		}
	}
	if err := d.raise(ctx, micro, model.FlagMicroExpense); err != nil {
		return nil, err
	}

	categoryTotals := make(map[string]float64)
	for _, t := range spent {
		categoryTotals[t.Category] += t.Amount
	}
	allSpent := total(spent)

	var patterns []*model.Pattern
	for _, g := range groupBy(micro, byCategory) {
		if len(g.members) < d.cfg.MinTransactionsForPattern {
			continue
		}
		sum := total(g.members)
		if sum < d.cfg.MicroExpenseThreshold*3 {
			continue
		}

		months := monthsSpanned(g.members)
		p := model.NewPattern(in.UserID, model.PatternMicroExpense, g.key, in.Now)
		p.Metrics = model.Metrics{
			Frequency:            float64(len(g.members)) / months,
			TotalAmount:          sum,
			AverageAmount:        sum / float64(len(g.members)),
			PercentageOfCategory: percentage(sum, categoryTotals[g.key]),
			PercentageOfTotal:    percentage(sum, allSpent),
			Confidence:           microConfidence,
		}
		p.SavingsPotential = model.NewSavingsPotential(sum/months*0.5, microOptimization, model.MethodHistorical)
		p.Relate(g.members)

		if err := d.save(ctx, p); err != nil {
			return patterns, err
		}
		slog.Debug("micro-expense pattern", "category", g.key, "count", len(g.members), "total", sum)
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func byCategory(t *model.Transaction) (string, bool) {
	return t.Category, true
}

// monthsSpanned is the group's date range in 30-day months, with the range
// floored to one day.
func monthsSpanned(txns []*model.Transaction) float64 {
	days := spanDays(txns)
	if days < 1 {
		days = 1
	}
	return float64(days) / 30
}
