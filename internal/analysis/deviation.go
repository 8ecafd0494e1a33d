package analysis

import (
	"context"
	"log/slog"

	"github.com/Veraticus/the-savings-must-flow/internal/config"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

const (
	deviationConfidence = 0.8
	// minBaselineDays is the history a category needs before it has a baseline.
	minBaselineDays = 7
	// minCurrentTransactions is the smallest current group worth projecting.
	minCurrentTransactions = 2
)

// CategoryDeviationDetector finds categories whose current spending, projected
// to a month, runs well above their historical monthly average.
type CategoryDeviationDetector struct {
	detectorBase
}

// NewCategoryDeviationDetector creates the category deviation detector.
func NewCategoryDeviationDetector(txns TransactionStore, patterns PatternStore, cfg config.Thresholds) *CategoryDeviationDetector {
	return &CategoryDeviationDetector{detectorBase{txns: txns, patterns: patterns, cfg: cfg}}
}

// Name implements Detector.
func (d *CategoryDeviationDetector) Name() model.PatternType { return model.PatternCategoryDeviation }

// RequiresHistory implements Detector.
func (d *CategoryDeviationDetector) RequiresHistory() bool { return true }

type baseline struct {
	monthly  float64
	spanDays int
}

// Detect compares each current category against its baseline. The baseline
// is built from historical expenses not in the current batch.
func (d *CategoryDeviationDetector) Detect(ctx context.Context, in Input) ([]*model.Pattern, error) {
	current := expenses(in.Current)
	inCurrent := make(map[string]struct{}, len(current))
	for _, t := range in.Current {
		inCurrent[t.ID] = struct{}{}
	}

	var past []*model.Transaction
	for _, t := range expenses(in.Historical) {
		if _, ok := inCurrent[t.ID]; !ok {
			past = append(past, t)
		}
	}

	baselines := make(map[string]baseline)
	for _, g := range groupBy(past, byCategory) {
		span := spanDays(g.members)
		if span < minBaselineDays {
			continue
		}
		months := float64(span) / 30
		if months < 1 {
			months = 1
		}
		baselines[g.key] = baseline{monthly: total(g.members) / months, spanDays: span}
	}

	month := labels.MonthLabel(in.Now)
	var patterns []*model.Pattern
	for _, g := range groupBy(current, byCategory) {
		base, ok := baselines[g.key]
		if !ok || len(g.members) < minCurrentTransactions || base.monthly <= 0 {
			continue
		}

		sum := total(g.members)
		span := spanDays(g.members)
		if span < 1 {
			span = 1
		}
		projected := sum * 30 / float64(span)
		ratio := projected / base.monthly
		if ratio <= d.cfg.HighDeviationFactor {
			continue
		}

		if err := d.raise(ctx, g.members, model.FlagHighDeviation); err != nil {
			return patterns, err
		}

		savings := projected - base.monthly
		p := model.NewPattern(in.UserID, model.PatternCategoryDeviation, g.key, in.Now)
		p.TemporalData = model.TemporalData{
			"month":              month,
			"currentTotal":       sum,
			"currentProjected":   projected,
			"standardAverage":    base.monthly,
			"percentageIncrease": (ratio - 1) * 100,
		}
		p.Metrics = model.Metrics{
			TotalAmount:          sum,
			AverageAmount:        sum / float64(len(g.members)),
			PercentageOfCategory: 100,
			Deviation:            ratio,
			Confidence:           deviationConfidence,
		}
		p.SavingsPotential = model.NewSavingsPotential(savings, int(savings/projected*100), model.MethodHistoricalComparison)
		p.Relate(g.members)

		if err := d.save(ctx, p); err != nil {
			return patterns, err
		}
		slog.Debug("category deviation pattern",
			"category", g.key,
			"projected", projected,
			"baseline", base.monthly,
			"baseline_days", base.spanDays)
		patterns = append(patterns, p)
	}
	return patterns, nil
}
