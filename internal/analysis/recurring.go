package analysis

import (
	"context"
	"log/slog"

	"github.com/Veraticus/the-savings-must-flow/internal/config"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

const (
	recurringConfidence   = 0.9
	recurringOptimization = 30
	maxSubcategoryRunes   = 50
)

// Periodicity labels.
const (
	PeriodDaily     = "daily"
	PeriodWeekly    = "weekly"
	PeriodBiweekly  = "biweekly"
	PeriodMonthly   = "monthly"
	PeriodQuarterly = "quarterly"
	PeriodYearly    = "yearly"
	PeriodUnknown   = "unknown"
)

// Periodicity labels a mean gap in days.
func Periodicity(meanGapDays float64) string {
	switch {
	case meanGapDays >= 25 && meanGapDays <= 35:
		return PeriodMonthly
	case meanGapDays >= 13 && meanGapDays <= 17:
		return PeriodBiweekly
	case meanGapDays >= 6 && meanGapDays <= 8:
		return PeriodWeekly
	case meanGapDays <= 3:
		return PeriodDaily
	case meanGapDays >= 85 && meanGapDays <= 95:
		return PeriodQuarterly
	case meanGapDays >= 350 && meanGapDays <= 380:
		return PeriodYearly
	default:
		return PeriodUnknown
	}
}

// RecurringDetector finds expensive subscriptions worth renegotiating.
type RecurringDetector struct {
	detectorBase
}

// NewRecurringDetector creates the recurring-expense detector.
func NewRecurringDetector(txns TransactionStore, patterns PatternStore, cfg config.Thresholds) *RecurringDetector {
	return &RecurringDetector{detectorBase{txns: txns, patterns: patterns, cfg: cfg}}
}

// Name implements Detector.
func (d *RecurringDetector) Name() model.PatternType { return model.PatternRecurring }

// RequiresHistory implements Detector.
func (d *RecurringDetector) RequiresHistory() bool { return false }

// Detect emits one pattern per recurrence group of optimizable expenses.
func (d *RecurringDetector) Detect(ctx context.Context, in Input) ([]*model.Pattern, error) {
	groups := groupBy(expenses(in.Current), func(t *model.Transaction) (string, bool) {
		if !t.Metadata.IsRecurring || !t.AnalysisFlags.IsOptimizableRecurring || t.Metadata.RecurrenceGroupID == nil {
			return "", false
		}
		return *t.Metadata.RecurrenceGroupID, true
	})

	var patterns []*model.Pattern
	for _, g := range groups {
		if len(g.members) < d.cfg.RecurringMinFrequency {
			continue
		}
		sortByDate(g.members)

		sum := total(g.members)
		avg := sum / float64(len(g.members))
		frequency := float64(len(g.members)) / monthsSpanned(g.members)
		meanGap, _ := meanStdDev(dayGaps(g.members))
		first := g.members[0]

		p := model.NewPattern(in.UserID, model.PatternRecurring, first.Category, in.Now)
		p.Subcategory = truncateRunes(first.Description, maxSubcategoryRunes)
		p.Metrics = model.Metrics{
			Frequency:     frequency,
			TotalAmount:   sum,
			AverageAmount: avg,
			Confidence:    recurringConfidence,
		}
		p.TemporalData = model.TemporalData{
			"periodicity":       Periodicity(meanGap),
			"averageInterval":   meanGap,
			"recurrenceGroupId": g.key,
		}
		p.SavingsPotential = model.NewSavingsPotential(avg*frequency*0.3, recurringOptimization, model.MethodSubscription)
		p.Relate(g.members)

		if err := d.save(ctx, p); err != nil {
			return patterns, err
		}
		slog.Debug("recurring pattern", "group", g.key, "periodicity", p.TemporalData.String("periodicity"))
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
