package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Veraticus/the-savings-must-flow/internal/config"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

const (
	dayOfWeekConfidence = 0.75
	timeOfDayConfidence = 0.7
	minWeekdayBuckets   = 3
	minPeriodBuckets    = 2
	// weekdayOccurrences is how often a given weekday comes round in a month.
	weekdayOccurrences = 4
	// temporalCategory marks patterns that span several categories.
	temporalCategory = "multiple"
)

// Temporal time units.
const (
	TimeUnitDayOfWeek = "day_of_week"
	TimeUnitTimeOfDay = "time_of_day"
)

// TemporalDetector finds weekdays and times of day with unusually high spending.
type TemporalDetector struct {
	detectorBase
}

// NewTemporalDetector creates the temporal detector.
func NewTemporalDetector(txns TransactionStore, patterns PatternStore, cfg config.Thresholds) *TemporalDetector {
	return &TemporalDetector{detectorBase{txns: txns, patterns: patterns, cfg: cfg}}
}

// Name implements Detector.
func (d *TemporalDetector) Name() model.PatternType { return model.PatternTemporal }

// RequiresHistory implements Detector.
func (d *TemporalDetector) RequiresHistory() bool { return true }

type bucketStats struct {
	group   *group
	total   float64
	average float64
}

// Detect combines current and historical expenses, compares each bucket's
// average expense with the mean of all bucket averages, and emits a pattern
// for every bucket above high_deviation_factor times that mean. Current
// transactions in a deviating bucket are flagged.
func (d *TemporalDetector) Detect(ctx context.Context, in Input) ([]*model.Pattern, error) {
	spent := expenses(mergeByID(in.Current, in.Historical))
	if len(spent) < d.cfg.MinTransactionsForPattern*2 {
		return nil, nil
	}

	byDay := groupBy(spent, func(t *model.Transaction) (string, bool) {
		return strconv.Itoa(t.Metadata.DayOfWeek), true
	})
	byPeriod := groupBy(spent, func(t *model.Transaction) (string, bool) {
		return string(t.Metadata.TimeOfDay), t.Metadata.TimeOfDay != ""
	})

	var candidates []*model.Pattern
	candidates = append(candidates, d.dayOfWeekPatterns(in, byDay)...)
	candidates = append(candidates, d.timeOfDayPatterns(in, inPeriodOrder(byPeriod))...)

	current := make(map[string]*model.Transaction, len(in.Current))
	for _, t := range in.Current {
		current[t.ID] = t
	}

	patterns := make([]*model.Pattern, 0, len(candidates))
	for _, p := range candidates {
		if err := d.save(ctx, p); err != nil {
			return patterns, err
		}
		patterns = append(patterns, p)

		var flagged []*model.Transaction
		for _, ref := range p.RelatedTransactions {
			if t, ok := current[ref.TransactionID]; ok {
				flagged = append(flagged, t)
			}
		}
		if err := d.raise(ctx, flagged, model.FlagTemporalPattern); err != nil {
			return patterns, err
		}
	}
	return patterns, nil
}

func (d *TemporalDetector) dayOfWeekPatterns(in Input, groups []*group) []*model.Pattern {
	if len(groups) < minWeekdayBuckets {
		return nil
	}
	stats, overall := bucketAverages(groups)

	var patterns []*model.Pattern
	for _, s := range stats {
		if s.average <= overall*d.cfg.HighDeviationFactor {
			continue
		}
		day, _ := strconv.Atoi(s.group.key)
		name := labels.DayName(day)

		p := model.NewPattern(in.UserID, model.PatternTemporal, temporalCategory, in.Now)
		p.TemporalData = model.TemporalData{
			"timeUnit":         TimeUnitDayOfWeek,
			"timeValue":        day,
			"dayName":          name,
			"averageExpense":   s.average,
			"overallAverage":   overall,
			"comparisonMetric": fmt.Sprintf("%.1fx el promedio", s.average/overall),
		}
		p.Metrics = model.Metrics{
			Frequency:     weekdayOccurrences,
			TotalAmount:   s.total,
			AverageAmount: s.average,
			Deviation:     s.average / overall,
			Confidence:    dayOfWeekConfidence,
		}
		p.SavingsPotential = model.NewSavingsPotential(
			(s.average-overall)*weekdayOccurrences,
			optimizationPercent(s.average, overall),
			model.MethodDayOfWeek,
		)
		p.Relate(s.group.members)

		slog.Debug("day-of-week pattern", "day", name, "average", s.average, "overall", overall)
		patterns = append(patterns, p)
	}
	return patterns
}

func (d *TemporalDetector) timeOfDayPatterns(in Input, groups []*group) []*model.Pattern {
	if len(groups) < minPeriodBuckets {
		return nil
	}
	stats, overall := bucketAverages(groups)
	occurrences := 30 / float64(len(groups))

	var patterns []*model.Pattern
	for _, s := range stats {
		if s.average <= overall*d.cfg.HighDeviationFactor {
			continue
		}
		period := model.TimeOfDay(s.group.key)

		p := model.NewPattern(in.UserID, model.PatternTemporal, temporalCategory, in.Now)
		p.TemporalData = model.TemporalData{
			"timeUnit":         TimeUnitTimeOfDay,
			"timeValue":        string(period),
			"periodName":       labels.PeriodName(period),
			"averageExpense":   s.average,
			"overallAverage":   overall,
			"comparisonMetric": fmt.Sprintf("%.1fx el promedio", s.average/overall),
		}
		p.Metrics = model.Metrics{
			Frequency:     30,
			TotalAmount:   s.total,
			AverageAmount: s.average,
			Deviation:     s.average / overall,
			Confidence:    timeOfDayConfidence,
		}
		p.SavingsPotential = model.NewSavingsPotential(
			(s.average-overall)*occurrences,
			optimizationPercent(s.average, overall),
			model.MethodTimeOfDay,
		)
		p.Relate(s.group.members)

		slog.Debug("time-of-day pattern", "period", period, "average", s.average, "overall", overall)
		patterns = append(patterns, p)
	}
	return patterns
}

// bucketAverages returns per-bucket totals and averages plus the mean of the averages.
func bucketAverages(groups []*group) ([]bucketStats, float64) {
	stats := make([]bucketStats, 0, len(groups))
	var sumOfAverages float64
	for _, g := range groups {
		sum := total(g.members)
		avg := sum / float64(len(g.members))
		stats = append(stats, bucketStats{group: g, total: sum, average: avg})
		sumOfAverages += avg
	}
	return stats, sumOfAverages / float64(len(groups))
}

func optimizationPercent(average, overall float64) int {
	if average <= 0 {
		return 0
	}
	return int((average - overall) / average * 100)
}
