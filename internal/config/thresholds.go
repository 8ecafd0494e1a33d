package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-savings-must-flow/internal/common"
)

// Thresholds tunes the pattern detectors.
type Thresholds struct {
	MicroExpenseThreshold         float64
	RecurringMaxVariance          float64
	HighDeviationFactor           float64
	OptimizableRecurringMinAmount float64
	RecurringMinFrequency         int
	MinTransactionsForPattern     int
	HistoricalWindowDays          int
	MaxAge                        time.Duration
}

// DefaultThresholds returns the stock detector configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MicroExpenseThreshold:         10000,
		RecurringMinFrequency:         2,
		RecurringMaxVariance:          0.2,
		HighDeviationFactor:           1.5,
		OptimizableRecurringMinAmount: 50000,
		MinTransactionsForPattern:     3,
		HistoricalWindowDays:          90,
		MaxAge:                        7 * 24 * time.Hour,
	}
}

// Validate checks that every threshold is usable.
func (t Thresholds) Validate() error {
	switch {
	case t.MicroExpenseThreshold <= 0:
		return fmt.Errorf("%w: micro_expense_threshold must be positive", common.ErrInvalidConfig)
	case t.RecurringMinFrequency < 2:
		return fmt.Errorf("%w: recurring_min_frequency must be at least 2", common.ErrInvalidConfig)
	case t.RecurringMaxVariance <= 0:
		return fmt.Errorf("%w: recurring_max_variance must be positive", common.ErrInvalidConfig)
	case t.HighDeviationFactor <= 1:
		return fmt.Errorf("%w: high_deviation_factor must exceed 1", common.ErrInvalidConfig)
	case t.OptimizableRecurringMinAmount < 0:
		return fmt.Errorf("%w: optimizable_recurring_min_amount must not be negative", common.ErrInvalidConfig)
	case t.MinTransactionsForPattern < 1:
		return fmt.Errorf("%w: min_transactions_for_pattern must be at least 1", common.ErrInvalidConfig)
	case t.HistoricalWindowDays < 7:
		return fmt.Errorf("%w: historical_window_days must be at least 7", common.ErrInvalidConfig)
	case t.MaxAge < 0:
		return fmt.Errorf("%w: max_age must not be negative", common.ErrInvalidConfig)
	}
	return nil
}

// HistoricalWindow returns the trailing window as a duration.
func (t Thresholds) HistoricalWindow() time.Duration {
	return time.Duration(t.HistoricalWindowDays) * 24 * time.Hour
}

// SetAnalysisDefaults registers the analysis.* defaults on v.
func SetAnalysisDefaults(v *viper.Viper) {
	d := DefaultThresholds()
	v.SetDefault("analysis.micro_expense_threshold", d.MicroExpenseThreshold)
	v.SetDefault("analysis.recurring_min_frequency", d.RecurringMinFrequency)
	v.SetDefault("analysis.recurring_max_variance", d.RecurringMaxVariance)
	v.SetDefault("analysis.high_deviation_factor", d.HighDeviationFactor)
	v.SetDefault("analysis.optimizable_recurring_min_amount", d.OptimizableRecurringMinAmount)
	v.SetDefault("analysis.min_transactions_for_pattern", d.MinTransactionsForPattern)
	v.SetDefault("analysis.historical_window_days", d.HistoricalWindowDays)
	v.SetDefault("analysis.max_age", d.MaxAge)
}

// LoadThresholds reads analysis.* keys from v, falling back to defaults,
// and validates the result.
func LoadThresholds(v *viper.Viper) (Thresholds, error) {
	SetAnalysisDefaults(v)

	t := Thresholds{
		MicroExpenseThreshold:         v.GetFloat64("analysis.micro_expense_threshold"),
		RecurringMinFrequency:         v.GetInt("analysis.recurring_min_frequency"),
		RecurringMaxVariance:          v.GetFloat64("analysis.recurring_max_variance"),
		HighDeviationFactor:           v.GetFloat64("analysis.high_deviation_factor"),
		OptimizableRecurringMinAmount: v.GetFloat64("analysis.optimizable_recurring_min_amount"),
		MinTransactionsForPattern:     v.GetInt("analysis.min_transactions_for_pattern"),
		HistoricalWindowDays:          v.GetInt("analysis.historical_window_days"),
		MaxAge:                        v.GetDuration("analysis.max_age"),
	}
	if err := t.Validate(); err != nil {
		return Thresholds{}, err
	}
	return t, nil
}

// RecommendationSettings tunes the synthesizer and lifecycle manager.
type RecommendationSettings struct {
	Locale       string
	Expiry       time.Duration
	DefaultLimit int
}

// DefaultRecommendationSettings returns the stock recommendation settings.
func DefaultRecommendationSettings() RecommendationSettings {
	return RecommendationSettings{
		Expiry:       30 * 24 * time.Hour,
		Locale:       "es",
		DefaultLimit: 5,
	}
}

// LoadRecommendationSettings reads recommendations.* keys from v.
func LoadRecommendationSettings(v *viper.Viper) (RecommendationSettings, error) {
	d := DefaultRecommendationSettings()
	v.SetDefault("recommendations.expiry", d.Expiry)
	v.SetDefault("recommendations.locale", d.Locale)
	v.SetDefault("recommendations.default_limit", d.DefaultLimit)

	s := RecommendationSettings{
		Expiry:       v.GetDuration("recommendations.expiry"),
		Locale:       v.GetString("recommendations.locale"),
		DefaultLimit: v.GetInt("recommendations.default_limit"),
	}
	if s.Expiry <= 0 {
		return RecommendationSettings{}, fmt.Errorf("%w: recommendations.expiry must be positive", common.ErrInvalidConfig)
	}
	if s.DefaultLimit <= 0 {
		return RecommendationSettings{}, fmt.Errorf("%w: recommendations.default_limit must be positive", common.ErrInvalidConfig)
	}
	return s, nil
}
