package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// PatternType identifies the detector that produced a pattern.
type PatternType string

// Pattern types.
const (
	PatternMicroExpense      PatternType = "micro_expense"
	PatternRecurring         PatternType = "recurring"
	PatternTemporal          PatternType = "temporal"
	PatternCategoryDeviation PatternType = "category_deviation"
)

// PatternStatus is the lifecycle state of a pattern.
type PatternStatus string

// Pattern statuses.
const (
	PatternActive   PatternStatus = "active"
	PatternResolved PatternStatus = "resolved"
	PatternIgnored  PatternStatus = "ignored"
)

// Calculation methods tag the heuristic behind a savings estimate.
const (
	MethodHistorical           = "historical"
	MethodSubscription         = "subscription_optimization"
	MethodDayOfWeek            = "day_of_week_optimization"
	MethodTimeOfDay            = "time_of_day_optimization"
	MethodHistoricalComparison = "historical_comparison"
)

// AlgorithmVersion is stamped on every pattern created by this build.
const AlgorithmVersion = "1.0"

// Metrics summarizes the transactions behind a pattern.
type Metrics struct {
	Frequency            float64 `json:"frequency"` // occurrences per month
	TotalAmount          float64 `json:"totalAmount"`
	AverageAmount        float64 `json:"averageAmount"`
	PercentageOfCategory float64 `json:"percentageOfCategory"`
	PercentageOfTotal    float64 `json:"percentageOfTotal"`
	Deviation            float64 `json:"deviation"`
	Confidence           float64 `json:"confidence"`
}

// SavingsPotential is the estimated reduction if the user acts on a pattern.
type SavingsPotential struct {
	CalculationMethod      string  `json:"calculationMethod"`
	EstimatedMonthly       float64 `json:"estimatedMonthly"`
	EstimatedYearly        float64 `json:"estimatedYearly"`
	OptimizationPercentage int     `json:"optimizationPercentage"`
}

// NewSavingsPotential derives the yearly estimate from the monthly one.
func NewSavingsPotential(monthly float64, optimization int, method string) SavingsPotential {
	return SavingsPotential{
		EstimatedMonthly:       monthly,
		EstimatedYearly:        monthly * 12,
		OptimizationPercentage: optimization,
		CalculationMethod:      method,
	}
}

// RelatedTransaction is a weak reference from a pattern to a transaction.
type RelatedTransaction struct {
	Date          time.Time `json:"date"`
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
}

// AnalysisMetadata records which algorithm revision produced a pattern.
type AnalysisMetadata struct {
	AlgorithmVersion string `json:"algorithmVersion"`
	IterationNumber  int    `json:"iterationNumber"`
}

// TemporalData holds detector-specific details such as periodicity or the
// weekday bucket a temporal pattern was found in.
type TemporalData map[string]any

// String returns the value under key when it is a string.
func (d TemporalData) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Float returns the value under key as a float64. Stored documents decode
// numbers as float64, freshly built ones may still hold ints.
func (d TemporalData) Float(key string) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Pattern is a detected spending pattern.
type Pattern struct {
	DetectedAt          time.Time            `json:"detected_at"`
	LastUpdatedAt       time.Time            `json:"last_updated_at"`
	TemporalData        TemporalData         `json:"temporal_data"`
	ID                  string               `json:"id"`
	UserID              string               `json:"user_id"`
	Type                PatternType          `json:"type"`
	Category            string               `json:"category"`
	Subcategory         string               `json:"subcategory,omitempty"`
	Status              PatternStatus        `json:"status"`
	SavingsPotential    SavingsPotential     `json:"savings_potential"`
	AnalysisMetadata    AnalysisMetadata     `json:"analysis_metadata"`
	RelatedTransactions []RelatedTransaction `json:"related_transactions"`
	Metrics             Metrics              `json:"metrics"`
}

// NewPattern returns an active pattern detected at now.
func NewPattern(userID string, typ PatternType, category string, now time.Time) *Pattern {
	return &Pattern{
		UserID:              userID,
		Type:                typ,
		Category:            category,
		Status:              PatternActive,
		DetectedAt:          now,
		LastUpdatedAt:       now,
		TemporalData:        TemporalData{},
		RelatedTransactions: []RelatedTransaction{},
		AnalysisMetadata:    AnalysisMetadata{AlgorithmVersion: AlgorithmVersion, IterationNumber: 1},
	}
}

// Relate appends weak references to the given transactions.
func (p *Pattern) Relate(txns []*Transaction) {
	for _, t := range txns {
		p.RelatedTransactions = append(p.RelatedTransactions, t.Ref())
	}
}

// DecodePattern builds a Pattern from a stored document. Missing nested
// objects default to empty values and a missing status defaults to active.
func DecodePattern(data []byte) (*Pattern, error) {
	var p Pattern
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: pattern: %v", ErrInvalidDocument, err)
	}

	switch {
	case p.ID == "":
		return nil, fmt.Errorf("%w: pattern missing id", ErrInvalidDocument)
	case p.UserID == "":
		return nil, fmt.Errorf("%w: pattern %s missing user_id", ErrInvalidDocument, p.ID)
	case p.Type == "":
		return nil, fmt.Errorf("%w: pattern %s missing type", ErrInvalidDocument, p.ID)
	}

	if p.Status == "" {
		p.Status = PatternActive
	}
	if p.TemporalData == nil {
		p.TemporalData = TemporalData{}
	}
	if p.RelatedTransactions == nil {
		p.RelatedTransactions = []RelatedTransaction{}
	}
	if p.AnalysisMetadata.AlgorithmVersion == "" {
		p.AnalysisMetadata = AnalysisMetadata{AlgorithmVersion: AlgorithmVersion, IterationNumber: 1}
	}
	if p.LastUpdatedAt.IsZero() {
		p.LastUpdatedAt = p.DetectedAt
	}
	return &p, nil
}
