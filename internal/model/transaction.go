package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TimeOfDay buckets the hour a transaction happened in.
type TimeOfDay string

// Time of day buckets.
const (
	Morning   TimeOfDay = "morning"   // 05:00-11:59
	Afternoon TimeOfDay = "afternoon" // 12:00-16:59
	Evening   TimeOfDay = "evening"   // 17:00-20:59
	Night     TimeOfDay = "night"     // 21:00-04:59
)

// TimesOfDay lists the buckets in chronological order.
var TimesOfDay = []TimeOfDay{Morning, Afternoon, Evening, Night}

// TimeOfDayFor returns the bucket for an hour in the range 0-23.
func TimeOfDayFor(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 21:
		return Evening
	default:
		return Night
	}
}

// TransactionMetadata holds the calendar and similarity features derived from a transaction.
type TransactionMetadata struct {
	RecurrenceGroupID *string   `json:"recurrenceGroupId"`
	SimilarityHash    *string   `json:"similarityHash"`
	TimeOfDay         TimeOfDay `json:"timeOfDay"`
	NormalizedAmount  float64   `json:"normalizedAmount"`
	DayOfWeek         int       `json:"dayOfWeek"` // 0=Sunday
	WeekOfMonth       int       `json:"weekOfMonth"`
	MonthOfYear       int       `json:"monthOfYear"`
	HourOfDay         int       `json:"hourOfDay"`
	IsRecurring       bool      `json:"isRecurring"`
}

// AnalysisFlags records what the analyzer found out about a transaction.
// Flags are only ever raised during a pass, never cleared.
type AnalysisFlags struct {
	LastAnalyzedAt         *time.Time `json:"lastAnalyzedAt"`
	IsMicroExpense         bool       `json:"isMicroExpense"`
	IsHighDeviation        bool       `json:"isHighDeviation"`
	IsOptimizableRecurring bool       `json:"isOptimizableRecurring"`
	IsTemporalPattern      bool       `json:"isTemporalPattern"`
}

// Set raises the named flag. It reports false for unknown names.
func (f *AnalysisFlags) Set(name string) bool {
	switch name {
	case FlagMicroExpense:
		f.IsMicroExpense = true
	case FlagHighDeviation:
		f.IsHighDeviation = true
	case FlagOptimizableRecurring:
		f.IsOptimizableRecurring = true
	case FlagTemporalPattern:
		f.IsTemporalPattern = true
	default:
		return false
	}
	return true
}

// Transaction is a single user transaction as stored in the transactions collection.
type Transaction struct {
	Date          time.Time           `json:"date"`
	UpdatedAt     *time.Time          `json:"updated_at,omitempty"`
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	Category      string              `json:"category"`
	Description   string              `json:"description"`
	Metadata      TransactionMetadata `json:"metadata"`
	AnalysisFlags AnalysisFlags       `json:"analysis_flags"`
	Amount        float64             `json:"amount"` // always positive; see IsExpense
	IsExpense     bool                `json:"is_expense"`
}

// NewTransaction builds an expense with derived metadata.
func NewTransaction(userID string, amount float64, date time.Time, category, description string) *Transaction {
	t := &Transaction{
		UserID:      userID,
		Amount:      amount,
		Date:        date,
		Category:    category,
		Description: description,
		IsExpense:   true,
	}
	t.Metadata = DeriveMetadata(date, amount)
	return t
}

// DeriveMetadata computes the calendar features of a transaction.
// Week of month uses fixed 7-day buckets from the 1st, not ISO weeks.
func DeriveMetadata(date time.Time, amount float64) TransactionMetadata {
	hour := date.Hour()
	return TransactionMetadata{
		DayOfWeek:        int(date.Weekday()),
		WeekOfMonth:      (date.Day()-1)/7 + 1,
		MonthOfYear:      int(date.Month()),
		TimeOfDay:        TimeOfDayFor(hour),
		HourOfDay:        hour,
		NormalizedAmount: RoundCents(amount),
	}
}

// RoundCents rounds an amount to two decimal places.
func RoundCents(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// RefreshMetadata re-derives the calendar features while keeping the
// recurrence and similarity fields computed by earlier passes.
func (t *Transaction) RefreshMetadata() {
	previous := t.Metadata
	t.Metadata = DeriveMetadata(t.Date, t.Amount)
	t.Metadata.IsRecurring = previous.IsRecurring
	if previous.RecurrenceGroupID != nil {
		t.Metadata.RecurrenceGroupID = previous.RecurrenceGroupID
	}
	if previous.SimilarityHash != nil {
		t.Metadata.SimilarityHash = previous.SimilarityHash
	}
}

// MarkAnalyzed stamps the staleness gate.
func (t *Transaction) MarkAnalyzed(now time.Time) {
	t.AnalysisFlags.LastAnalyzedAt = &now
}

// NeedsAnalysis reports whether the transaction was never analyzed or was
// analyzed longer than maxAge ago.
func (t *Transaction) NeedsAnalysis(now time.Time, maxAge time.Duration) bool {
	last := t.AnalysisFlags.LastAnalyzedAt
	return last == nil || now.Sub(*last) > maxAge
}

// Ref returns the weak reference a pattern keeps to this transaction.
func (t *Transaction) Ref() RelatedTransaction {
	return RelatedTransaction{TransactionID: t.ID, Amount: t.Amount, Date: t.Date}
}

// DecodeTransaction builds a Transaction from a stored document. Required
// fields are validated and missing nested objects are defaulted: metadata is
// derived from date and amount, analysis flags start lowered.
func DecodeTransaction(data []byte) (*Transaction, error) {
	var doc struct {
		Metadata      *TransactionMetadata `json:"metadata"`
		AnalysisFlags *AnalysisFlags       `json:"analysis_flags"`
		IsExpense     *bool                `json:"is_expense"`
		Transaction
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: transaction: %v", ErrInvalidDocument, err)
	}

	t := doc.Transaction
	switch {
	case t.ID == "":
		return nil, fmt.Errorf("%w: transaction missing id", ErrInvalidDocument)
	case t.UserID == "":
		return nil, fmt.Errorf("%w: transaction %s missing user_id", ErrInvalidDocument, t.ID)
	case t.Date.IsZero():
		return nil, fmt.Errorf("%w: transaction %s missing date", ErrInvalidDocument, t.ID)
	case t.Amount <= 0:
		return nil, fmt.Errorf("%w: transaction %s amount %v is not positive", ErrInvalidDocument, t.ID, t.Amount)
	}

	t.IsExpense = doc.IsExpense == nil || *doc.IsExpense
	if doc.Metadata != nil {
		t.Metadata = *doc.Metadata
	} else {
		t.Metadata = DeriveMetadata(t.Date, t.Amount)
	}
	if doc.AnalysisFlags != nil {
		t.AnalysisFlags = *doc.AnalysisFlags
	}
	return &t, nil
}
