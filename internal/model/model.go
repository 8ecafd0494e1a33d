// Package model defines the core domain models used throughout the application.
package model

import "errors"

// Sentinel errors for model operations.
var (
	// ErrInvalidDocument is returned when a stored document lacks required fields or is malformed.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrInvalidTransition is returned when a recommendation cannot move to the requested state.
	ErrInvalidTransition = errors.New("invalid recommendation transition")
	// ErrInvalidFeedback is returned when feedback details are missing or out of range.
	ErrInvalidFeedback = errors.New("invalid feedback")
)

// Analysis flag names, usable as field paths under analysis_flags.
const (
	FlagMicroExpense         = "isMicroExpense"
	FlagHighDeviation        = "isHighDeviation"
	FlagOptimizableRecurring = "isOptimizableRecurring"
	FlagTemporalPattern      = "isTemporalPattern"
)

// Patch is a set of dotted field paths and their new values, applied as a
// partial update by the document store.
type Patch map[string]any

// Merge copies other into p and returns p.
func (p Patch) Merge(other Patch) Patch {
	for k, v := range other {
		p[k] = v
	}
	return p
}
