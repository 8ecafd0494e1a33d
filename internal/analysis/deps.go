// Package analysis detects spending patterns in a user's transactions.
package analysis

import (
	"errors"
)

// Deps contains all dependencies required by the analyzer.
type Deps struct {
	// Transactions reads and annotates transactions.
	Transactions TransactionStore
	// Patterns persists detected patterns.
	Patterns PatternStore
}

// Validate ensures all required dependencies are provided.
func (d *Deps) Validate() error {
	if d.Transactions == nil {
		return errors.New("transaction store dependency is required")
	}
	if d.Patterns == nil {
		return errors.New("pattern store dependency is required")
	}
	return nil
}
