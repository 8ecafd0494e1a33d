// Package storage provides the document persistence layer for the savings engine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Validation errors.
var (
	ErrNilContext          = errors.New("context cannot be nil")
	ErrEmptyString         = errors.New("string parameter cannot be empty")
	ErrNilParameter        = errors.New("parameter cannot be nil")
	ErrEmptySlice          = errors.New("slice cannot be empty")
	ErrInvalidDateRange    = errors.New("start date must be before end date")
	ErrInvalidFieldPath    = errors.New("invalid field path")
	ErrInvalidFilter       = errors.New("invalid filter")
	ErrInvalidDocumentBody = errors.New("document must be a JSON object")
)

var fieldPathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateFieldPath accepts dotted identifier paths such as "user_interaction.seen".
func validateFieldPath(path string) error {
	if !fieldPathPattern.MatchString(path) {
		return fmt.Errorf("%w: %q", ErrInvalidFieldPath, path)
	}
	return nil
}

// validateDateRange ensures start is not after end.
func validateDateRange(start, end time.Time) error {
	if start.After(end) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return nil
}
