package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/service"
)

// PatternRepository stores detected patterns.
type PatternRepository struct {
	*Repository[model.Pattern]
}

// NewPatternRepository builds the patterns repository.
func NewPatternRepository(store service.DocumentStore) *PatternRepository {
	return &PatternRepository{
		Repository: NewRepository(store, service.CollectionPatterns, model.DecodePattern),
	}
}

// Save stores a pattern and sets its id.
func (r *PatternRepository) Save(ctx context.Context, p *model.Pattern) (string, error) {
	if p == nil {
		return "", fmt.Errorf("%w: pattern", ErrNilParameter)
	}
	if err := validateString(p.UserID, "user_id"); err != nil {
		return "", err
	}
	id, err := r.Add(ctx, p.ID, p)
	if err != nil {
		return "", err
	}
	p.ID = id

	slog.Info("created pattern",
		"id", id,
		"type", p.Type,
		"category", p.Category,
		"estimated_monthly", p.SavingsPotential.EstimatedMonthly)
	return id, nil
}

// GetByUserID returns all of a user's patterns regardless of status.
func (r *PatternRepository) GetByUserID(ctx context.Context, userID string) ([]*model.Pattern, error) {
	return r.Query(ctx, map[string]any{"user_id": userID}, 0)
}

// GetByStatus returns a user's patterns in the given status.
func (r *PatternRepository) GetByStatus(ctx context.Context, userID string, status model.PatternStatus) ([]*model.Pattern, error) {
	return r.Query(ctx, map[string]any{"user_id": userID, "status": status}, 0)
}

// GetActivePatterns returns a user's active patterns.
func (r *PatternRepository) GetActivePatterns(ctx context.Context, userID string) ([]*model.Pattern, error) {
	return r.GetByStatus(ctx, userID, model.PatternActive)
}

// GetByType returns a user's patterns of one type.
func (r *PatternRepository) GetByType(ctx context.Context, userID string, typ model.PatternType) ([]*model.Pattern, error) {
	return r.Query(ctx, map[string]any{"user_id": userID, "type": typ}, 0)
}

// GetPatternsBySavingsPotential returns active patterns whose estimated
// monthly savings reach minMonthly, largest first.
func (r *PatternRepository) GetPatternsBySavingsPotential(ctx context.Context, userID string, minMonthly float64) ([]*model.Pattern, error) {
	active, err := r.GetActivePatterns(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Pattern, 0, len(active))
	for _, p := range active {
		if p.SavingsPotential.EstimatedMonthly >= minMonthly {
			out = append(out, p)
		}
	}
	SortBySavings(out)
	return out, nil
}

// UpdateStatus moves a pattern to status and stamps last_updated_at.
func (r *PatternRepository) UpdateStatus(ctx context.Context, id string, status model.PatternStatus, now time.Time) (bool, error) {
	return r.Update(ctx, id, map[string]any{
		"status":          status,
		"last_updated_at": now.UTC(),
	})
}

// SortBySavings orders patterns by estimated monthly savings, largest first.
func SortBySavings(patterns []*model.Pattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].SavingsPotential.EstimatedMonthly > patterns[j].SavingsPotential.EstimatedMonthly
	})
}
