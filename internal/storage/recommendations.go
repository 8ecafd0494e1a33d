package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/service"
)

// RecommendationRepository stores recommendations.
type RecommendationRepository struct {
	*Repository[model.Recommendation]
}

// NewRecommendationRepository builds the recommendations repository.
func NewRecommendationRepository(store service.DocumentStore) *RecommendationRepository {
	return &RecommendationRepository{
		Repository: NewRepository(store, service.CollectionRecommendations, model.DecodeRecommendation),
	}
}

// Save stores a recommendation and sets its id.
func (r *RecommendationRepository) Save(ctx context.Context, rec *model.Recommendation) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("%w: recommendation", ErrNilParameter)
	}
	if err := validateString(rec.PatternID, "pattern_id"); err != nil {
		return "", err
	}
	id, err := r.Add(ctx, rec.ID, rec)
	if err != nil {
		return "", err
	}
	rec.ID = id
	return id, nil
}

// GetByUserID returns every recommendation of a user in creation order.
func (r *RecommendationRepository) GetByUserID(ctx context.Context, userID string) ([]*model.Recommendation, error) {
	return r.Query(ctx, map[string]any{"user_id": userID}, 0)
}

// GetByStatus returns a user's recommendations in the given status.
func (r *RecommendationRepository) GetByStatus(ctx context.Context, userID string, status model.RecommendationStatus) ([]*model.Recommendation, error) {
	return r.Query(ctx, map[string]any{"user_id": userID, "status": status}, 0)
}

// GetPendingForPattern returns the pending recommendation for a pattern, or nil.
func (r *RecommendationRepository) GetPendingForPattern(ctx context.Context, userID, patternID string) (*model.Recommendation, error) {
	recs, err := r.Query(ctx, map[string]any{
		"user_id":    userID,
		"pattern_id": patternID,
		"status":     model.RecommendationPending,
	}, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// Apply persists a patch produced by a recommendation transition.
func (r *RecommendationRepository) Apply(ctx context.Context, id string, patch model.Patch) (bool, error) {
	return r.Update(ctx, id, patch)
}

// ExpireOld moves a user's non-terminal recommendations past their expiry to
// expired and returns how many changed.
func (r *RecommendationRepository) ExpireOld(ctx context.Context, userID string, now time.Time) (int, error) {
	recs, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, rec := range recs {
		if rec.Status.IsTerminal() || !rec.IsExpired(now) {
			continue
		}
		patch, transitionErr := rec.Expire()
		if transitionErr != nil {
			return expired, transitionErr
		}
		if _, err := r.Apply(ctx, rec.ID, patch); err != nil {
			return expired, fmt.Errorf("failed to expire recommendation %s: %w", rec.ID, err)
		}
		expired++
	}

	if expired > 0 {
		slog.Info("expired recommendations", "user_id", userID, "count", expired)
	}
	return expired, nil
}
