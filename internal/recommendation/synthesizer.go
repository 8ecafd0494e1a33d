package recommendation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/config"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/service"
)

// PatternStore is the pattern persistence recommendations need.
type PatternStore interface {
	GetPatternsBySavingsPotential(ctx context.Context, userID string, minMonthly float64) ([]*model.Pattern, error)
	UpdateStatus(ctx context.Context, id string, status model.PatternStatus, now time.Time) (bool, error)
}

// RecommendationStore is the recommendation persistence.
type RecommendationStore interface {
	Save(ctx context.Context, rec *model.Recommendation) (string, error)
	GetByID(ctx context.Context, id string) (*model.Recommendation, error)
	GetByUserID(ctx context.Context, userID string) ([]*model.Recommendation, error)
	GetPendingForPattern(ctx context.Context, userID, patternID string) (*model.Recommendation, error)
	Apply(ctx context.Context, id string, patch model.Patch) (bool, error)
	ExpireOld(ctx context.Context, userID string, now time.Time) (int, error)
}

// GenerationResult reports one synthesis pass.
type GenerationResult struct {
	Status                   service.Status          `json:"status"`
	Message                  string                  `json:"message,omitempty"`
	Recommendations          []*model.Recommendation `json:"-"`
	PatternsAnalyzed         int                     `json:"patterns_analyzed"`
	RecommendationsGenerated int                     `json:"recommendations_generated"`
	RecommendationsExpired   int                     `json:"recommendations_expired"`
}

// Synthesizer builds recommendations from a user's active patterns.
type Synthesizer struct {
	patterns PatternStore
	recs     RecommendationStore
	messages *Messages
	now      func() time.Time
	settings config.RecommendationSettings
}

// NewSynthesizer creates a synthesizer rendering copy in settings.Locale.
func NewSynthesizer(patterns PatternStore, recs RecommendationStore, settings config.RecommendationSettings) (*Synthesizer, error) {
	if patterns == nil || recs == nil {
		return nil, fmt.Errorf("%w: pattern and recommendation stores are required", common.ErrMissingConfig)
	}
	messages, err := NewMessages(settings.Locale)
	if err != nil {
		return nil, err
	}
	return &Synthesizer{
		patterns: patterns,
		recs:     recs,
		messages: messages,
		settings: settings,
		now:      time.Now,
	}, nil
}

// WithClock replaces the time source.
func (s *Synthesizer) WithClock(now func() time.Time) *Synthesizer {
	s.now = now
	return s
}

// GenerateRecommendations expires the user's stale recommendations, then
// creates one recommendation for every active pattern, largest savings first,
// that does not already have a pending one.
func (s *Synthesizer) GenerateRecommendations(ctx context.Context, userID string) GenerationResult {
	if userID == "" {
		return GenerationResult{Status: service.StatusError, Message: common.ErrMissingUserID.Error()}
	}
	now := s.now()
	fields := common.Fields{"user_id": userID}

	expired, err := s.recs.ExpireOld(ctx, userID, now)
	if err != nil {
		common.LogError(ctx, err, "failed to expire recommendations", fields)
		return GenerationResult{Status: service.StatusError, Message: err.Error()}
	}

	patterns, err := s.patterns.GetPatternsBySavingsPotential(ctx, userID, 0)
	if err != nil {
		common.LogError(ctx, err, "failed to load active patterns", fields)
		return GenerationResult{Status: service.StatusError, Message: err.Error(), RecommendationsExpired: expired}
	}

	result := GenerationResult{
		Status:                 service.StatusSuccess,
		PatternsAnalyzed:       len(patterns),
		RecommendationsExpired: expired,
	}
	if len(patterns) == 0 {
		slog.Warn("no active patterns to build recommendations from", "user_id", userID)
		result.Status = service.StatusNoPatterns
		return result
	}

	for _, p := range patterns {
		if err := ctx.Err(); err != nil {
			result.Status = service.StatusError
			result.Message = fmt.Sprintf("generation cancelled: %v", err)
			return result
		}

		rec, err := s.generate(ctx, now, p)
		if err != nil {
			common.LogError(ctx, err, "failed to generate recommendation", common.Fields{
				"user_id":    userID,
				"pattern_id": p.ID,
			})
			result.Status = service.StatusError
			result.Message = err.Error()
			return result
		}
		if rec == nil {
			continue
		}
		result.Recommendations = append(result.Recommendations, rec)
		result.RecommendationsGenerated++
	}

	slog.Info("recommendations generated",
		"user_id", userID,
		"patterns", result.PatternsAnalyzed,
		"generated", result.RecommendationsGenerated,
		"expired", result.RecommendationsExpired)
	return result
}

// generate returns nil without error when the pattern is skipped.
func (s *Synthesizer) generate(ctx context.Context, now time.Time, p *model.Pattern) (*model.Recommendation, error) {
	pending, err := s.recs.GetPendingForPattern(ctx, p.UserID, p.ID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		common.LogDebug(ctx, "pattern already has a pending recommendation", common.Fields{
			"pattern_id":        p.ID,
			"recommendation_id": pending.ID,
		})
		return nil, nil
	}

	build, ok := builders[p.Type]
	if !ok {
		common.LogWarn(ctx, "unsupported pattern type for recommendation", common.Fields{
			"pattern_id": p.ID,
			"type":       p.Type,
		})
		return nil, nil
	}

	rec := model.NewRecommendation(p.UserID, p.ID, now, s.settings.Expiry)
	rec.Priority = Priority(p)
	rec.Content, rec.Context = build(s.messages, p)

	if _, err := s.recs.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save recommendation for pattern %s: %w", p.ID, err)
	}
	slog.Debug("created recommendation",
		"id", rec.ID,
		"pattern_id", p.ID,
		"type", p.Type,
		"priority", rec.Priority)
	return rec, nil
}
