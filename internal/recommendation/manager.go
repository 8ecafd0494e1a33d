package recommendation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/config"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

// Lifecycle errors.
var (
	// ErrInvalidTransition is returned when a terminal recommendation is changed.
	ErrInvalidTransition = model.ErrInvalidTransition
	// ErrInvalidFeedback is returned for empty or out-of-range feedback.
	ErrInvalidFeedback = model.ErrInvalidFeedback
	// ErrUnknownInteraction is returned for an unrecognized interaction type.
	ErrUnknownInteraction = errors.New("unknown interaction type")
)

// InteractionType is a user action on a recommendation.
type InteractionType string

// Interaction types.
const (
	InteractionDismiss      InteractionType = "dismiss"
	InteractionActionTaken  InteractionType = "action_taken"
	InteractionSaveForLater InteractionType = "save_for_later"
	InteractionFeedback     InteractionType = "feedback"
)

// ParseInteraction validates an interaction type name.
func ParseInteraction(s string) (InteractionType, error) {
	switch kind := InteractionType(s); kind {
	case InteractionDismiss, InteractionActionTaken, InteractionSaveForLater, InteractionFeedback:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownInteraction, s)
	}
}

// InteractionDetails carries the optional payload of an interaction.
type InteractionDetails struct {
	Feedback *model.Feedback
	// Reason is the dismiss reason, e.g. "not_relevant".
	Reason string
}

// Manager governs which recommendations a user sees and records what they do.
type Manager struct {
	patterns     PatternStore
	recs         RecommendationStore
	now          func() time.Time
	defaultLimit int
}

// NewManager creates a lifecycle manager.
func NewManager(patterns PatternStore, recs RecommendationStore, settings config.RecommendationSettings) *Manager {
	limit := settings.DefaultLimit
	if limit <= 0 {
		limit = config.DefaultRecommendationSettings().DefaultLimit
	}
	return &Manager{
		patterns:     patterns,
		recs:         recs,
		now:          time.Now,
		defaultLimit: limit,
	}
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// GetRecommendationsForUser expires stale recommendations and returns up to
// limit displayable ones, highest priority first and newest first on ties.
// A non-positive limit uses the configured default.
func (m *Manager) GetRecommendationsForUser(ctx context.Context, userID string, limit int) ([]*model.Recommendation, error) {
	if userID == "" {
		return nil, common.ErrMissingUserID
	}
	if limit <= 0 {
		limit = m.defaultLimit
	}
	now := m.now()

	if _, err := m.recs.ExpireOld(ctx, userID, now); err != nil {
		return nil, err
	}
	all, err := m.recs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	visible := make([]*model.Recommendation, 0, len(all))
	for _, rec := range all {
		if rec.ShouldShow(now) {
			visible = append(visible, rec)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].Priority != visible[j].Priority {
			return visible[i].Priority > visible[j].Priority
		}
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})

	if len(visible) > limit {
		visible = visible[:limit]
	}
	slog.Debug("fetched recommendations", "user_id", userID, "count", len(visible))
	return visible, nil
}

// MarkRecommendationShown records a display. It returns false without error
// when the recommendation had already expired; it is expired on the way.
func (m *Manager) MarkRecommendationShown(ctx context.Context, id string) (bool, error) {
	rec, now, expired, err := m.load(ctx, id)
	if err != nil || expired {
		return false, err
	}

	patch, err := rec.MarkShown(now)
	if err != nil {
		return false, err
	}
	ok, err := m.recs.Apply(ctx, id, patch)
	if err != nil {
		return false, err
	}
	if !ok {
		slog.Warn("recommendation not marked shown", "id", id)
	}
	return ok, nil
}

// UpdateRecommendationInteraction applies a user interaction. Acting on a
// recommendation resolves its pattern; dismissing it as not relevant or not
// interesting marks the pattern ignored.
func (m *Manager) UpdateRecommendationInteraction(ctx context.Context, id string, kind InteractionType, details InteractionDetails) (bool, error) {
	if _, err := ParseInteraction(string(kind)); err != nil {
		return false, err
	}
	if kind == InteractionFeedback && details.Feedback == nil {
		return false, fmt.Errorf("%w: feedback requires details", ErrInvalidFeedback)
	}

	rec, now, expired, err := m.load(ctx, id)
	if err != nil {
		return false, err
	}
	if expired && kind != InteractionFeedback {
		return false, fmt.Errorf("%w: recommendation %s expired", ErrInvalidTransition, id)
	}

	var (
		patch         model.Patch
		patternStatus model.PatternStatus
	)
	switch kind {
	case InteractionDismiss:
		patch, err = rec.Dismiss(details.Reason)
		if model.RetiresPattern(details.Reason) {
			patternStatus = model.PatternIgnored
		}
	case InteractionActionTaken:
		patch, err = rec.MarkActedUpon()
		patternStatus = model.PatternResolved
	case InteractionSaveForLater:
		patch, err = rec.SaveForLater()
	case InteractionFeedback:
		patch, err = rec.AddFeedback(*details.Feedback)
	}
	if err != nil {
		return false, err
	}

	ok, err := m.recs.Apply(ctx, id, patch)
	if err != nil {
		return false, err
	}
	if !ok {
		slog.Warn("interaction not recorded", "id", id, "interaction", kind)
		return false, nil
	}
	slog.Info("recorded interaction", "id", id, "interaction", kind)

	if patternStatus != "" {
		if err := m.retirePattern(ctx, rec.PatternID, patternStatus, now); err != nil {
			return true, err
		}
	}
	return true, nil
}

// load fetches a recommendation and lazily expires it. expired reports that
// the recommendation is, or just became, expired.
func (m *Manager) load(ctx context.Context, id string) (*model.Recommendation, time.Time, bool, error) {
	now := m.now()
	rec, err := m.recs.GetByID(ctx, id)
	if err != nil {
		return nil, now, false, err
	}

	if rec.Status == model.RecommendationExpired {
		return rec, now, true, nil
	}
	if rec.Status.IsTerminal() || !rec.IsExpired(now) {
		return rec, now, false, nil
	}

	patch, err := rec.Expire()
	if err != nil {
		return nil, now, false, err
	}
	if _, err := m.recs.Apply(ctx, id, patch); err != nil {
		return nil, now, false, fmt.Errorf("failed to expire recommendation %s: %w", id, err)
	}
	slog.Debug("expired recommendation on access", "id", id)
	return rec, now, true, nil
}

// retirePattern moves the pattern behind a recommendation out of active. A
// pattern that no longer exists is only logged.
func (m *Manager) retirePattern(ctx context.Context, patternID string, status model.PatternStatus, now time.Time) error {
	ok, err := m.patterns.UpdateStatus(ctx, patternID, status, now)
	if err != nil {
		return fmt.Errorf("failed to mark pattern %s %s: %w", patternID, status, err)
	}
	if !ok {
		slog.Warn("pattern behind recommendation not found", "pattern_id", patternID)
		return nil
	}
	slog.Debug("updated pattern status", "pattern_id", patternID, "status", status)
	return nil
}
