package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// RecommendationStatus is the visibility state of a recommendation.
type RecommendationStatus string

// Recommendation statuses. Pending is initial; acted upon, dismissed and
// expired are terminal.
const (
	RecommendationPending   RecommendationStatus = "pending"
	RecommendationShown     RecommendationStatus = "shown"
	RecommendationActedUpon RecommendationStatus = "acted_upon"
	RecommendationDismissed RecommendationStatus = "dismissed"
	RecommendationExpired   RecommendationStatus = "expired"
)

// IsTerminal reports whether no further transitions are allowed.
func (s RecommendationStatus) IsTerminal() bool {
	switch s {
	case RecommendationActedUpon, RecommendationDismissed, RecommendationExpired:
		return true
	default:
		return false
	}
}

// Lifecycle defaults.
const (
	DefaultRecommendationTTL = 30 * 24 * time.Hour
	MaxShowsBeforeCooldown   = 3
	ShowCooldown             = 7 * 24 * time.Hour
)

// Dismiss reasons that also retire the underlying pattern.
const (
	DismissNotRelevant   = "not_relevant"
	DismissNotInterested = "not_interested"
)

// RetiresPattern reports whether a dismiss reason should mark the pattern ignored.
func RetiresPattern(reason string) bool {
	return reason == DismissNotRelevant || reason == DismissNotInterested
}

// Action types suggested by recommendations.
const (
	ActionReduce       = "reduce"
	ActionRedistribute = "redistribute"
	ActionOptimize     = "optimize"
)

// Content is the user-facing copy of a recommendation.
type Content struct {
	Title             string  `json:"title"`
	Message           string  `json:"message"`
	Timeframe         string  `json:"timeframe"`
	ActionType        string  `json:"actionType"`
	ActionDescription string  `json:"actionDescription"`
	SavingsEstimate   float64 `json:"savingsEstimate"`
}

// RecommendationContext snapshots the pattern data a recommendation was built from.
type RecommendationContext struct {
	RelevantAmounts    map[string]float64 `json:"relevantAmounts"`
	TemporalInfo       map[string]any     `json:"temporalInfo"`
	RelevantCategories []string           `json:"relevantCategories"`
}

// Feedback is optional user feedback on a recommendation.
type Feedback struct {
	IsHelpful *bool   `json:"isHelpful"`
	Rating    *int    `json:"rating"`
	Comment   *string `json:"comment"`
}

// UserInteraction tracks what the user did with a recommendation.
type UserInteraction struct {
	DismissReason *string  `json:"dismissReason"`
	Feedback      Feedback `json:"feedback"`
	Seen          bool     `json:"seen"`
	Dismissed     bool     `json:"dismissed"`
	SavedForLater bool     `json:"savedForLater"`
	ActionTaken   bool     `json:"actionTaken"`
}

// Recommendation is a prioritized, expiring suggestion built from one pattern.
type Recommendation struct {
	CreatedAt       time.Time             `json:"created_at"`
	ExpiresAt       time.Time             `json:"expires_at"`
	LastShownAt     *time.Time            `json:"last_shown_at"`
	UpdatedAt       *time.Time            `json:"updated_at,omitempty"`
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	PatternID       string                `json:"pattern_id"`
	Status          RecommendationStatus  `json:"status"`
	Content         Content               `json:"content"`
	Context         RecommendationContext `json:"context"`
	UserInteraction UserInteraction       `json:"user_interaction"`
	ShowCount       int                   `json:"show_count"`
	Priority        int                   `json:"priority"`
}

// NewRecommendation returns a pending recommendation expiring ttl after createdAt.
func NewRecommendation(userID, patternID string, createdAt time.Time, ttl time.Duration) *Recommendation {
	if ttl <= 0 {
		ttl = DefaultRecommendationTTL
	}
	return &Recommendation{
		UserID:    userID,
		PatternID: patternID,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(ttl),
		Status:    RecommendationPending,
		Priority:  5,
		Context: RecommendationContext{
			RelevantCategories: []string{},
			RelevantAmounts:    map[string]float64{},
			TemporalInfo:       map[string]any{},
		},
	}
}

// IsExpired reports whether now is past the expiry time.
func (r *Recommendation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// ShouldShow reports whether the recommendation is eligible for display at now.
// It never mutates the recommendation.
func (r *Recommendation) ShouldShow(now time.Time) bool {
	if r.IsExpired(now) || r.Status.IsTerminal() {
		return false
	}
	if r.UserInteraction.Dismissed || r.UserInteraction.ActionTaken {
		return false
	}
	if r.ShowCount > MaxShowsBeforeCooldown && r.LastShownAt != nil && now.Sub(*r.LastShownAt) < ShowCooldown {
		return false
	}
	return true
}

func (r *Recommendation) checkOpen() error {
	if r.Status.IsTerminal() {
		return fmt.Errorf("%w: recommendation %s is %s", ErrInvalidTransition, r.ID, r.Status)
	}
	return nil
}

// MarkShown records a display. The first display moves pending to shown;
// later displays only bump the counters.
func (r *Recommendation) MarkShown(now time.Time) (Patch, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	r.ShowCount++
	r.LastShownAt = &now
	r.UserInteraction.Seen = true
	patch := Patch{
		"show_count":            r.ShowCount,
		"last_shown_at":         now,
		"user_interaction.seen": true,
	}
	if r.Status == RecommendationPending {
		r.Status = RecommendationShown
		patch["status"] = r.Status
	}
	return patch, nil
}

// MarkActedUpon records that the user followed the recommendation.
func (r *Recommendation) MarkActedUpon() (Patch, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	r.Status = RecommendationActedUpon
	r.UserInteraction.ActionTaken = true
	return Patch{
		"status":                       r.Status,
		"user_interaction.actionTaken": true,
	}, nil
}

// Dismiss records that the user rejected the recommendation. An empty reason
// is stored as null.
func (r *Recommendation) Dismiss(reason string) (Patch, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	r.Status = RecommendationDismissed
	r.UserInteraction.Dismissed = true
	patch := Patch{
		"status":                     r.Status,
		"user_interaction.dismissed": true,
	}
	if reason != "" {
		r.UserInteraction.DismissReason = &reason
		patch["user_interaction.dismissReason"] = reason
	} else {
		patch["user_interaction.dismissReason"] = nil
	}
	return patch, nil
}

// SaveForLater flags the recommendation without changing its status.
func (r *Recommendation) SaveForLater() (Patch, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	r.UserInteraction.SavedForLater = true
	return Patch{"user_interaction.savedForLater": true}, nil
}

// AddFeedback stores whichever feedback fields are set. Feedback is accepted
// in any state, including terminal ones.
func (r *Recommendation) AddFeedback(f Feedback) (Patch, error) {
	if f.IsHelpful == nil && f.Rating == nil && f.Comment == nil {
		return nil, fmt.Errorf("%w: no feedback given", ErrInvalidFeedback)
	}
	if f.Rating != nil && (*f.Rating < 1 || *f.Rating > 5) {
		return nil, fmt.Errorf("%w: rating %d outside 1-5", ErrInvalidFeedback, *f.Rating)
	}

	patch := Patch{}
	if f.IsHelpful != nil {
		r.UserInteraction.Feedback.IsHelpful = f.IsHelpful
		patch["user_interaction.feedback.isHelpful"] = *f.IsHelpful
	}
	if f.Rating != nil {
		r.UserInteraction.Feedback.Rating = f.Rating
		patch["user_interaction.feedback.rating"] = *f.Rating
	}
	if f.Comment != nil {
		r.UserInteraction.Feedback.Comment = f.Comment
		patch["user_interaction.feedback.comment"] = *f.Comment
	}
	return patch, nil
}

// Expire moves a non-terminal recommendation to expired.
func (r *Recommendation) Expire() (Patch, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	r.Status = RecommendationExpired
	return Patch{"status": r.Status}, nil
}

// DecodeRecommendation builds a Recommendation from a stored document.
// A missing expiry defaults to the standard TTL after creation.
func DecodeRecommendation(data []byte) (*Recommendation, error) {
	var r Recommendation
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: recommendation: %v", ErrInvalidDocument, err)
	}

	switch {
	case r.ID == "":
		return nil, fmt.Errorf("%w: recommendation missing id", ErrInvalidDocument)
	case r.UserID == "":
		return nil, fmt.Errorf("%w: recommendation %s missing user_id", ErrInvalidDocument, r.ID)
	case r.PatternID == "":
		return nil, fmt.Errorf("%w: recommendation %s missing pattern_id", ErrInvalidDocument, r.ID)
	}

	if r.Status == "" {
		r.Status = RecommendationPending
	}
	if r.ExpiresAt.IsZero() {
		r.ExpiresAt = r.CreatedAt.Add(DefaultRecommendationTTL)
	}
	if r.Context.RelevantCategories == nil {
		r.Context.RelevantCategories = []string{}
	}
	if r.Context.RelevantAmounts == nil {
		r.Context.RelevantAmounts = map[string]float64{}
	}
	if r.Context.TemporalInfo == nil {
		r.Context.TemporalInfo = map[string]any{}
	}
	return &r, nil
}
