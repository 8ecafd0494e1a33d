// Package engine wires the document store, the pattern analyzer, the
// recommendation synthesizer and the lifecycle manager into one facade.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-savings-must-flow/internal/analysis"
	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/config"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/recommendation"
	"github.com/Veraticus/the-savings-must-flow/internal/service"
	"github.com/Veraticus/the-savings-must-flow/internal/storage"
)

// Config holds configuration options for the engine.
type Config struct {
	// Now overrides the clock shared by every component.
	Now             func() time.Time
	Recommendations config.RecommendationSettings
	Thresholds      config.Thresholds
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Thresholds:      config.DefaultThresholds(),
		Recommendations: config.DefaultRecommendationSettings(),
		Now:             time.Now,
	}
}

// Engine runs analysis and recommendation passes over one document store.
type Engine struct {
	store           service.DocumentStore
	transactions    *storage.TransactionRepository
	patterns        *storage.PatternRepository
	recommendations *storage.RecommendationRepository
	analyzer        *analysis.Analyzer
	synthesizer     *recommendation.Synthesizer
	manager         *recommendation.Manager
}

// New creates an engine with the default configuration.
func New(store service.DocumentStore) (*Engine, error) {
	return NewWithConfig(store, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(store service.DocumentStore, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: document store", common.ErrMissingConfig)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := &Engine{
		store:           store,
		transactions:    storage.NewTransactionRepository(store),
		patterns:        storage.NewPatternRepository(store),
		recommendations: storage.NewRecommendationRepository(store),
	}

	analyzer, err := analysis.NewAnalyzer(analysis.Deps{
		Transactions: e.transactions,
		Patterns:     e.patterns,
	}, cfg.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}
	e.analyzer = analyzer.WithClock(cfg.Now)

	synthesizer, err := recommendation.NewSynthesizer(e.patterns, e.recommendations, cfg.Recommendations)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}
	e.synthesizer = synthesizer.WithClock(cfg.Now)
	e.manager = recommendation.NewManager(e.patterns, e.recommendations, cfg.Recommendations).WithClock(cfg.Now)

	return e, nil
}

// Close closes the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Import stores transactions for analysis, skipping ids already present. It
// returns how many were newly stored.
func (e *Engine) Import(ctx context.Context, txns []*model.Transaction) (int, error) {
	saved, err := e.transactions.SaveTransactions(ctx, txns)
	if err != nil {
		return saved, fmt.Errorf("failed to import transactions: %w", err)
	}
	slog.Info("Imported transactions", "received", len(txns), "stored", saved)
	return saved, nil
}

// Analyze runs one analysis pass for the user.
func (e *Engine) Analyze(ctx context.Context, userID string) analysis.AnalysisResult {
	return e.analyzer.AnalyzeUserTransactions(ctx, userID)
}

// Generate turns the user's active patterns into recommendations.
func (e *Engine) Generate(ctx context.Context, userID string) recommendation.GenerationResult {
	return e.synthesizer.GenerateRecommendations(ctx, userID)
}

// RunResult reports a full analyze-then-generate pass.
type RunResult struct {
	Analysis   analysis.AnalysisResult         `json:"analysis"`
	Generation recommendation.GenerationResult `json:"generation"`
}

// Run analyzes the user's transactions and then generates recommendations.
// Generation still runs when analysis found nothing new, since earlier
// patterns may lack a pending recommendation. It is skipped only when
// analysis failed.
func (e *Engine) Run(ctx context.Context, userID string) RunResult {
	result := RunResult{Analysis: e.Analyze(ctx, userID)}
	if result.Analysis.Status == service.StatusError {
		result.Generation = recommendation.GenerationResult{
			Status:  service.StatusError,
			Message: "skipped: analysis failed",
		}
		return result
	}
	result.Generation = e.Generate(ctx, userID)
	return result
}

// Recommendations returns up to limit displayable recommendations.
func (e *Engine) Recommendations(ctx context.Context, userID string, limit int) ([]*model.Recommendation, error) {
	return e.manager.GetRecommendationsForUser(ctx, userID, limit)
}

// Recommendation returns one recommendation by id.
func (e *Engine) Recommendation(ctx context.Context, id string) (*model.Recommendation, error) {
	return e.recommendations.GetByID(ctx, id)
}

// MarkShown records that a recommendation was displayed.
func (e *Engine) MarkShown(ctx context.Context, id string) (bool, error) {
	return e.manager.MarkRecommendationShown(ctx, id)
}

// Interact applies a user interaction to a recommendation.
func (e *Engine) Interact(ctx context.Context, id string, kind recommendation.InteractionType, details recommendation.InteractionDetails) (bool, error) {
	return e.manager.UpdateRecommendationInteraction(ctx, id, kind, details)
}

// Patterns lists the user's patterns, largest savings first. An empty status
// lists every pattern.
func (e *Engine) Patterns(ctx context.Context, userID string, status model.PatternStatus) ([]*model.Pattern, error) {
	if userID == "" {
		return nil, common.ErrMissingUserID
	}

	var (
		patterns []*model.Pattern
		err      error
	)
	if status == "" {
		patterns, err = e.patterns.GetByUserID(ctx, userID)
	} else {
		patterns, err = e.patterns.GetByStatus(ctx, userID, status)
	}
	if err != nil {
		return nil, err
	}
	storage.SortBySavings(patterns)
	return patterns, nil
}
