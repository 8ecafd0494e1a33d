package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/config"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/service"
)

// AnalysisResult reports one analysis pass.
type AnalysisResult struct {
	PatternTypes         map[model.PatternType]int    `json:"pattern_types"`
	DetectorErrors       map[model.PatternType]string `json:"detector_errors,omitempty"`
	Status               service.Status               `json:"status"`
	Message              string                       `json:"message,omitempty"`
	Patterns             []*model.Pattern             `json:"-"`
	PatternsFound        int                          `json:"patterns_found"`
	TransactionsAnalyzed int                          `json:"transactions_analyzed"`
	LimitedAnalysis      bool                         `json:"limited_analysis"`
}

func errorResult(msg string) AnalysisResult {
	return AnalysisResult{Status: service.StatusError, Message: msg}
}

// Analyzer runs enrichment and the pattern detectors for one user at a time.
type Analyzer struct {
	deps      Deps
	now       func() time.Time
	enricher  *Enricher
	flight    singleflight.Group
	detectors []Detector
	cfg       config.Thresholds
}

// NewAnalyzer creates an analyzer with the four standard detectors.
func NewAnalyzer(deps Deps, cfg config.Thresholds) (*Analyzer, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Analyzer{
		deps:     deps,
		cfg:      cfg,
		now:      time.Now,
		enricher: NewEnricher(deps.Transactions, cfg),
		detectors: []Detector{
			NewMicroExpenseDetector(deps.Transactions, deps.Patterns, cfg),
			NewRecurringDetector(deps.Transactions, deps.Patterns, cfg),
			NewTemporalDetector(deps.Transactions, deps.Patterns, cfg),
			NewCategoryDeviationDetector(deps.Transactions, deps.Patterns, cfg),
		},
	}, nil
}

// WithClock replaces the time source.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// WithDetectors replaces the detector set.
func (a *Analyzer) WithDetectors(detectors ...Detector) *Analyzer {
	a.detectors = detectors
	return a
}

// AnalyzeUserTransactions enriches the user's stale transactions, runs every
// detector and stamps the transactions as analyzed. Concurrent calls for the
// same user share a single pass. It never panics and never returns an error;
// failures are reported through the result status.
func (a *Analyzer) AnalyzeUserTransactions(ctx context.Context, userID string) AnalysisResult {
	if userID == "" {
		return errorResult(common.ErrMissingUserID.Error())
	}

	v, _, shared := a.flight.Do(userID, func() (any, error) {
		return a.analyzeGuarded(ctx, userID), nil
	})
	if shared {
		slog.Debug("joined in-flight analysis", "user_id", userID)
	}
	return v.(AnalysisResult)
}

func (a *Analyzer) analyzeGuarded(ctx context.Context, userID string) (result AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("analysis panicked", "user_id", userID, "panic", r)
			result = errorResult(fmt.Sprintf("analysis failed: %v", r))
		}
	}()
	return a.analyze(ctx, userID)
}

func (a *Analyzer) analyze(ctx context.Context, userID string) AnalysisResult {
	now := a.now()
	fields := common.Fields{"user_id": userID}

	current, err := a.deps.Transactions.GetTransactionsToAnalyze(ctx, userID, now, a.cfg.MaxAge)
	if err != nil {
		common.LogError(ctx, err, "failed to load transactions to analyze", fields)
		return errorResult(err.Error())
	}
	if len(current) == 0 {
		return AnalysisResult{
			Status:       service.StatusNoData,
			Message:      common.ErrNoTransactions.Error(),
			PatternTypes: emptyPatternTypes(),
		}
	}

	if _, err := a.enricher.Enrich(ctx, current); err != nil {
		common.LogError(ctx, err, "failed to enrich transactions", fields)
		return errorResult(err.Error())
	}

	historical, err := a.deps.Transactions.GetByUserIDAndDateRange(ctx, userID, now.Add(-a.cfg.HistoricalWindow()), now)
	if err != nil {
		common.LogError(ctx, err, "failed to load historical transactions", fields)
		return errorResult(err.Error())
	}

	result := AnalysisResult{
		Status:               service.StatusSuccess,
		TransactionsAnalyzed: len(current),
		PatternTypes:         emptyPatternTypes(),
		LimitedAnalysis:      len(historical) < a.cfg.MinTransactionsForPattern,
	}
	if result.LimitedAnalysis {
		common.LogInfo(ctx, "limited analysis, history too short", common.Fields{
			"user_id":    userID,
			"historical": len(historical),
		})
	}

	in := Input{UserID: userID, Current: current, Historical: historical, Now: now}
	for _, d := range a.detectors {
		if err := ctx.Err(); err != nil {
			return errorResult(fmt.Sprintf("analysis cancelled: %v", err))
		}
		if result.LimitedAnalysis && d.RequiresHistory() {
			continue
		}

		patterns, detectErr := d.Detect(ctx, in)
		if detectErr != nil {
			common.LogError(ctx, detectErr, "detector failed", common.Fields{
				"user_id":  userID,
				"detector": d.Name(),
			})
			if result.DetectorErrors == nil {
				result.DetectorErrors = make(map[model.PatternType]string)
			}
			result.DetectorErrors[d.Name()] = detectErr.Error()
			continue
		}

		result.PatternTypes[d.Name()] += len(patterns)
		result.PatternsFound += len(patterns)
		result.Patterns = append(result.Patterns, patterns...)
	}

	for _, txn := range current {
		txn.MarkAnalyzed(now)
		if _, err := a.deps.Transactions.MarkAnalyzed(ctx, txn.ID, now); err != nil {
			common.LogError(ctx, err, "failed to mark transaction analyzed", common.Fields{
				"user_id":        userID,
				"transaction_id": txn.ID,
			})
			result.Status = service.StatusError
			result.Message = err.Error()
			return result
		}
	}

	slog.Info("analysis complete",
		"user_id", userID,
		"transactions", result.TransactionsAnalyzed,
		"patterns", result.PatternsFound,
		"limited", result.LimitedAnalysis)
	return result
}

func emptyPatternTypes() map[model.PatternType]int {
	return map[model.PatternType]int{
		model.PatternMicroExpense:      0,
		model.PatternRecurring:         0,
		model.PatternTemporal:          0,
		model.PatternCategoryDeviation: 0,
	}
}
