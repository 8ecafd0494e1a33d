package recommendation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/config"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/service"
	"github.com/Veraticus/the-savings-must-flow/internal/testutil"
)

func newTestSynthesizer(t *testing.T, repos testutil.Repos, now time.Time) *Synthesizer {
	t.Helper()
	s, err := NewSynthesizer(repos.Patterns, repos.Recommendations, config.DefaultRecommendationSettings())
	require.NoError(t, err)
	return s.WithClock(func() time.Time { return now })
}

func savePatterns(t *testing.T, repos testutil.Repos, patterns ...*model.Pattern) {
	t.Helper()
	for _, p := range patterns {
		_, err := repos.Patterns.Save(context.Background(), p)
		require.NoError(t, err)
	}
}

func TestNewSynthesizer(t *testing.T) {
	repos, _ := testutil.SetupMemoryRepos(t)

	_, err := NewSynthesizer(nil, repos.Recommendations, config.DefaultRecommendationSettings())
	assert.Error(t, err)

	settings := config.DefaultRecommendationSettings()
	settings.Locale = "??"
	_, err = NewSynthesizer(repos.Patterns, repos.Recommendations, settings)
	assert.Error(t, err)
}

func TestGenerateRecommendations(t *testing.T) {
	ctx := context.Background()
	repos, _ := testutil.SetupMemoryRepos(t)

	mystery := model.NewPattern("u1", model.PatternType("mystery"), "x", detectedAt)
	mystery.SavingsPotential = model.NewSavingsPotential(1000, 10, "guess")
	resolved := microPattern()
	resolved.Status = model.PatternResolved
	savePatterns(t, repos, microPattern(), recurringPattern(), deviationPattern(), mystery, resolved)

	now := detectedAt.Add(time.Hour)
	result := newTestSynthesizer(t, repos, now).GenerateRecommendations(ctx, "u1")

	require.Equal(t, service.StatusSuccess, result.Status, result.Message)
	assert.Equal(t, 4, result.PatternsAnalyzed)
	assert.Equal(t, 3, result.RecommendationsGenerated)
	assert.Equal(t, 0, result.RecommendationsExpired)
	require.Len(t, result.Recommendations, 3)

	// Largest savings first.
	first := result.Recommendations[0]
	assert.Equal(t, "Aumento significativo en gastos de travel", first.Content.Title)
	assert.Equal(t, 9, first.Priority)
	assert.Equal(t, 8, result.Recommendations[1].Priority)
	assert.Equal(t, 6, result.Recommendations[2].Priority)

	stored, err := repos.Recommendations.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for _, rec := range stored {
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, model.RecommendationPending, rec.Status)
		assert.Equal(t, 0, rec.ShowCount)
		assert.True(t, rec.CreatedAt.Equal(now))
		assert.True(t, rec.ExpiresAt.Equal(now.Add(30*24*time.Hour)))
		assert.NotEmpty(t, rec.Content.Message)
	}
}

func TestGenerateRecommendations_LogsSkippedPatterns(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(common.NewLogger(&buf, slog.LevelDebug, "json"))
	t.Cleanup(func() { slog.SetDefault(previous) })

	ctx := context.Background()
	repos, _ := testutil.SetupMemoryRepos(t)
	mystery := model.NewPattern("u1", model.PatternType("mystery"), "x", detectedAt)
	mystery.SavingsPotential = model.NewSavingsPotential(1000, 10, "guess")
	savePatterns(t, repos, mystery, microPattern())

	s := newTestSynthesizer(t, repos, detectedAt.Add(time.Hour))
	require.Equal(t, 1, s.GenerateRecommendations(ctx, "u1").RecommendationsGenerated)
	require.Equal(t, 0, s.GenerateRecommendations(ctx, "u1").RecommendationsGenerated)

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN","msg":"unsupported pattern type for recommendation"`)
	assert.Contains(t, out, `"type":"mystery"`)
	assert.Contains(t, out, `"msg":"pattern already has a pending recommendation"`)
}

func TestGenerateRecommendations_SinglePendingPerPattern(t *testing.T) {
	ctx := context.Background()
	repos, _ := testutil.SetupMemoryRepos(t)
	savePatterns(t, repos, microPattern(), recurringPattern())

	s := newTestSynthesizer(t, repos, detectedAt)
	for i := 0; i < 3; i++ {
		s.GenerateRecommendations(ctx, "u1")
	}

	pending, err := repos.Recommendations.GetByStatus(ctx, "u1", model.RecommendationPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	perPattern := make(map[string]int)
	for _, rec := range pending {
		perPattern[rec.PatternID]++
	}
	for patternID, n := range perPattern {
		assert.Equal(t, 1, n, "pattern %s", patternID)
	}

	again := s.GenerateRecommendations(ctx, "u1")
	assert.Equal(t, service.StatusSuccess, again.Status)
	assert.Equal(t, 2, again.PatternsAnalyzed)
	assert.Equal(t, 0, again.RecommendationsGenerated)
}

func TestGenerateRecommendations_ShownDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	repos, _ := testutil.SetupMemoryRepos(t)
	savePatterns(t, repos, microPattern())

	s := newTestSynthesizer(t, repos, detectedAt)
	first := s.GenerateRecommendations(ctx, "u1")
	require.Len(t, first.Recommendations, 1)

	rec := first.Recommendations[0]
	patch, err := rec.MarkShown(detectedAt)
	require.NoError(t, err)
	_, err = repos.Recommendations.Apply(ctx, rec.ID, patch)
	require.NoError(t, err)

	assert.Equal(t, 1, s.GenerateRecommendations(ctx, "u1").RecommendationsGenerated)
}

func TestGenerateRecommendations_ExpiresFirst(t *testing.T) {
	ctx := context.Background()
	repos, _ := testutil.SetupMemoryRepos(t)
	patterns := []*model.Pattern{microPattern()}
	savePatterns(t, repos, patterns...)

	old := model.NewRecommendation("u1", patterns[0].ID, detectedAt.AddDate(0, -2, 0), 0)
	_, err := repos.Recommendations.Save(ctx, old)
	require.NoError(t, err)

	result := newTestSynthesizer(t, repos, detectedAt).GenerateRecommendations(ctx, "u1")
	assert.Equal(t, service.StatusSuccess, result.Status)
	assert.Equal(t, 1, result.RecommendationsExpired)
	assert.Equal(t, 1, result.RecommendationsGenerated, "the expired one no longer blocks the pattern")

	stored, err := repos.Recommendations.GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecommendationExpired, stored.Status)
}

func TestGenerateRecommendations_NoPatterns(t *testing.T) {
	repos, _ := testutil.SetupMemoryRepos(t)
	result := newTestSynthesizer(t, repos, detectedAt).GenerateRecommendations(context.Background(), "u1")

	assert.Equal(t, service.StatusNoPatterns, result.Status)
	assert.Equal(t, 0, result.RecommendationsGenerated)
}

func TestGenerateRecommendations_Errors(t *testing.T) {
	t.Run("missing user", func(t *testing.T) {
		repos, _ := testutil.SetupMemoryRepos(t)
		result := newTestSynthesizer(t, repos, detectedAt).GenerateRecommendations(context.Background(), "")
		assert.Equal(t, service.StatusError, result.Status)
	})

	t.Run("save fails", func(t *testing.T) {
		repos, store := testutil.SetupMemoryRepos(t)
		savePatterns(t, repos, microPattern())
		store.FailWhen(func(op, collection string) error {
			if op == "add" && collection == service.CollectionRecommendations {
				return errors.New("read-only database")
			}
			return nil
		})

		result := newTestSynthesizer(t, repos, detectedAt).GenerateRecommendations(context.Background(), "u1")
		assert.Equal(t, service.StatusError, result.Status)
		assert.Contains(t, result.Message, "read-only database")
		assert.Equal(t, 0, result.RecommendationsGenerated)
	})

	t.Run("cancelled", func(t *testing.T) {
		repos, _ := testutil.SetupMemoryRepos(t)
		savePatterns(t, repos, microPattern())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := newTestSynthesizer(t, repos, detectedAt).GenerateRecommendations(ctx, "u1")
		assert.Equal(t, service.StatusError, result.Status)
	})
}
