package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/recommendation"
	"github.com/Veraticus/the-savings-must-flow/internal/tui/themes"
)

type interaction struct {
	details recommendation.InteractionDetails
	id      string
	kind    recommendation.InteractionType
}

type fakeReviewer struct {
	loadErr      error
	interactErr  error
	recs         []*model.Recommendation
	shown        []string
	interactions []interaction
	mu           sync.Mutex
	notFound     bool
}

func (f *fakeReviewer) Recommendations(_ context.Context, _ string, _ int) ([]*model.Recommendation, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.recs, nil
}

func (f *fakeReviewer) MarkShown(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, id)
	return true, nil
}

func (f *fakeReviewer) Interact(_ context.Context, id string, kind recommendation.InteractionType, details recommendation.InteractionDetails) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interactions = append(f.interactions, interaction{id: id, kind: kind, details: details})
	if f.interactErr != nil {
		return false, f.interactErr
	}
	return !f.notFound, nil
}

func newRecs(n int) []*model.Recommendation {
	created := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	recs := make([]*model.Recommendation, n)
	for i := range recs {
		rec := model.NewRecommendation("u1", fmt.Sprintf("pat-%d", i+1), created, 0)
		rec.ID = fmt.Sprintf("rec-%d", i+1)
		rec.Priority = 9 - i
		rec.Content = model.Content{
			Title:             fmt.Sprintf("Recommendation %d", i+1),
			Message:           "Spend less",
			ActionDescription: "Do something",
			SavingsEstimate:   1000,
			Timeframe:         "monthly",
		}
		recs[i] = rec
	}
	return recs
}

// send feeds msg to the model and runs every resulting command to completion.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for cmd != nil {
		out := cmd()
		if out == nil {
			break
		}
		if _, quit := out.(tea.QuitMsg); quit {
			break
		}
		next, cmd = m.Update(out)
		m = next.(Model)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func started(t *testing.T, reviewer *fakeReviewer) Model {
	t.Helper()
	m := New(context.Background(), reviewer, Config{UserID: "u1", Theme: themes.Default, Width: 80})
	return send(t, m, m.Init()())
}

func TestModel_LoadsAndMarksFirstShown(t *testing.T) {
	reviewer := &fakeReviewer{recs: newRecs(3)}
	m := started(t, reviewer)

	assert.False(t, m.loading)
	assert.Len(t, m.recs, 3)
	assert.Equal(t, []string{"rec-1"}, reviewer.shown)

	view := m.View()
	assert.Contains(t, view, "Recommendation 1")
	assert.Contains(t, view, "[P9]")
	assert.Contains(t, view, "$1,000 monthly")
}

func TestModel_NavigationMarksShownOnce(t *testing.T) {
	reviewer := &fakeReviewer{recs: newRecs(3)}
	m := started(t, reviewer)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = send(t, m, runes("j"))
	m = send(t, m, runes("j"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m = send(t, m, runes("k"))

	assert.Equal(t, 0, m.cursor)
	assert.Equal(t, []string{"rec-1", "rec-2", "rec-3"}, reviewer.shown)
}

func TestModel_Interactions(t *testing.T) {
	tests := []struct {
		name        string
		key         tea.KeyMsg
		wantKind    recommendation.InteractionType
		wantReason  string
		wantHelpful *bool
		removed     bool
		status      string
	}{
		{name: "act", key: runes("a"), wantKind: recommendation.InteractionActionTaken, removed: true, status: "Marked as done"},
		{name: "enter acts", key: tea.KeyMsg{Type: tea.KeyEnter}, wantKind: recommendation.InteractionActionTaken, removed: true},
		{name: "dismiss", key: runes("d"), wantKind: recommendation.InteractionDismiss, removed: true, status: "Dismissed"},
		{name: "not relevant", key: runes("x"), wantKind: recommendation.InteractionDismiss, wantReason: model.DismissNotRelevant, removed: true},
		{name: "save", key: runes("s"), wantKind: recommendation.InteractionSaveForLater, status: "Saved for later"},
		{name: "helpful", key: runes("+"), wantKind: recommendation.InteractionFeedback, wantHelpful: boolPtr(true), status: "Thanks"},
		{name: "not helpful", key: runes("-"), wantKind: recommendation.InteractionFeedback, wantHelpful: boolPtr(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reviewer := &fakeReviewer{recs: newRecs(2)}
			m := started(t, reviewer)

			m = send(t, m, tt.key)

			require.Len(t, reviewer.interactions, 1)
			got := reviewer.interactions[0]
			assert.Equal(t, "rec-1", got.id)
			assert.Equal(t, tt.wantKind, got.kind)
			assert.Equal(t, tt.wantReason, got.details.Reason)
			if tt.wantHelpful != nil {
				require.NotNil(t, got.details.Feedback)
				assert.Equal(t, *tt.wantHelpful, *got.details.Feedback.IsHelpful)
			}

			if tt.removed {
				require.Len(t, m.recs, 1)
				assert.Equal(t, "rec-2", m.recs[0].ID)
				assert.Contains(t, reviewer.shown, "rec-2", "the next recommendation is shown")
			} else {
				assert.Len(t, m.recs, 2)
			}
			if tt.status != "" {
				assert.Contains(t, m.View(), tt.status)
			}
		})
	}
}

func TestModel_Summary(t *testing.T) {
	reviewer := &fakeReviewer{recs: newRecs(3)}
	m := started(t, reviewer)

	m = send(t, m, runes("a"))
	m = send(t, m, runes("s"))
	m = send(t, m, runes("+"))
	m = send(t, m, runes("d"))

	assert.Equal(t, Summary{Acted: 1, Dismissed: 1, Saved: 1, Feedback: 1}, m.Summary())
	assert.Len(t, m.recs, 1)
}

func TestModel_Errors(t *testing.T) {
	t.Run("load error", func(t *testing.T) {
		m := started(t, &fakeReviewer{loadErr: errors.New("database locked")})
		assert.Contains(t, m.View(), "Error: database locked")
	})

	t.Run("interaction error keeps the item", func(t *testing.T) {
		reviewer := &fakeReviewer{recs: newRecs(2), interactErr: errors.New("disk full")}
		m := started(t, reviewer)
		m = send(t, m, runes("a"))

		assert.Len(t, m.recs, 2)
		assert.Contains(t, m.View(), "disk full")
	})

	t.Run("invalid transition drops the item", func(t *testing.T) {
		reviewer := &fakeReviewer{recs: newRecs(2), interactErr: fmt.Errorf("%w: expired", recommendation.ErrInvalidTransition)}
		m := started(t, reviewer)
		m = send(t, m, runes("a"))

		assert.Len(t, m.recs, 1)
	})

	t.Run("gone", func(t *testing.T) {
		reviewer := &fakeReviewer{recs: newRecs(1), notFound: true}
		m := started(t, reviewer)
		m = send(t, m, runes("s"))

		assert.Empty(t, m.recs)
		assert.Contains(t, m.View(), "no longer available")
	})
}

func TestModel_EmptyAndQuit(t *testing.T) {
	reviewer := &fakeReviewer{}
	m := started(t, reviewer)
	assert.Contains(t, m.View(), "No recommendations right now")

	m = send(t, m, runes("a"))
	assert.Empty(t, reviewer.interactions)

	next, cmd := m.Update(runes("q"))
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestModel_HelpToggle(t *testing.T) {
	m := started(t, &fakeReviewer{recs: newRecs(1)})
	assert.NotContains(t, m.View(), "not relevant")

	m = send(t, m, runes("?"))
	assert.Contains(t, m.View(), "not relevant")
}

func TestRun_Validation(t *testing.T) {
	_, err := Run(context.Background(), nil, Config{UserID: "u1"})
	assert.Error(t, err)
	_, err = Run(context.Background(), &fakeReviewer{}, Config{})
	assert.Error(t, err)
}

func TestThemes(t *testing.T) {
	assert.Equal(t, themes.CatppuccinMocha.Primary, themes.ByName("catppuccin").Primary)
	assert.Equal(t, themes.Default.Primary, themes.ByName("unknown").Primary)
}

func boolPtr(b bool) *bool { return &b }
