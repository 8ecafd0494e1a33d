// Package tui provides an interactive terminal reviewer for savings
// recommendations.
package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/recommendation"
	"github.com/Veraticus/the-savings-must-flow/internal/tui/themes"
)

// Reviewer is the lifecycle surface the reviewer drives.
type Reviewer interface {
	Recommendations(ctx context.Context, userID string, limit int) ([]*model.Recommendation, error)
	MarkShown(ctx context.Context, id string) (bool, error)
	Interact(ctx context.Context, id string, kind recommendation.InteractionType, details recommendation.InteractionDetails) (bool, error)
}

// Config holds the reviewer configuration.
type Config struct {
	Theme  themes.Theme
	UserID string
	Limit  int
	Width  int
	Height int
}

// Summary counts what the user did during a session.
type Summary struct {
	Acted     int
	Dismissed int
	Saved     int
	Feedback  int
}

// Model holds the reviewer state.
type Model struct {
	ctx       context.Context
	reviewer  Reviewer
	lastError error
	shown     map[string]bool
	theme     themes.Theme
	status    string
	recs      []*model.Recommendation
	help      help.Model
	keymap    KeyMap
	config    Config
	summary   Summary
	cursor    int
	width     int
	height    int
	loading   bool
	quitting  bool
}

// New creates a reviewer model.
func New(ctx context.Context, reviewer Reviewer, cfg Config) Model {
	h := help.New()
	h.Width = cfg.Width
	return Model{
		ctx:      ctx,
		reviewer: reviewer,
		config:   cfg,
		theme:    cfg.Theme,
		keymap:   DefaultKeyMap(),
		help:     h,
		shown:    make(map[string]bool),
		width:    cfg.Width,
		height:   cfg.Height,
		loading:  true,
	}
}

// Summary returns the session counters.
func (m Model) Summary() Summary {
	return m.summary
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.loadRecommendations()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case recommendationsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.lastError = msg.err
			return m, nil
		}
		m.lastError = nil
		m.recs = msg.recs
		m.clampCursor()
		return m, m.showCurrent()

	case shownMsg:
		if msg.err != nil {
			m.lastError = msg.err
		}
		return m, nil

	case interactionDoneMsg:
		return m.handleInteraction(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keymap.Refresh):
		m.loading = true
		m.status = ""
		return m, m.loadRecommendations()
	}

	current := m.current()
	if current == nil || m.loading {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keymap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, m.showCurrent()
	case key.Matches(msg, m.keymap.Down):
		if m.cursor < len(m.recs)-1 {
			m.cursor++
		}
		return m, m.showCurrent()
	case key.Matches(msg, m.keymap.Act):
		return m, m.interact(current.ID, recommendation.InteractionActionTaken, recommendation.InteractionDetails{})
	case key.Matches(msg, m.keymap.Dismiss):
		return m, m.interact(current.ID, recommendation.InteractionDismiss, recommendation.InteractionDetails{})
	case key.Matches(msg, m.keymap.NotRelevant):
		return m, m.interact(current.ID, recommendation.InteractionDismiss, recommendation.InteractionDetails{Reason: model.DismissNotRelevant})
	case key.Matches(msg, m.keymap.Save):
		return m, m.interact(current.ID, recommendation.InteractionSaveForLater, recommendation.InteractionDetails{})
	case key.Matches(msg, m.keymap.Helpful):
		return m, m.interact(current.ID, recommendation.InteractionFeedback, feedback(true))
	case key.Matches(msg, m.keymap.NotHelpful):
		return m, m.interact(current.ID, recommendation.InteractionFeedback, feedback(false))
	}
	return m, nil
}

func feedback(helpful bool) recommendation.InteractionDetails {
	return recommendation.InteractionDetails{Feedback: &model.Feedback{IsHelpful: &helpful}}
}

func (m Model) handleInteraction(msg interactionDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.lastError = msg.err
		m.status = ""
		if errors.Is(msg.err, recommendation.ErrInvalidTransition) {
			m.remove(msg.id)
			return m, m.showCurrent()
		}
		return m, nil
	}
	m.lastError = nil

	if !msg.ok {
		m.status = "Recommendation is no longer available"
		m.remove(msg.id)
		return m, m.showCurrent()
	}

	switch msg.kind {
	case recommendation.InteractionActionTaken:
		m.summary.Acted++
		m.status = "Nice work! Marked as done"
		m.remove(msg.id)
	case recommendation.InteractionDismiss:
		m.summary.Dismissed++
		m.status = "Dismissed"
		m.remove(msg.id)
	case recommendation.InteractionSaveForLater:
		m.summary.Saved++
		m.status = "Saved for later"
	case recommendation.InteractionFeedback:
		m.summary.Feedback++
		m.status = "Thanks for the feedback"
	}
	return m, m.showCurrent()
}

// current returns the recommendation under the cursor.
func (m Model) current() *model.Recommendation {
	if m.cursor < 0 || m.cursor >= len(m.recs) {
		return nil
	}
	return m.recs[m.cursor]
}

// showCurrent marks the focused recommendation shown once per session.
func (m Model) showCurrent() tea.Cmd {
	current := m.current()
	if current == nil || m.shown[current.ID] {
		return nil
	}
	m.shown[current.ID] = true
	return m.markShown(current.ID)
}

func (m *Model) remove(id string) {
	kept := make([]*model.Recommendation, 0, len(m.recs))
	for _, rec := range m.recs {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	m.recs = kept
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.recs) {
		m.cursor = len(m.recs) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}
