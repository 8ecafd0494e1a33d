package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/the-savings-must-flow/internal/recommendation"
)

const requestTimeout = 10 * time.Second

// loadRecommendations fetches the user's displayable recommendations.
func (m Model) loadRecommendations() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()

		recs, err := m.reviewer.Recommendations(ctx, m.config.UserID, m.config.Limit)
		return recommendationsLoadedMsg{recs: recs, err: err}
	}
}

// markShown records that id was displayed.
func (m Model) markShown(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()

		_, err := m.reviewer.MarkShown(ctx, id)
		return shownMsg{id: id, err: err}
	}
}

// interact applies an interaction to id.
func (m Model) interact(id string, kind recommendation.InteractionType, details recommendation.InteractionDetails) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()

		ok, err := m.reviewer.Interact(ctx, id, kind, details)
		return interactionDoneMsg{id: id, kind: kind, ok: ok, err: err}
	}
}
