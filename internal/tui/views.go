package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/the-savings-must-flow/internal/cli"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{m.theme.Title.Render(cli.SavingsIcon + " Savings recommendations")}

	switch {
	case m.loading:
		sections = append(sections, m.theme.StatusPending.Render("Loading recommendations..."))
	case len(m.recs) == 0:
		sections = append(sections, m.theme.Subtitle.Render("No recommendations right now. Analyze new transactions and generate again."))
	default:
		sections = append(sections, m.renderList(), m.renderDetail(m.recs[m.cursor]))
	}

	if m.lastError != nil {
		sections = append(sections, m.theme.StatusError.Render("Error: "+m.lastError.Error()))
	} else if m.status != "" {
		sections = append(sections, m.theme.StatusSuccess.Render(m.status))
	}

	sections = append(sections, m.help.View(m.keymap))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderList() string {
	lines := make([]string, 0, len(m.recs))
	for i, rec := range m.recs {
		line := fmt.Sprintf("%2d. [P%d] %s", i+1, rec.Priority, rec.Content.Title)
		if rec.UserInteraction.SavedForLater {
			line += " (saved)"
		}
		if i == m.cursor {
			lines = append(lines, m.theme.Selected.Render("> "+line))
			continue
		}
		lines = append(lines, m.theme.Normal.Render("  "+line))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetail(rec *model.Recommendation) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Bold.Render(rec.Content.Title),
		"",
		m.theme.Normal.Render(rec.Content.Message),
		"",
		m.theme.StatusInfo.Render("What to do: ")+m.theme.Normal.Render(rec.Content.ActionDescription),
		m.theme.StatusInfo.Render("Estimated savings: ")+
			m.theme.Normal.Render(cli.FormatAmount(rec.Content.SavingsEstimate)+" "+rec.Content.Timeframe),
		m.theme.Subtitle.Render("Expires "+rec.ExpiresAt.Format("2006-01-02")),
	)

	style := m.theme.RoundedBox
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(body)
}
