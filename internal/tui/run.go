package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the reviewer and blocks until the user quits or ctx is done.
func Run(ctx context.Context, reviewer Reviewer, cfg Config) (Summary, error) {
	if reviewer == nil {
		return Summary{}, errors.New("reviewer is required")
	}
	if cfg.UserID == "" {
		return Summary{}, errors.New("user id is required")
	}

	p := tea.NewProgram(New(ctx, reviewer, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return Summary{}, fmt.Errorf("reviewer failed: %w", err)
	}

	if m, ok := final.(Model); ok {
		return m.Summary(), nil
	}
	return Summary{}, nil
}
