package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts.
type KeyMap struct {
	// Navigation
	Up   key.Binding
	Down key.Binding

	// Actions
	Act         key.Binding
	Dismiss     key.Binding
	NotRelevant key.Binding
	Save        key.Binding
	Helpful     key.Binding
	NotHelpful  key.Binding

	// Application
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		Act: key.NewBinding(
			key.WithKeys("a", "enter"),
			key.WithHelp("a/Enter", "I did it"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "dismiss"),
		),
		NotRelevant: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "not relevant"),
		),
		Save: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "save for later"),
		),
		Helpful: key.NewBinding(
			key.WithKeys("+"),
			key.WithHelp("+", "helpful"),
		),
		NotHelpful: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "not helpful"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q/Esc", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Act, k.Dismiss, k.Save, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Act, k.Dismiss, k.NotRelevant, k.Save},
		{k.Helpful, k.NotHelpful},
		{k.Refresh, k.Help, k.Quit},
	}
}
