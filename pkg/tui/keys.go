package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Connect key.Binding
	Mint    key.Binding
	Network key.Binding
	Quit    key.Binding
	Approve key.Binding
	Reject  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Connect: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "connect wallet"),
		),
		Mint: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mint NFT"),
		),
		Network: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "re-check network"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Approve: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "approve"),
		),
		Reject: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n", "reject"),
		),
	}
}
