package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the timer view.
type KeyMap struct {
	// Timer
	Toggle key.Binding
	Resume key.Binding

	// Help toggle
	Help key.Binding

	Quit key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys("s", " "),
			key.WithHelp("s/space", "start/stop"),
		),
		Resume: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "re-sync timer"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Quit, k.Help}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Resume},
		{k.Help, k.Quit},
	}
}
