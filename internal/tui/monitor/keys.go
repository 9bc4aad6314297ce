package monitor

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the monitor key bindings.
type KeyMap struct {
	Sync    key.Binding
	Toggle  key.Binding
	Slower  key.Binding
	Faster  key.Binding
	Edit    key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Sync:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync now")),
		Toggle:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "toggle auto sync")),
		Slower:  key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "double interval")),
		Faster:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "halve interval")),
		Edit:    key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "set interval")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Sync, k.Toggle, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Sync, k.Toggle, k.Refresh},
		{k.Slower, k.Faster, k.Edit},
		{k.Help, k.Quit},
	}
}
