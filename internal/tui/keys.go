package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the form.
type keyMap struct {
	// Focus
	Next key.Binding
	Prev key.Binding

	// Connection
	Connect    key.Binding
	Disconnect key.Binding

	// Presence
	Publish    key.Binding
	Clear      key.Binding
	ResetTimer key.Binding
	ToggleAuto key.Binding

	// History
	HistoryNext key.Binding
	HistoryPrev key.Binding

	// Global
	Help key.Binding
	Quit key.Binding
}

// defaultKeyMap returns the default key bindings.
func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "Next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "Previous field"),
		),

		Connect: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "Connect"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "Disconnect"),
		),

		Publish: key.NewBinding(
			key.WithKeys("ctrl+s", "enter"),
			key.WithHelp("ctrl+s", "Update presence"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "Clear presence"),
		),
		ResetTimer: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "Reset timer"),
		),
		ToggleAuto: key.NewBinding(
			key.WithKeys("ctrl+a"),
			key.WithHelp("ctrl+a", "Toggle auto-update"),
		),

		HistoryNext: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "Next history value"),
		),
		HistoryPrev: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("ctrl+p", "Previous history value"),
		),

		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "Toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "Quit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Publish, k.Connect, k.ToggleAuto, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev},
		{k.Connect, k.Disconnect},
		{k.Publish, k.Clear, k.ResetTimer, k.ToggleAuto},
		{k.HistoryNext, k.HistoryPrev},
		{k.Help, k.Quit},
	}
}
