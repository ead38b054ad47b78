package tui

import "github.com/charmbracelet/lipgloss"

// palette is the set of colors the form is drawn with.
type palette struct {
	Text    string
	Muted   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Border  string
	Focus   string
}

// defaultPalette follows Discord's dark theme.
var defaultPalette = palette{
	Text:    "#DBDEE1",
	Muted:   "#949BA4",
	Accent:  "#5865F2",
	Success: "#23A55A",
	Warning: "#F0B232",
	Danger:  "#F23F43",
	Border:  "#3F4147",
	Focus:   "#5865F2",
}

// styles holds pre-built Lipgloss styles for the form.
type styles struct {
	Title     lipgloss.Style
	Label     lipgloss.Style
	Focused   lipgloss.Style
	Muted     lipgloss.Style
	Timer     lipgloss.Style
	Connected lipgloss.Style
	Offline   lipgloss.Style
	Status    lipgloss.Style
	Error     lipgloss.Style
	Panel     lipgloss.Style
	History   lipgloss.Style
}

func newStyles(p palette) styles {
	return styles{
		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Accent)).
			Bold(true),

		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Muted)).
			Width(labelWidth),

		Focused: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Focus)).
			Bold(true).
			Width(labelWidth),

		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Muted)),

		Timer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Text)).
			Bold(true),

		Connected: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Success)).
			Bold(true),

		Offline: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Danger)),

		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Text)),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Warning)),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.Border)).
			Padding(0, 1),

		History: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Muted)).
			Italic(true),
	}
}
