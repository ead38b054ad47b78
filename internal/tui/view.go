package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// historyPreview is how many recent values are listed under a history field.
const historyPreview = 3

// View implements tea.Model.
func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.styles.Panel.Render(m.renderForm()))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

// renderHeader shows the connection state and the running timer.
func (m Model) renderHeader() string {
	conn := m.styles.Offline.Render("○ Disconnected")
	if m.out.Connected {
		conn = m.styles.Connected.Render("● Connected") + m.styles.Muted.Render(" as "+m.out.Identity)
	}

	mode := "manual"
	if m.auto {
		mode = fmt.Sprintf("auto every %s", m.sess.Interval())
	}
	elapsed := m.styles.Timer.Render(m.out.Timer.Display) + m.styles.Muted.Render(" elapsed ("+mode+")")

	return lipgloss.JoinHorizontal(lipgloss.Top,
		m.styles.Title.Render("cordpush"), "  ", conn, "   ", elapsed)
}

// renderForm lists every input with its label.
func (m Model) renderForm() string {
	var b strings.Builder
	for f := field(0); f < fieldCount; f++ {
		label := m.styles.Label
		if f == m.focus {
			label = m.styles.Focused
		}
		b.WriteString(label.Render(fieldLabels[f]))
		b.WriteString(m.inputs[f].View())
		b.WriteString("\n")

		if hf, ok := historyField[f]; ok && f == m.focus {
			entries, _ := m.sess.History(hf)
			if len(entries) > 0 {
				if len(entries) > historyPreview {
					entries = entries[:historyPreview]
				}
				b.WriteString(m.styles.Label.Render(""))
				b.WriteString(m.styles.History.Render("recent: " + strings.Join(entries, " · ")))
				b.WriteString("\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderStatus shows the result of the last action.
func (m Model) renderStatus() string {
	if m.out.Status == "" {
		return ""
	}
	if m.failed {
		return m.styles.Error.Render(m.out.Status)
	}
	return m.styles.Status.Render(m.out.Status)
}

// renderHelp draws the full key reference.
func (m Model) renderHelp() string {
	h := m.help
	h.ShowAll = true
	return m.styles.Title.Render("Keys") + "\n\n" + h.View(m.keys) + "\n\n" +
		m.styles.Muted.Render("Press any key to close.")
}
