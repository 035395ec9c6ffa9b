package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ncklrs/agentstream/registry"
	"github.com/ncklrs/agentstream/render"
	"github.com/ncklrs/agentstream/stream"
)

const sidebarWidth = 30

// View renders the log pane, optional sidebar, and status bar.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "starting..."
	}
	logHeight := m.height - 1
	logWidth := m.width
	if m.sidebar {
		logWidth -= sidebarWidth
	}

	logPane := m.renderLog(logWidth, logHeight)
	body := logPane
	if m.sidebar {
		side := m.renderSidebar(sidebarWidth, logHeight)
		body = lipgloss.JoinHorizontal(lipgloss.Top, logPane, side)
	}
	return body + "\n" + m.renderStatus()
}

// renderLog shows the newest lines that fit, oldest first.
func (m Model) renderLog(width, height int) string {
	start := 0
	if len(m.lines) > height {
		start = len(m.lines) - height
	}
	rows := make([]string, 0, height)
	for _, l := range m.lines[start:] {
		rows = append(rows, m.renderLine(l, width))
	}
	for len(rows) < height {
		rows = append(rows, "")
	}
	return lipgloss.NewStyle().Width(width).Height(height).MaxWidth(width).Render(strings.Join(rows, "\n"))
}

func (m Model) renderLine(l logLine, width int) string {
	ts := timeStyle.Render(l.at.Format("15:04:05"))
	label := labelStyles[l.color%len(labelStyles)].Render(render.Truncate(l.label, 16))
	action := actionStyle.Render(fmt.Sprintf("%-9s", render.Truncate(l.line.Action, 9)))

	content := l.line.Content
	switch {
	case l.line.Err:
		content = errStyle.Render(content)
	case l.line.Dim:
		content = dimStyle.Render(content)
	}
	row := fmt.Sprintf("%s %s %s %s %s", ts, label, l.line.Icon, action, content)
	return lipgloss.NewStyle().MaxWidth(width).Render(row)
}

// renderSidebar lists sessions with state, counters, and cost.
func (m Model) renderSidebar(width, height int) string {
	sessions := m.engine.Registry().Snapshot()
	cursor := m.selected
	if cursor >= len(sessions) {
		cursor = len(sessions) - 1
	}
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("sessions"))
	b.WriteString("\n")
	for i, s := range sessions {
		b.WriteString(m.renderSessionRow(s, i == cursor))
		b.WriteString("\n")
	}
	return sidebarStyle.Width(width - 2).Height(height).Render(b.String())
}

func (m Model) renderSessionRow(s registry.Session, selected bool) string {
	color := 0
	if s.Color >= 0 {
		color = s.Color
	}
	name := labelStyles[color%len(labelStyles)].Render(render.Truncate(s.Label, 18))
	state := stateStyles[s.State.String()].Render(s.State.String())
	marker := "  "
	if selected {
		marker = cursorStyle.Render("▸ ")
	}
	row := fmt.Sprintf("%s%s %s\n    %d ev", marker, name, state, s.Events)
	if s.ParseErrs > 0 {
		row += fmt.Sprintf(" %s", errStyle.Render(fmt.Sprintf("%d bad", s.ParseErrs)))
	}
	if s.Cost > 0 {
		row += fmt.Sprintf(" $%.4f", s.Cost)
	}
	if !s.Visible {
		row += " hidden"
	}
	return row
}

// renderStatus builds the bottom bar: pause state, buffer depth, filter
// toggles, total cost, and key hints.
func (m Model) renderStatus() string {
	var parts []string
	if m.engine.Paused() {
		note := fmt.Sprintf("PAUSED +%d", m.engine.Buffered())
		if d := m.engine.Dropped(); d > 0 {
			note += fmt.Sprintf(" (%d dropped)", d)
		}
		parts = append(parts, pausedStyle.Render(note))
	}
	if !m.engine.KindVisible(stream.SourceClaude) {
		parts = append(parts, "claude hidden")
	}
	if !m.engine.KindVisible(stream.SourceCodex) {
		parts = append(parts, "codex hidden")
	}
	if total := m.engine.Registry().TotalCost(); total > 0 {
		parts = append(parts, fmt.Sprintf("$%.4f", total))
	}
	if m.ended {
		parts = append(parts, "stream ended")
	}
	parts = append(parts, "space pause · c clear · s sidebar · j/k+enter hide · 1/2 filter · q quit")
	return statusStyle.Width(m.width).Render(strings.Join(parts, "  "))
}
