package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ncklrs/agentstream/render"
	"github.com/ncklrs/agentstream/stream"
)

// Update handles input, engine events, and the refresh tick.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.engine.TogglePause()
			return m, nil
		case "c":
			m.engine.Clear()
			m.lines = nil
			return m, nil
		case "s":
			m.sidebar = !m.sidebar
			return m, nil
		case "1":
			m.engine.SetKindVisible(stream.SourceClaude, !m.engine.KindVisible(stream.SourceClaude))
			return m, nil
		case "2":
			m.engine.SetKindVisible(stream.SourceCodex, !m.engine.KindVisible(stream.SourceCodex))
			return m, nil
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down", "j":
			if n := len(m.engine.Registry().Snapshot()); m.selected < n-1 {
				m.selected++
			}
			return m, nil
		case "enter", "v":
			m.toggleSelected()
			return m, nil
		}
		return m, nil

	case eventMsg:
		m.appendEvent(stream.Event(msg))
		return m, waitForEvent(m.engine.Events())

	case streamEndedMsg:
		m.ended = true
		return m, nil

	case tickMsg:
		// Sidebar and status read live registry snapshots in View; the
		// tick just forces a redraw between events.
		return m, tick()
	}
	return m, nil
}

// toggleSelected flips visibility of the sidebar's selected session.
func (m *Model) toggleSelected() {
	sessions := m.engine.Registry().Snapshot()
	if len(sessions) == 0 {
		return
	}
	if m.selected >= len(sessions) {
		m.selected = len(sessions) - 1
	}
	s := sessions[m.selected]
	m.engine.SetSessionVisible(s.ID, !s.Visible)
}

// appendEvent renders an event into the log ring, dropping the oldest
// line when full. Session label and color are captured at append time so
// the log stays stable when labels upgrade later.
func (m *Model) appendEvent(ev stream.Event) {
	line, ok := render.Summarize(&ev)
	if !ok {
		return
	}
	label := ev.SessionID
	color := 0
	if s, found := m.engine.Registry().Get(ev.SessionID); found {
		label = s.Label
		if s.Color >= 0 {
			color = s.Color
		}
	}
	if len(m.lines) >= maxLogLines {
		m.lines = m.lines[1:]
	}
	m.lines = append(m.lines, logLine{
		sessionID: ev.SessionID,
		label:     label,
		color:     color,
		kind:      ev.Source,
		line:      line,
		at:        ev.ReceivedAt,
	})
}
