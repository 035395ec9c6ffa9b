// Package tui is the terminal front end: a scrolling merged event log
// with a session sidebar and status bar, driven by the dispatch engine.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ncklrs/agentstream/dispatch"
	"github.com/ncklrs/agentstream/render"
	"github.com/ncklrs/agentstream/stream"
)

// maxLogLines bounds the in-memory log ring.
const maxLogLines = 2000

const tickEvery = 250 * time.Millisecond

// logLine is one rendered event held in the log ring.
type logLine struct {
	sessionID string
	label     string
	color     int
	kind      stream.SourceKind
	line      render.Line
	at        time.Time
}

// Model is the bubbletea model for the event viewer.
type Model struct {
	engine *dispatch.Engine

	width    int
	height   int
	lines    []logLine
	sidebar  bool
	selected int
	ended    bool
}

// NewModel builds the viewer over a running engine.
func NewModel(engine *dispatch.Engine) Model {
	return Model{engine: engine, sidebar: true}
}

type eventMsg stream.Event

type streamEndedMsg struct{}

type tickMsg time.Time

// waitForEvent blocks on the engine output until one event (or channel
// close) arrives.
func waitForEvent(ch <-chan stream.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamEndedMsg{}
		}
		return eventMsg(ev)
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the event pump and the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.engine.Events()), tick())
}
