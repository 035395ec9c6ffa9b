package render

import "github.com/ncklrs/agentstream/stream"

// Line is one display-ready summary of an event.
type Line struct {
	// Icon is a single glyph keyed to the action class.
	Icon string
	// Action is the short verb column ("text", "Bash", "done", ...).
	Action string
	// Content is the flattened, truncated body.
	Content string
	// Err marks failures for error styling.
	Err bool
	// Dim marks low-signal meta lines (turn markers, init records).
	Dim bool
}

// Icons by action class.
const (
	iconText   = "●"
	iconThink  = "◦"
	iconTool   = "⚒"
	iconResult = "⮑"
	iconMeta   = "·"
	iconDone   = "✓"
	iconErr    = "✗"
)

// Summarize reduces a canonical event to one display line. The second
// return is false for events with no display value (pings, bookkeeping
// records, token counters); the caller skips those.
func Summarize(ev *stream.Event) (Line, bool) {
	switch ev.Source {
	case stream.SourceCodex:
		return summarizeCodex(ev)
	default:
		return summarizeClaude(ev)
	}
}
