package format

import (
	"path/filepath"

	"github.com/ncklrs/agentstream/stream"
)

// LabelHint inspects an event for a better human-facing session label
// than the adapter-derived default. Returns "" when the event carries
// nothing useful. This keeps format-specific field knowledge out of the
// registry and dispatcher.
func LabelHint(ev *stream.Event) string {
	switch ev.Source {
	case stream.SourceClaude:
		// Interactive transcripts tag records with a human slug.
		if slug := ev.Payload.Str("slug"); slug != "" {
			return slug
		}
	case stream.SourceCodex:
		if ev.Type == "session_meta.session_meta" || ev.Type == "session_meta" {
			if inner := ev.Payload.Map("payload"); inner != nil {
				if cwd := inner.Str("cwd"); cwd != "" {
					return filepath.Base(cwd)
				}
			}
		}
	}
	return ""
}
