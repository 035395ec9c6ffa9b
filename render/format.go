// Package render turns canonical events into one-line display summaries.
// It is a consumer-side concern: nothing upstream of the dispatcher
// depends on it.
package render

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ncklrs/agentstream/stream"
)

// maxContent is the default width cap for summary content.
const maxContent = 160

// Truncate cuts s to at most max display cells, appending an ellipsis
// when anything was removed. Safe on multibyte text.
func Truncate(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "…")
}

// firstLine collapses s to its first non-empty line.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

// clean flattens text for single-line display.
func clean(s string) string {
	return Truncate(firstLine(s), maxContent)
}

// formatToolInput renders the interesting parameter of a tool call. Most
// tools have one field worth showing; everything else falls back to a
// compact key listing.
func formatToolInput(name string, input stream.Payload) string {
	if input == nil {
		return ""
	}
	switch name {
	case "Bash":
		return clean(input.Str("command"))
	case "Read", "Write", "NotebookEdit":
		return input.Str("file_path")
	case "Edit", "MultiEdit":
		return input.Str("file_path")
	case "Glob":
		return input.Str("pattern")
	case "Grep":
		q := input.Str("pattern")
		if p := input.Str("path"); p != "" {
			q += " in " + p
		}
		return q
	case "Task":
		if d := input.Str("description"); d != "" {
			return d
		}
		return clean(input.Str("prompt"))
	case "WebFetch":
		return input.Str("url")
	case "WebSearch":
		return input.Str("query")
	case "TodoWrite":
		return fmt.Sprintf("%d todos", len(input.List("todos")))
	}
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	return clean(fmt.Sprintf("{%s}", strings.Join(keys, ", ")))
}

// blockText extracts the text-ish field of a content block regardless of
// whether the wire form was a bare string or a structured block.
func blockText(v any) string {
	switch b := v.(type) {
	case string:
		return b
	case map[string]any:
		p := stream.Payload(b)
		if t := p.Str("text"); t != "" {
			return t
		}
		return p.Str("thinking")
	default:
		return ""
	}
}

// contentText flattens a message content field (string or block list)
// into displayable text.
func contentText(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, b := range c {
			if t := blockText(b); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}
