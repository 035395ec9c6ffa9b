// Package format detects and parses agent wire formats into canonical
// events. It is the only package that knows field-level details of the
// Claude and Codex stream shapes.
package format

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ncklrs/agentstream/stream"
)

// Format identifies one of the supported wire formats.
type Format string

const (
	// FormatAuto asks the pump to classify from the first non-empty line.
	FormatAuto Format = "auto"
	// FormatUnknown means classification failed; lines are counted but
	// never parsed for the remainder of the adapter's life.
	FormatUnknown Format = "unknown"
	// FormatClaudeCLI is newline-delimited JSON as emitted by
	// `claude -p --output-format stream-json` and by the interactive
	// CLI's on-disk session transcripts.
	FormatClaudeCLI Format = "claude-cli-jsonl"
	// FormatCodex is newline-delimited JSON as emitted by
	// `codex exec --json` and by interactive rollout transcripts.
	FormatCodex Format = "codex-jsonl"
	// FormatClaudeSSE is the raw Anthropic Messages API server-sent
	// event stream.
	FormatClaudeSSE Format = "claude-sse"
)

// claudeTypes are the top-level discriminators of the Claude CLI stream
// protocol. The interactive transcript dialect shares user/assistant/system
// and adds envelope-only types which are classified by their sessionId
// marker below.
var claudeTypes = map[string]bool{
	"system":       true,
	"assistant":    true,
	"user":         true,
	"result":       true,
	"stream_event": true,
}

// Detect classifies a stream from its first non-empty line. Detection is
// one-shot per adapter: the caller must not retry on later lines.
func Detect(line []byte) Format {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return FormatUnknown
	}
	if bytes.HasPrefix(line, []byte("data:")) || bytes.HasPrefix(line, []byte("event:")) {
		return FormatClaudeSSE
	}
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		return FormatUnknown
	}
	p := stream.Payload(obj)
	typ := p.Str("type")
	if claudeTypes[typ] {
		return FormatClaudeCLI
	}
	if strings.Contains(typ, ".") {
		return FormatCodex
	}
	// Codex interactive rollouts wrap every record in a payload object
	// (session_meta, event_msg, response_item, turn_context); the
	// experimental exec protocol wraps in msg instead.
	if p.Map("payload") != nil || p.Map("msg") != nil {
		return FormatCodex
	}
	// Claude interactive transcripts carry envelope-only record types
	// (summary, file-history-snapshot, ...) identified by their camelCase
	// session marker.
	if _, ok := obj["sessionId"]; ok {
		return FormatClaudeCLI
	}
	if _, ok := obj["leafUuid"]; ok {
		return FormatClaudeCLI
	}
	return FormatUnknown
}

// SourceKindOf maps a detected format to the agent family it belongs to.
// FormatUnknown defaults to claude so sessions always carry a kind.
func SourceKindOf(f Format) stream.SourceKind {
	if f == FormatCodex {
		return stream.SourceCodex
	}
	return stream.SourceClaude
}
