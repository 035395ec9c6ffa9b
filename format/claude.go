package format

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/ncklrs/agentstream/stream"
)

// ClaudeParser handles newline-delimited JSON from the Claude CLI. It
// accepts both the headless stream-json protocol and the interactive
// transcript dialect; the two share top-level discriminators and the
// differences live entirely in the payload, which is preserved verbatim.
type ClaudeParser struct{}

// ParseLine decodes one JSONL record. Blank lines yield nothing; a
// malformed line yields a ParseError and the parser stays usable.
func (p *ClaudeParser) ParseLine(line []byte, at time.Time) (*stream.Event, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		return nil, newParseError(FormatClaudeCLI, line, err)
	}
	payload := stream.Payload(obj)
	typ := payload.Str("type")
	if typ == "" {
		// Interactive transcripts contain a few untyped envelope records
		// (e.g. the summary line); keep them addressable for rendering.
		typ = "unknown"
	}
	return &stream.Event{
		Source:     stream.SourceClaude,
		Type:       typ,
		Payload:    payload,
		ReceivedAt: at,
	}, nil
}
