package format

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/ncklrs/agentstream/stream"
)

// CodexParser handles newline-delimited JSON from the Codex CLI. The
// exec protocol uses dotted top-level types (thread.started, item.completed),
// interactive rollouts wrap records as {type, payload}, and the
// experimental exec protocol wraps as {id, msg}. For wrapped records the
// discriminator is composed as outer.inner (or the inner type alone when
// the wrapper itself is untyped) so consumers see a uniform namespace.
type CodexParser struct{}

// ParseLine decodes one JSONL record. Blank lines yield nothing; a
// malformed line yields a ParseError and the parser stays usable.
func (p *CodexParser) ParseLine(line []byte, at time.Time) (*stream.Event, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		return nil, newParseError(FormatCodex, line, err)
	}
	payload := stream.Payload(obj)
	typ := payload.Str("type")
	inner := payload.Map("payload")
	if inner == nil {
		inner = payload.Map("msg")
	}
	if inner != nil {
		if it := inner.Str("type"); it != "" {
			if typ == "" {
				typ = it
			} else {
				typ = typ + "." + it
			}
		}
	}
	if typ == "" {
		typ = "unknown"
	}
	return &stream.Event{
		Source:     stream.SourceCodex,
		Type:       typ,
		Payload:    payload,
		ReceivedAt: at,
	}, nil
}
