package format

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/ncklrs/agentstream/stream"
)

// SSEParser handles the raw Anthropic Messages API server-sent event
// stream. It is stateful: event and data lines accumulate until the blank
// separator, which completes the frame and yields one event. Multiple data
// lines in a frame are joined with newlines per the SSE wire rules.
type SSEParser struct {
	eventName string
	data      [][]byte
}

// ParseLine feeds one line of the SSE stream. Framing lines yield nothing.
func (p *SSEParser) ParseLine(line []byte, at time.Time) (*stream.Event, error) {
	line = bytes.TrimRight(line, "\r\n")
	switch {
	case len(bytes.TrimSpace(line)) == 0:
		return p.flush(at)
	case bytes.HasPrefix(line, []byte(":")):
		// comment / keepalive
		return nil, nil
	case bytes.HasPrefix(line, []byte("event:")):
		p.eventName = string(bytes.TrimSpace(line[len("event:"):]))
		return nil, nil
	case bytes.HasPrefix(line, []byte("data:")):
		d := line[len("data:"):]
		if len(d) > 0 && d[0] == ' ' {
			d = d[1:]
		}
		p.data = append(p.data, append([]byte(nil), d...))
		return nil, nil
	default:
		// id:, retry:, and anything else are framing noise here
		return nil, nil
	}
}

// Flush completes a frame left open by a stream that ended without the
// trailing blank line.
func (p *SSEParser) Flush(at time.Time) (*stream.Event, error) {
	return p.flush(at)
}

func (p *SSEParser) flush(at time.Time) (*stream.Event, error) {
	if len(p.data) == 0 {
		p.eventName = ""
		return nil, nil
	}
	raw := bytes.Join(p.data, []byte("\n"))
	name := p.eventName
	p.data = nil
	p.eventName = ""

	// The API pings carry no renderable state.
	if name == "ping" {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, newParseError(FormatClaudeSSE, raw, err)
	}
	payload := stream.Payload(obj)
	typ := payload.Str("type")
	if typ == "" {
		typ = name
	}
	if typ == "ping" {
		return nil, nil
	}
	if typ == "" {
		typ = "unknown"
	}
	return &stream.Event{
		Source:     stream.SourceClaude,
		Type:       typ,
		Payload:    payload,
		ReceivedAt: at,
	}, nil
}
