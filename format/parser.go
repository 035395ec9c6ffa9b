package format

import (
	"fmt"
	"time"

	"github.com/ncklrs/agentstream/stream"
)

// maxErrLine bounds how much of a bad line a ParseError carries.
const maxErrLine = 200

// ParseError is a non-fatal per-line failure. The stream continues; the
// dispatcher surfaces these as per-session counters rather than drops.
type ParseError struct {
	Format Format
	Line   string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: bad line %q: %v", e.Format, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(f Format, line []byte, err error) *ParseError {
	s := string(line)
	if len(s) > maxErrLine {
		s = s[:maxErrLine] + "..."
	}
	return &ParseError{Format: f, Line: s, Err: err}
}

// Parser converts raw lines of one wire format into canonical events.
// A line yields zero or one event: framing lines (SSE event/data fields,
// blanks, comments) accumulate state and yield nothing. Parsers never
// assign SessionID or Sequence; the owning pump does.
type Parser interface {
	ParseLine(line []byte, at time.Time) (*stream.Event, error)
}

// Flusher is implemented by stateful parsers that can hold a partial
// frame when the stream ends without its terminator. Callers flush once
// after the last line.
type Flusher interface {
	Flush(at time.Time) (*stream.Event, error)
}

// NewParser returns the parser for a detected format, or nil for
// FormatUnknown and FormatAuto.
func NewParser(f Format) Parser {
	switch f {
	case FormatClaudeCLI:
		return &ClaudeParser{}
	case FormatCodex:
		return &CodexParser{}
	case FormatClaudeSSE:
		return &SSEParser{}
	default:
		return nil
	}
}
