// Package stream defines the canonical event model shared by every
// ingestion component. All three wire formats normalize into Event;
// format-specific field access happens inside the format package only.
package stream

import "time"

// SourceKind identifies which agent family produced an event.
type SourceKind string

const (
	SourceClaude SourceKind = "claude"
	SourceCodex  SourceKind = "codex"
)

// Payload is the decoded JSON body of a wire record. Origin fields are
// preserved verbatim for rendering and cost extraction; nothing is
// validated or rejected at this layer.
type Payload map[string]any

// Str returns the string value for key, or "" when absent or not a string.
func (p Payload) Str(key string) string {
	s, _ := p[key].(string)
	return s
}

// Map returns the nested object for key, or nil.
func (p Payload) Map(key string) Payload {
	switch v := p[key].(type) {
	case map[string]any:
		return Payload(v)
	case Payload:
		return v
	default:
		return nil
	}
}

// List returns the array value for key, or nil.
func (p Payload) List(key string) []any {
	l, _ := p[key].([]any)
	return l
}

// Float returns the numeric value for key, or 0. JSON numbers decode as
// float64; integer-typed values are accepted too.
func (p Payload) Float(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Bool returns the boolean value for key, or false.
func (p Payload) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// Event is the normalized, format-agnostic record all parsers produce.
// Events are immutable once constructed.
type Event struct {
	// SessionID is stable for the originating session. One adapter feeds
	// exactly one session, so this is the adapter-assigned identity
	// (a file path for file/watch sources, a generated ID for stdin/exec).
	SessionID string

	// Source is the agent family the event's wire format belongs to.
	Source SourceKind

	// Type is the origin-defined discriminator (a Claude SDK message type
	// or a dotted Codex type). Unrecognized values are preserved verbatim.
	Type string

	// Payload is the full decoded record body.
	Payload Payload

	// Sequence is assigned at parse time, monotonically increasing and
	// unique within a session. It guarantees intra-session ordering
	// survives buffering in the dispatcher.
	Sequence uint64

	// ReceivedAt is the arrival time at the parser, not the origin's own
	// timestamp (which may be absent or untrusted).
	ReceivedAt time.Time
}
