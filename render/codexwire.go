package render

import (
	"encoding/json"
	"strings"

	"github.com/ncklrs/agentstream/stream"
)

// commandFromArguments pulls the command out of a function_call's
// JSON-encoded arguments string. Shell calls carry either an argv array
// or a plain string; anything else falls back to the raw arguments.
func commandFromArguments(args string) string {
	if args == "" {
		return ""
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(args), &obj); err != nil {
		return clean(args)
	}
	p := stream.Payload(obj)
	switch cmd := obj["command"].(type) {
	case string:
		return clean(cmd)
	case []any:
		var parts []string
		for _, a := range cmd {
			if s, ok := a.(string); ok {
				parts = append(parts, s)
			}
		}
		return clean(strings.Join(parts, " "))
	}
	if cmd := p.Str("cmd"); cmd != "" {
		return clean(cmd)
	}
	return clean(args)
}

// stripOutputWrapper removes the bookkeeping envelope Codex wraps around
// shell output in rollout files: a JSON layer with an "output" field,
// then header lines ending at "Output:". The real output follows.
func stripOutputWrapper(out string) string {
	out = strings.TrimSpace(out)
	if strings.HasPrefix(out, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(out), &obj); err == nil {
			if inner, ok := obj["output"].(string); ok {
				out = inner
			}
		}
	}
	if i := strings.Index(out, "Output:"); i >= 0 {
		header := out[:i]
		body := strings.TrimPrefix(out[i+len("Output:"):], "\n")
		if strings.Contains(header, "Process exited") || strings.Contains(header, "Wall time") || strings.Contains(header, "Chunk ID") {
			out = body
		}
	}
	return out
}
