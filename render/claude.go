package render

import (
	"fmt"

	"github.com/ncklrs/agentstream/stream"
)

// summarizeClaude handles the CLI stream protocol, the interactive
// transcript dialect, and raw API SSE events, which share a type space.
func summarizeClaude(ev *stream.Event) (Line, bool) {
	p := ev.Payload
	switch ev.Type {
	case "system":
		return claudeSystem(p)
	case "assistant":
		return claudeMessage(p, true)
	case "user":
		return claudeMessage(p, false)
	case "result":
		return claudeResult(p)
	case "stream_event":
		// Headless runs wrap raw API events one level down.
		if inner := p.Map("event"); inner != nil {
			return claudeSSE(inner.Str("type"), inner)
		}
		return Line{}, false
	case "message_start", "message_delta", "message_stop",
		"content_block_start", "content_block_delta", "content_block_stop",
		"error":
		return claudeSSE(ev.Type, p)
	case "progress":
		return claudeProgress(p)
	case "rate_limit_event":
		if p.Map("rate_limit").Str("status") == "rejected" {
			return Line{Icon: iconErr, Action: "rate limit", Content: "request rejected", Err: true}, true
		}
		return Line{}, false
	case "summary":
		return Line{Icon: iconMeta, Action: "summary", Content: clean(p.Str("summary")), Dim: true}, true
	case "file-history-snapshot", "queue-operation", "pr-link":
		return Line{}, false
	default:
		return Line{}, false
	}
}

func claudeSystem(p stream.Payload) (Line, bool) {
	switch p.Str("subtype") {
	case "init":
		content := p.Str("model")
		if tools := p.List("tools"); len(tools) > 0 {
			content += fmt.Sprintf(" | %d tools", len(tools))
		}
		if v := p.Str("version"); v != "" {
			content += " | v" + v
		}
		return Line{Icon: iconMeta, Action: "init", Content: content, Dim: true}, true
	case "compact_boundary":
		pre := p.Map("compact_metadata").Float("pre_tokens")
		return Line{Icon: iconMeta, Action: "compact", Content: fmt.Sprintf("context compacted (%.0f tokens)", pre), Dim: true}, true
	case "stop_hook_summary":
		return Line{}, false
	default:
		if m := p.Str("message"); m != "" {
			return Line{Icon: iconMeta, Action: "system", Content: clean(m), Dim: true}, true
		}
		return Line{}, false
	}
}

// claudeMessage handles assistant and user records. The interactive
// dialect nests the same message object, so both protocols land here.
func claudeMessage(p stream.Payload, assistant bool) (Line, bool) {
	msg := p.Map("message")
	if msg == nil {
		return Line{}, false
	}
	content := msg["content"]
	blocks, _ := content.([]any)
	if blocks == nil {
		// Interactive user prompts are often a bare string.
		if s, ok := content.(string); ok && s != "" {
			return Line{Icon: iconText, Action: "prompt", Content: clean(s)}, true
		}
		return Line{}, false
	}
	for _, b := range blocks {
		bm, ok := b.(map[string]any)
		if !ok {
			continue
		}
		bp := stream.Payload(bm)
		switch bp.Str("type") {
		case "text":
			if t := bp.Str("text"); t != "" {
				action := "text"
				if !assistant {
					action = "prompt"
				}
				return Line{Icon: iconText, Action: action, Content: clean(t)}, true
			}
		case "thinking":
			if t := bp.Str("thinking"); t != "" {
				return Line{Icon: iconThink, Action: "thinking", Content: clean(t), Dim: true}, true
			}
		case "tool_use":
			name := bp.Str("name")
			return Line{Icon: iconTool, Action: name, Content: formatToolInput(name, bp.Map("input"))}, true
		case "tool_result":
			isErr := bp.Bool("is_error")
			return Line{
				Icon:    iconResult,
				Action:  "result",
				Content: clean(contentText(bm["content"])),
				Err:     isErr,
			}, true
		}
	}
	return Line{}, false
}

func claudeResult(p stream.Payload) (Line, bool) {
	if p.Bool("is_error") || p.Str("subtype") != "success" {
		content := clean(p.Str("result"))
		if content == "" {
			content = p.Str("subtype")
		}
		return Line{Icon: iconErr, Action: "failed", Content: content, Err: true}, true
	}
	content := fmt.Sprintf("$%.4f | %.0f turns | %.1fs",
		p.Float("total_cost_usd"), p.Float("num_turns"), p.Float("duration_ms")/1000)
	return Line{Icon: iconDone, Action: "done", Content: content}, true
}

// claudeSSE handles raw Messages API events, both direct from an SSE
// source and wrapped inside stream_event records.
func claudeSSE(typ string, p stream.Payload) (Line, bool) {
	switch typ {
	case "message_start":
		model := p.Map("message").Str("model")
		return Line{Icon: iconMeta, Action: "start", Content: model, Dim: true}, true
	case "content_block_start":
		block := p.Map("content_block")
		if block.Str("type") == "tool_use" {
			name := block.Str("name")
			return Line{Icon: iconTool, Action: name, Content: ""}, true
		}
		return Line{}, false
	case "content_block_delta":
		delta := p.Map("delta")
		switch delta.Str("type") {
		case "text_delta":
			if t := delta.Str("text"); t != "" {
				return Line{Icon: iconText, Action: "text", Content: clean(t)}, true
			}
		case "thinking_delta":
			if t := delta.Str("thinking"); t != "" {
				return Line{Icon: iconThink, Action: "thinking", Content: clean(t), Dim: true}, true
			}
		case "input_json_delta":
			// Partial tool JSON is noise at one line per chunk.
			return Line{}, false
		}
		return Line{}, false
	case "message_delta":
		if reason := p.Map("delta").Str("stop_reason"); reason != "" {
			return Line{Icon: iconMeta, Action: "stop", Content: reason, Dim: true}, true
		}
		return Line{}, false
	case "message_stop":
		return Line{Icon: iconMeta, Action: "stop", Content: "", Dim: true}, true
	case "error":
		errObj := p.Map("error")
		return Line{Icon: iconErr, Action: "error", Content: clean(errObj.Str("message")), Err: true}, true
	default:
		return Line{}, false
	}
}

// claudeProgress handles interactive transcript progress records. Only
// long-running command progress and subagent activity are worth a line.
func claudeProgress(p stream.Payload) (Line, bool) {
	data := p.Map("data")
	switch data.Str("type") {
	case "bash_progress":
		elapsed := data.Float("elapsed_seconds")
		if elapsed < 5 {
			return Line{}, false
		}
		return Line{Icon: iconMeta, Action: "running", Content: fmt.Sprintf("%.0fs elapsed", elapsed), Dim: true}, true
	case "agent_progress":
		if prompt := data.Str("prompt"); prompt != "" {
			return Line{Icon: iconTool, Action: "subagent", Content: clean(prompt)}, true
		}
		return Line{}, false
	default:
		return Line{}, false
	}
}
