package render

import (
	"fmt"
	"strings"

	"github.com/ncklrs/agentstream/stream"
)

// summarizeCodex handles both the exec protocol (dotted top-level types)
// and interactive rollouts (outer.inner composed types).
func summarizeCodex(ev *stream.Event) (Line, bool) {
	p := ev.Payload
	switch {
	case ev.Type == "thread.started":
		return Line{Icon: iconMeta, Action: "session", Content: p.Str("thread_id"), Dim: true}, true
	case ev.Type == "turn.started":
		return Line{Icon: iconMeta, Action: "turn", Content: "started", Dim: true}, true
	case ev.Type == "turn.completed":
		u := p.Map("usage")
		content := fmt.Sprintf("in %.0f out %.0f tokens", u.Float("input_tokens"), u.Float("output_tokens"))
		return Line{Icon: iconDone, Action: "turn", Content: content}, true
	case ev.Type == "turn.failed":
		return Line{Icon: iconErr, Action: "turn", Content: clean(p.Map("error").Str("message")), Err: true}, true
	case ev.Type == "error":
		msg := p.Str("message")
		if strings.Contains(msg, "Reconnecting") {
			return Line{}, false
		}
		return Line{Icon: iconErr, Action: "error", Content: clean(msg), Err: true}, true
	case strings.HasPrefix(ev.Type, "item."):
		return codexItem(ev.Type, p.Map("item"))
	case ev.Type == "session_meta" || strings.HasPrefix(ev.Type, "session_meta."):
		inner := p.Map("payload")
		return Line{Icon: iconMeta, Action: "session", Content: inner.Str("cwd"), Dim: true}, true
	case strings.HasPrefix(ev.Type, "event_msg."):
		return codexEventMsg(strings.TrimPrefix(ev.Type, "event_msg."), p.Map("payload"))
	case strings.HasPrefix(ev.Type, "response_item."):
		return codexResponseItem(strings.TrimPrefix(ev.Type, "response_item."), p.Map("payload"))
	case strings.HasPrefix(ev.Type, "turn_context"):
		return Line{}, false
	case p.Map("msg") != nil:
		// msg-wrapped records carry the event_msg type space directly.
		return codexEventMsg(ev.Type, p.Map("msg"))
	default:
		return Line{}, false
	}
}

// codexItem renders exec-protocol item records. Started items only rate
// a line for commands; everything else waits for completion.
func codexItem(typ string, item stream.Payload) (Line, bool) {
	if item == nil {
		return Line{}, false
	}
	completed := typ == "item.completed"
	switch item.Str("type") {
	case "agent_message", "assistant_message":
		if !completed {
			return Line{}, false
		}
		return Line{Icon: iconText, Action: "text", Content: clean(item.Str("text"))}, true
	case "reasoning":
		if !completed {
			return Line{}, false
		}
		return Line{Icon: iconThink, Action: "thinking", Content: clean(item.Str("text")), Dim: true}, true
	case "command_execution":
		cmd := clean(item.Str("command"))
		if !completed {
			return Line{Icon: iconTool, Action: "exec", Content: cmd}, true
		}
		exit := int(item.Float("exit_code"))
		line := Line{Icon: iconResult, Action: "result", Content: clean(item.Str("aggregated_output"))}
		if exit != 0 {
			line.Err = true
			line.Content = fmt.Sprintf("exit %d: %s", exit, line.Content)
		}
		return line, true
	case "file_change":
		if !completed {
			return Line{}, false
		}
		var paths []string
		for _, c := range item.List("changes") {
			if cm, ok := c.(map[string]any); ok {
				paths = append(paths, stream.Payload(cm).Str("path"))
			}
		}
		return Line{Icon: iconTool, Action: "edit", Content: clean(strings.Join(paths, ", "))}, true
	case "mcp_tool_call":
		name := item.Str("server") + "." + item.Str("tool")
		if !completed {
			return Line{Icon: iconTool, Action: "mcp", Content: name}, true
		}
		return Line{Icon: iconResult, Action: "mcp", Content: name + " done"}, true
	case "web_search":
		if !completed {
			return Line{}, false
		}
		return Line{Icon: iconTool, Action: "search", Content: clean(item.Str("query"))}, true
	case "error":
		return Line{Icon: iconErr, Action: "error", Content: clean(item.Str("message")), Err: true}, true
	case "todo_list":
		return Line{}, false
	default:
		return Line{}, false
	}
}

// codexEventMsg renders interactive rollout event_msg records.
func codexEventMsg(typ string, inner stream.Payload) (Line, bool) {
	if inner == nil {
		return Line{}, false
	}
	switch typ {
	case "user_message":
		return Line{Icon: iconText, Action: "prompt", Content: clean(inner.Str("message"))}, true
	case "agent_message":
		return Line{Icon: iconText, Action: "text", Content: clean(inner.Str("message"))}, true
	case "agent_reasoning":
		return Line{Icon: iconThink, Action: "thinking", Content: clean(inner.Str("text")), Dim: true}, true
	case "task_started":
		return Line{Icon: iconMeta, Action: "turn", Content: "started", Dim: true}, true
	case "task_complete":
		return Line{Icon: iconDone, Action: "turn", Content: clean(inner.Str("last_agent_message"))}, true
	case "error":
		return Line{Icon: iconErr, Action: "error", Content: clean(inner.Str("message")), Err: true}, true
	case "token_count", "agent_reasoning_section_break", "turn_diff":
		return Line{}, false
	default:
		return Line{}, false
	}
}

// codexResponseItem renders interactive rollout response_item records.
// Messages duplicate event_msg content, so only the call records and
// reasoning summaries surface.
func codexResponseItem(typ string, inner stream.Payload) (Line, bool) {
	if inner == nil {
		return Line{}, false
	}
	switch typ {
	case "function_call":
		name := inner.Str("name")
		return Line{Icon: iconTool, Action: name, Content: commandFromArguments(inner.Str("arguments"))}, true
	case "function_call_output":
		out := inner.Str("output")
		if out == "" {
			out = stripOutputWrapper(contentText(inner["output"]))
		} else {
			out = stripOutputWrapper(out)
		}
		return Line{Icon: iconResult, Action: "result", Content: clean(out)}, true
	case "custom_tool_call":
		return Line{Icon: iconTool, Action: inner.Str("name"), Content: clean(inner.Str("input"))}, true
	case "custom_tool_call_output":
		return Line{Icon: iconResult, Action: "result", Content: clean(inner.Str("output"))}, true
	case "reasoning":
		for _, s := range inner.List("summary") {
			if t := blockText(s); t != "" {
				return Line{Icon: iconThink, Action: "thinking", Content: clean(t), Dim: true}, true
			}
		}
		return Line{}, false
	default:
		return Line{}, false
	}
}
