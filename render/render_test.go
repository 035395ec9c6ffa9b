package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncklrs/agentstream/stream"
)

func claudeEvent(t *testing.T, raw string) *stream.Event {
	t.Helper()
	var p stream.Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return &stream.Event{Source: stream.SourceClaude, Type: p.Str("type"), Payload: p, ReceivedAt: time.Now()}
}

func codexEvent(t *testing.T, raw string) *stream.Event {
	t.Helper()
	var p stream.Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	typ := p.Str("type")
	inner := p.Map("payload")
	if inner == nil {
		inner = p.Map("msg")
	}
	if inner != nil {
		if it := inner.Str("type"); it != "" {
			if typ == "" {
				typ = it
			} else {
				typ += "." + it
			}
		}
	}
	return &stream.Event{Source: stream.SourceCodex, Type: typ, Payload: p, ReceivedAt: time.Now()}
}

// --- claude ---

func TestSummarizeClaudeInit(t *testing.T) {
	line, ok := Summarize(claudeEvent(t, `{"type":"system","subtype":"init","model":"claude-sonnet-4-5","tools":["Bash","Read"],"version":"2.0.1"}`))
	require.True(t, ok)
	assert.Equal(t, "init", line.Action)
	assert.Contains(t, line.Content, "claude-sonnet-4-5")
	assert.Contains(t, line.Content, "2 tools")
	assert.Contains(t, line.Content, "v2.0.1")
	assert.True(t, line.Dim)
}

func TestSummarizeClaudeAssistantText(t *testing.T) {
	line, ok := Summarize(claudeEvent(t, `{"type":"assistant","message":{"content":[{"type":"text","text":"Fixed the bug.\nDetails follow."}]}}`))
	require.True(t, ok)
	assert.Equal(t, "text", line.Action)
	assert.Equal(t, "Fixed the bug.", line.Content)
}

func TestSummarizeClaudeToolUse(t *testing.T) {
	line, ok := Summarize(claudeEvent(t, `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"go test ./..."}}]}}`))
	require.True(t, ok)
	assert.Equal(t, "Bash", line.Action)
	assert.Equal(t, "go test ./...", line.Content)

	line, ok = Summarize(claudeEvent(t, `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Edit","input":{"file_path":"main.go","old_string":"a"}}]}}`))
	require.True(t, ok)
	assert.Equal(t, "main.go", line.Content)
}

func TestSummarizeClaudeToolResult(t *testing.T) {
	line, ok := Summarize(claudeEvent(t, `{"type":"user","message":{"content":[{"type":"tool_result","is_error":true,"content":"command not found"}]}}`))
	require.True(t, ok)
	assert.Equal(t, "result", line.Action)
	assert.True(t, line.Err)
	assert.Equal(t, "command not found", line.Content)
}

func TestSummarizeClaudeUserPromptString(t *testing.T) {
	line, ok := Summarize(claudeEvent(t, `{"type":"user","message":{"content":"please fix the tests"}}`))
	require.True(t, ok)
	assert.Equal(t, "prompt", line.Action)
	assert.Equal(t, "please fix the tests", line.Content)
}

func TestSummarizeClaudeResult(t *testing.T) {
	line, ok := Summarize(claudeEvent(t, `{"type":"result","subtype":"success","is_error":false,"total_cost_usd":0.0834,"num_turns":4,"duration_ms":9421}`))
	require.True(t, ok)
	assert.Equal(t, "done", line.Action)
	assert.Contains(t, line.Content, "$0.0834")
	assert.Contains(t, line.Content, "4 turns")
	assert.Contains(t, line.Content, "9.4s")

	line, ok = Summarize(claudeEvent(t, `{"type":"result","subtype":"error_during_execution","is_error":true,"result":"budget exceeded"}`))
	require.True(t, ok)
	assert.True(t, line.Err)
	assert.Equal(t, "budget exceeded", line.Content)
}

func TestSummarizeClaudeStreamEvent(t *testing.T) {
	line, ok := Summarize(claudeEvent(t, `{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"chunk"}}}`))
	require.True(t, ok)
	assert.Equal(t, "text", line.Action)
	assert.Equal(t, "chunk", line.Content)

	// partial tool json is skipped
	_, ok = Summarize(claudeEvent(t, `{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{\"com"}}}`))
	assert.False(t, ok)
}

func TestSummarizeClaudeSSEDirect(t *testing.T) {
	line, ok := Summarize(claudeEvent(t, `{"type":"message_start","message":{"model":"claude-sonnet-4-5"}}`))
	require.True(t, ok)
	assert.Equal(t, "start", line.Action)

	line, ok = Summarize(claudeEvent(t, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	require.True(t, ok)
	assert.True(t, line.Err)
	assert.Equal(t, "Overloaded", line.Content)
}

func TestSummarizeClaudeBookkeepingSkipped(t *testing.T) {
	for _, raw := range []string{
		`{"type":"file-history-snapshot","messageId":"m1"}`,
		`{"type":"queue-operation","operation":"enqueue"}`,
		`{"type":"stream_event","event":{"type":"content_block_stop"}}`,
	} {
		_, ok := Summarize(claudeEvent(t, raw))
		assert.False(t, ok, raw)
	}
}

// --- codex ---

func TestSummarizeCodexTurns(t *testing.T) {
	line, ok := Summarize(codexEvent(t, `{"type":"turn.completed","usage":{"input_tokens":5310,"output_tokens":387}}`))
	require.True(t, ok)
	assert.Contains(t, line.Content, "in 5310")
	assert.Contains(t, line.Content, "out 387")

	line, ok = Summarize(codexEvent(t, `{"type":"turn.failed","error":{"message":"interrupted"}}`))
	require.True(t, ok)
	assert.True(t, line.Err)
}

func TestSummarizeCodexCommand(t *testing.T) {
	line, ok := Summarize(codexEvent(t, `{"type":"item.started","item":{"type":"command_execution","command":"rg -n TODO"}}`))
	require.True(t, ok)
	assert.Equal(t, "exec", line.Action)
	assert.Equal(t, "rg -n TODO", line.Content)

	line, ok = Summarize(codexEvent(t, `{"type":"item.completed","item":{"type":"command_execution","command":"false","exit_code":1,"aggregated_output":"boom"}}`))
	require.True(t, ok)
	assert.True(t, line.Err)
	assert.Contains(t, line.Content, "exit 1")
}

func TestSummarizeCodexFileChange(t *testing.T) {
	line, ok := Summarize(codexEvent(t, `{"type":"item.completed","item":{"type":"file_change","changes":[{"path":"a.go","kind":"update"},{"path":"b.go","kind":"add"}]}}`))
	require.True(t, ok)
	assert.Equal(t, "edit", line.Action)
	assert.Equal(t, "a.go, b.go", line.Content)
}

func TestSummarizeCodexRollout(t *testing.T) {
	line, ok := Summarize(codexEvent(t, `{"type":"event_msg","payload":{"type":"user_message","message":"add retries"}}`))
	require.True(t, ok)
	assert.Equal(t, "prompt", line.Action)

	_, ok = Summarize(codexEvent(t, `{"type":"event_msg","payload":{"type":"token_count","info":{}}}`))
	assert.False(t, ok)

	line, ok = Summarize(codexEvent(t, `{"type":"response_item","payload":{"type":"function_call","name":"shell","arguments":"{\"command\":[\"bash\",\"-lc\",\"ls\"]}"}}`))
	require.True(t, ok)
	assert.Equal(t, "shell", line.Action)
	assert.Equal(t, "bash -lc ls", line.Content)
}

func TestSummarizeCodexMsgWrapper(t *testing.T) {
	line, ok := Summarize(codexEvent(t, `{"id":"0","msg":{"type":"agent_message","message":"all done"}}`))
	require.True(t, ok)
	assert.Equal(t, "text", line.Action)
	assert.Equal(t, "all done", line.Content)

	line, ok = Summarize(codexEvent(t, `{"id":"1","msg":{"type":"task_complete","last_agent_message":"shipped"}}`))
	require.True(t, ok)
	assert.Equal(t, "turn", line.Action)
	assert.Equal(t, "shipped", line.Content)
}

func TestStripOutputWrapper(t *testing.T) {
	wrapped := "Chunk ID: abc\nWall time: 1.2s\nProcess exited with code 0\nOutput:\ntotal 16\ndrwxr-xr-x"
	assert.Equal(t, "total 16\ndrwxr-xr-x", stripOutputWrapper(wrapped))

	// JSON layer around the wrapper
	jsonWrapped := `{"output":"Wall time: 0.1s\nProcess exited with code 1\nOutput:\nboom","metadata":{"exit_code":1}}`
	assert.Equal(t, "boom", stripOutputWrapper(jsonWrapped))

	// plain output that merely mentions Output: is untouched
	assert.Equal(t, "Output: stage ready", stripOutputWrapper("Output: stage ready"))
}

func TestCommandFromArguments(t *testing.T) {
	assert.Equal(t, "ls -la", commandFromArguments(`{"command":"ls -la"}`))
	assert.Equal(t, "bash -lc make", commandFromArguments(`{"command":["bash","-lc","make"]}`))
	assert.Equal(t, "go build", commandFromArguments(`{"cmd":"go build"}`))
	assert.Empty(t, commandFromArguments(""))
}

// --- helpers ---

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	long := strings.Repeat("a", 300)
	got := Truncate(long, 20)
	assert.LessOrEqual(t, len([]rune(got)), 21)
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestFormatToolInputFallback(t *testing.T) {
	got := formatToolInput("MysteryTool", stream.Payload{"alpha": 1, "beta": 2})
	assert.Contains(t, got, "{")
	assert.Contains(t, got, "alpha")
}
