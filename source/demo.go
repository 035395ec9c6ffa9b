package source

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ncklrs/agentstream/format"
)

// demoStep is one scripted line with the pause preceding it.
type demoStep struct {
	delay time.Duration
	line  string
}

// DemoAdapter replays a scripted transcript on a loop so the UI can be
// exercised without a live agent. The script restarts after a pause.
type DemoAdapter struct {
	base
	steps []demoStep
	loop  time.Duration
}

func newDemo(label string, hint format.Format, steps []demoStep) *DemoAdapter {
	id := "demo-" + uuid.NewString()[:8]
	return &DemoAdapter{
		base:  newBase(id, label, hint),
		steps: steps,
		loop:  3 * time.Second,
	}
}

// NewDemoAdapters returns one scripted session per agent family.
func NewDemoAdapters() []Adapter {
	return []Adapter{
		newDemo("demo-claude", format.FormatClaudeCLI, claudeDemoScript),
		newDemo("demo-codex", format.FormatCodex, codexDemoScript),
	}
}

// Run replays the script until cancelled.
func (a *DemoAdapter) Run(ctx context.Context) {
	defer close(a.out)
	if !a.opened(ctx) {
		return
	}
	for {
		for _, step := range a.steps {
			select {
			case <-ctx.Done():
				return
			case <-time.After(step.delay):
			}
			if !a.line(ctx, []byte(step.line)) {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.loop):
		}
	}
}

var claudeDemoScript = []demoStep{
	{200 * time.Millisecond, `{"type":"system","subtype":"init","session_id":"demo-c1","model":"claude-sonnet-4-5","tools":["Bash","Read","Edit","Write","Grep"],"version":"2.0.1","cwd":"/home/dev/project"}`},
	{600 * time.Millisecond, `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Let me look at the failing test first."}]},"session_id":"demo-c1"}`},
	{500 * time.Millisecond, `{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"toolu_01","name":"Bash","input":{"command":"go test ./parser/..."}}]},"session_id":"demo-c1"}`},
	{900 * time.Millisecond, `{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_01","content":"--- FAIL: TestSplit (0.00s)\n    parser_test.go:42: got 3 tokens, want 4"}]},"session_id":"demo-c1"}`},
	{700 * time.Millisecond, `{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"toolu_02","name":"Edit","input":{"file_path":"parser/split.go"}}]},"session_id":"demo-c1"}`},
	{800 * time.Millisecond, `{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_02","content":"ok"}]},"session_id":"demo-c1"}`},
	{600 * time.Millisecond, `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Fixed the off-by-one in the tokenizer; tests pass now."}]},"session_id":"demo-c1"}`},
	{400 * time.Millisecond, `{"type":"result","subtype":"success","is_error":false,"duration_ms":9421,"num_turns":4,"total_cost_usd":0.0834,"session_id":"demo-c1","usage":{"input_tokens":2188,"output_tokens":412}}`},
}

var codexDemoScript = []demoStep{
	{300 * time.Millisecond, `{"type":"thread.started","thread_id":"demo-x1"}`},
	{400 * time.Millisecond, `{"type":"turn.started"}`},
	{700 * time.Millisecond, `{"type":"item.completed","item":{"id":"item_0","type":"reasoning","text":"Need to inspect the schema migration before touching the model."}}`},
	{600 * time.Millisecond, `{"type":"item.started","item":{"id":"item_1","type":"command_execution","command":"rg -n 'ALTER TABLE' migrations/","status":"in_progress"}}`},
	{900 * time.Millisecond, `{"type":"item.completed","item":{"id":"item_1","type":"command_execution","command":"rg -n 'ALTER TABLE' migrations/","aggregated_output":"migrations/0042_add_index.sql:3:ALTER TABLE events ADD INDEX idx_session;","exit_code":0,"status":"completed"}}`},
	{700 * time.Millisecond, `{"type":"item.completed","item":{"id":"item_2","type":"file_change","changes":[{"path":"models/event.go","kind":"update"}],"status":"completed"}}`},
	{600 * time.Millisecond, `{"type":"item.completed","item":{"id":"item_3","type":"agent_message","text":"Added the session index and updated the model to match."}}`},
	{400 * time.Millisecond, `{"type":"turn.completed","usage":{"input_tokens":5310,"cached_input_tokens":2048,"output_tokens":387}}`},
}
