package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncklrs/agentstream/format"
	"github.com/ncklrs/agentstream/registry"
	"github.com/ncklrs/agentstream/source"
	"github.com/ncklrs/agentstream/stream"
)

// fakeAdapter lets tests feed signals directly; Run is a no-op because
// the test owns the channel.
type fakeAdapter struct {
	id    string
	label string
	hint  format.Format
	ch    chan source.Signal
}

func newFake(id string, hint format.Format) *fakeAdapter {
	return &fakeAdapter{id: id, label: id, hint: hint, ch: make(chan source.Signal, 64)}
}

func (f *fakeAdapter) ID() string                    { return f.id }
func (f *fakeAdapter) Label() string                 { return f.label }
func (f *fakeAdapter) Hint() format.Format           { return f.hint }
func (f *fakeAdapter) Signals() <-chan source.Signal { return f.ch }
func (f *fakeAdapter) Run(ctx context.Context)       {}

func (f *fakeAdapter) open()           { f.ch <- source.Signal{Kind: source.SignalOpened, At: time.Now()} }
func (f *fakeAdapter) line(l string)   { f.ch <- source.Signal{Kind: source.SignalLine, Line: []byte(l), At: time.Now()} }
func (f *fakeAdapter) close(r string)  { f.ch <- source.Signal{Kind: source.SignalClosed, Reason: r, At: time.Now()} }
func (f *fakeAdapter) fail(err error)  { f.ch <- source.Signal{Kind: source.SignalError, Err: err, At: time.Now()} }

func startEngine(t *testing.T, opts ...Option) (*Engine, context.Context) {
	t.Helper()
	reg := registry.New()
	e := New(reg, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go e.Run(ctx)
	return e, ctx
}

func recvEvent(t *testing.T, e *Engine) stream.Event {
	t.Helper()
	select {
	case ev, ok := <-e.Events():
		require.True(t, ok, "output closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return stream.Event{}
	}
}

func expectSilence(t *testing.T, e *Engine, d time.Duration) {
	t.Helper()
	select {
	case ev := <-e.Events():
		t.Fatalf("unexpected event: %s seq %d", ev.Type, ev.Sequence)
	case <-time.After(d):
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestEventsFlowWithSequence(t *testing.T) {
	e, ctx := startEngine(t)
	ad := newFake("s1", format.FormatClaudeCLI)
	e.AddSource(ctx, ad, stream.SourceClaude)

	ad.open()
	ad.line(`{"type":"system","subtype":"init"}`)
	ad.line(`{"type":"assistant","message":{"content":[]}}`)

	ev1 := recvEvent(t, e)
	assert.Equal(t, "s1", ev1.SessionID)
	assert.Equal(t, "system", ev1.Type)
	assert.Equal(t, uint64(1), ev1.Sequence)

	ev2 := recvEvent(t, e)
	assert.Equal(t, "assistant", ev2.Type)
	assert.Equal(t, uint64(2), ev2.Sequence)

	waitFor(t, func() bool {
		s, ok := e.Registry().Get("s1")
		return ok && s.State == registry.StateActive && s.Events == 2
	}, "session never became active")

	ad.close("eof")
	waitFor(t, func() bool {
		s, _ := e.Registry().Get("s1")
		return s.State == registry.StateClosed && s.CloseReason == "eof"
	}, "session never closed")
}

func TestAutoDetectionSettlesKind(t *testing.T) {
	e, ctx := startEngine(t)
	ad := newFake("s1", format.FormatAuto)
	e.AddSource(ctx, ad, stream.SourceClaude)

	ad.open()
	ad.line(`{"type":"thread.started","thread_id":"t1"}`)

	ev := recvEvent(t, e)
	assert.Equal(t, stream.SourceCodex, ev.Source)
	waitFor(t, func() bool {
		s, ok := e.Registry().Get("s1")
		return ok && s.Kind == stream.SourceCodex
	}, "kind never updated")
}

func TestUnclassifiableStreamCountsLines(t *testing.T) {
	e, ctx := startEngine(t)
	ad := newFake("s1", format.FormatAuto)
	e.AddSource(ctx, ad, stream.SourceClaude)

	ad.open()
	ad.line("definitely not json")
	ad.line("still not json")

	waitFor(t, func() bool {
		s, ok := e.Registry().Get("s1")
		return ok && s.Lines == 2
	}, "lines never counted")
	s, _ := e.Registry().Get("s1")
	assert.Zero(t, s.Events)
	expectSilence(t, e, 50*time.Millisecond)
}

func TestParseErrorsAreNonFatal(t *testing.T) {
	e, ctx := startEngine(t)
	ad := newFake("s1", format.FormatClaudeCLI)
	e.AddSource(ctx, ad, stream.SourceClaude)

	ad.open()
	ad.line(`{"type":"assistant","mess`)
	ad.line(`{"type":"result","subtype":"success"}`)

	ev := recvEvent(t, e)
	assert.Equal(t, "result", ev.Type)
	waitFor(t, func() bool {
		s, _ := e.Registry().Get("s1")
		return s.ParseErrs == 1
	}, "parse error never counted")
}

func TestPauseBuffersAndResumesInOrder(t *testing.T) {
	e, ctx := startEngine(t)
	ad := newFake("s1", format.FormatClaudeCLI)
	e.AddSource(ctx, ad, stream.SourceClaude)

	ad.open()
	ad.line(`{"type":"system","subtype":"init"}`)
	recvEvent(t, e)

	e.Pause()
	assert.True(t, e.Paused())
	ad.line(`{"type":"assistant","message":{"content":[]}}`)
	ad.line(`{"type":"result","subtype":"success"}`)

	waitFor(t, func() bool { return e.Buffered() == 2 }, "events never buffered")
	expectSilence(t, e, 50*time.Millisecond)

	// counters keep moving while paused
	s, _ := e.Registry().Get("s1")
	assert.Equal(t, uint64(3), s.Events)

	e.Resume()
	assert.Equal(t, uint64(2), recvEvent(t, e).Sequence)
	assert.Equal(t, uint64(3), recvEvent(t, e).Sequence)

	// live flow resumes after the flush
	ad.line(`{"type":"user","message":{"content":"hi"}}`)
	assert.Equal(t, uint64(4), recvEvent(t, e).Sequence)
}

func TestPauseBufferCapDropsOldest(t *testing.T) {
	e, ctx := startEngine(t, WithBufferCap(2))
	ad := newFake("s1", format.FormatClaudeCLI)
	e.AddSource(ctx, ad, stream.SourceClaude)

	ad.open()
	e.Pause()
	for i := 0; i < 3; i++ {
		ad.line(`{"type":"assistant","message":{"content":[]}}`)
	}
	waitFor(t, func() bool { return e.Dropped() == 1 }, "no drop recorded")

	e.Resume()
	assert.Equal(t, uint64(2), recvEvent(t, e).Sequence)
	assert.Equal(t, uint64(3), recvEvent(t, e).Sequence)
}

func TestLiveEventWaitsBehindResumeQueue(t *testing.T) {
	reg := registry.New()
	reg.Register("s1", "s1", stream.SourceClaude)
	e := New(reg)
	ctx := context.Background()

	ev := func(seq uint64) *stream.Event {
		return &stream.Event{SessionID: "s1", Source: stream.SourceClaude, Type: "assistant", Sequence: seq, ReceivedAt: time.Now()}
	}

	e.Pause()
	e.handleEvent(ctx, ev(1))
	e.Resume()
	// the dispatcher has not drained the flush queue yet; an event arriving
	// now must not overtake the buffered one
	e.handleEvent(ctx, ev(2))
	assert.Equal(t, 2, e.Buffered())

	require.True(t, e.flushPending(ctx))
	assert.Equal(t, uint64(1), (<-e.Events()).Sequence)
	assert.Equal(t, uint64(2), (<-e.Events()).Sequence)
}

func TestDetectionSettlesOnce(t *testing.T) {
	e, ctx := startEngine(t)
	ad := newFake("s1", format.FormatAuto)
	e.AddSource(ctx, ad, stream.SourceClaude)

	ad.open()
	ad.line(`{"type":"thread.started","thread_id":"t1"}`)
	ad.line(`{"type":"turn.started"}`)
	ad.line(`{"type":"item.completed","item":{"type":"agent_message","text":"hi"}}`)
	for seq := uint64(1); seq <= 3; seq++ {
		ev := recvEvent(t, e)
		assert.Equal(t, stream.SourceCodex, ev.Source)
		assert.Equal(t, seq, ev.Sequence)
	}

	// garbage after classification is a parse error, never a redetection
	ad.line("%% not json %%")
	waitFor(t, func() bool {
		s, _ := e.Registry().Get("s1")
		return s.ParseErrs == 1
	}, "parse error never counted")
	s, _ := e.Registry().Get("s1")
	assert.Equal(t, stream.SourceCodex, s.Kind)

	ad.line(`{"type":"turn.completed","usage":{}}`)
	ev := recvEvent(t, e)
	assert.Equal(t, stream.SourceCodex, ev.Source)
	assert.Equal(t, uint64(4), ev.Sequence)
}

func TestCloseFlushesOpenSSEFrame(t *testing.T) {
	e, ctx := startEngine(t)
	ad := newFake("s1", format.FormatClaudeSSE)
	e.AddSource(ctx, ad, stream.SourceClaude)

	ad.open()
	ad.line("event: message_delta")
	ad.line(`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"}}`)
	// stream ends without the blank separator
	ad.close("eof")

	ev := recvEvent(t, e)
	assert.Equal(t, "message_delta", ev.Type)
	assert.Equal(t, uint64(1), ev.Sequence)
	waitFor(t, func() bool {
		s, _ := e.Registry().Get("s1")
		return s.State == registry.StateClosed
	}, "session never closed")
}

func TestClearDiscardsBufferedEvents(t *testing.T) {
	e, ctx := startEngine(t)
	ad := newFake("s1", format.FormatClaudeCLI)
	e.AddSource(ctx, ad, stream.SourceClaude)

	ad.open()
	e.Pause()
	ad.line(`{"type":"assistant","message":{"content":[]}}`)
	waitFor(t, func() bool { return e.Buffered() == 1 }, "event never buffered")

	e.Clear()
	assert.Zero(t, e.Buffered())
	e.Resume()
	expectSilence(t, e, 50*time.Millisecond)

	ad.line(`{"type":"result","subtype":"success"}`)
	assert.Equal(t, "result", recvEvent(t, e).Type)
}

func TestSessionVisibilityFilter(t *testing.T) {
	e, ctx := startEngine(t)
	shown := newFake("shown", format.FormatClaudeCLI)
	hidden := newFake("hidden", format.FormatClaudeCLI)
	e.AddSource(ctx, shown, stream.SourceClaude)
	e.AddSource(ctx, hidden, stream.SourceClaude)
	shown.open()
	hidden.open()
	waitFor(t, func() bool {
		_, ok := e.Registry().Get("hidden")
		return ok
	}, "session never registered")

	e.SetSessionVisible("hidden", false)
	hidden.line(`{"type":"assistant","message":{"content":[]}}`)
	shown.line(`{"type":"system","subtype":"init"}`)

	ev := recvEvent(t, e)
	assert.Equal(t, "shown", ev.SessionID)
	expectSilence(t, e, 50*time.Millisecond)

	// hidden events still count
	s, _ := e.Registry().Get("hidden")
	assert.Equal(t, uint64(1), s.Events)
}

func TestKindFilter(t *testing.T) {
	e, ctx := startEngine(t)
	claude := newFake("c", format.FormatClaudeCLI)
	codex := newFake("x", format.FormatCodex)
	e.AddSource(ctx, claude, stream.SourceClaude)
	e.AddSource(ctx, codex, stream.SourceCodex)
	claude.open()
	codex.open()

	e.SetKindVisible(stream.SourceCodex, false)
	assert.False(t, e.KindVisible(stream.SourceCodex))
	codex.line(`{"type":"turn.started"}`)
	claude.line(`{"type":"system","subtype":"init"}`)

	ev := recvEvent(t, e)
	assert.Equal(t, stream.SourceClaude, ev.Source)
	expectSilence(t, e, 50*time.Millisecond)

	e.SetKindVisible(stream.SourceCodex, true)
	codex.line(`{"type":"turn.completed","usage":{}}`)
	assert.Equal(t, stream.SourceCodex, recvEvent(t, e).Source)
}

func TestCostAggregation(t *testing.T) {
	e, ctx := startEngine(t)
	ad := newFake("s1", format.FormatClaudeCLI)
	e.AddSource(ctx, ad, stream.SourceClaude)

	ad.open()
	ad.line(`{"type":"result","subtype":"success","total_cost_usd":0.05}`)
	ad.line(`{"type":"result","subtype":"success","total_cost_usd":0.03}`)
	recvEvent(t, e)
	recvEvent(t, e)

	waitFor(t, func() bool {
		s, _ := e.Registry().Get("s1")
		return s.Cost > 0.079
	}, "cost never aggregated")
	s, _ := e.Registry().Get("s1")
	assert.InDelta(t, 0.08, s.Cost, 1e-9)
}

func TestAdapterErrorClosesSession(t *testing.T) {
	e, ctx := startEngine(t)
	ad := newFake("s1", format.FormatClaudeCLI)
	e.AddSource(ctx, ad, stream.SourceClaude)

	ad.fail(fmt.Errorf("spawn failed"))
	waitFor(t, func() bool {
		s, ok := e.Registry().Get("s1")
		return ok && s.State == registry.StateClosed
	}, "session never closed on error")
	s, _ := e.Registry().Get("s1")
	assert.Contains(t, s.CloseReason, "spawn failed")
}

func TestLabelHintUpgradesSession(t *testing.T) {
	e, ctx := startEngine(t)
	ad := newFake("s1", format.FormatCodex)
	e.AddSource(ctx, ad, stream.SourceCodex)

	ad.open()
	ad.line(`{"type":"session_meta","payload":{"id":"x","cwd":"/home/dev/myapp"}}`)
	recvEvent(t, e)

	waitFor(t, func() bool {
		s, _ := e.Registry().Get("s1")
		return s.Label == "myapp"
	}, "label never upgraded")
}

func TestSessionCost(t *testing.T) {
	ev := &stream.Event{Source: stream.SourceClaude, Type: "result", Payload: stream.Payload{"total_cost_usd": 0.07}}
	assert.InDelta(t, 0.07, sessionCost(ev), 1e-9)

	assert.Zero(t, sessionCost(&stream.Event{Source: stream.SourceClaude, Type: "assistant"}))
	assert.Zero(t, sessionCost(&stream.Event{Source: stream.SourceCodex, Type: "result", Payload: stream.Payload{"total_cost_usd": 0.07}}))
	assert.Zero(t, sessionCost(&stream.Event{Source: stream.SourceClaude, Type: "result", Payload: stream.Payload{}}))
}
