// Package dispatch fans events from every adapter into one ordered
// output stream. A single dispatcher goroutine owns all registry
// mutation; adapter pumps feed it over a bounded intake channel, so a
// slow consumer applies backpressure all the way to the sources.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ncklrs/agentstream/registry"
	"github.com/ncklrs/agentstream/source"
	"github.com/ncklrs/agentstream/stream"
)

const (
	// DefaultIdleWindow is how long a session may be silent before it is
	// demoted from active to idle.
	DefaultIdleWindow = 2 * time.Minute
	// DefaultBufferCap bounds the pause buffer. When full, the oldest
	// buffered event is dropped and counted.
	DefaultBufferCap = 65536

	idleSweepEvery = 5 * time.Second
	intakeBuffer   = 1024
	outputBuffer   = 1024
)

// nopHandler is a slog.Handler that discards all output.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }

var nopLogger = slog.New(nopHandler{})

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Default is silent.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithIdleWindow overrides the silence window for the idle transition.
func WithIdleWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.idleWindow = d
		}
	}
}

// WithBufferCap overrides the pause buffer bound.
func WithBufferCap(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.bufferCap = n
		}
	}
}

// Engine is the multiplexer. Construct with New, attach sources, then
// call Run; consume merged events from Events.
type Engine struct {
	reg *registry.Registry
	log *slog.Logger

	intake      chan envelope
	out         chan stream.Event
	nudge       chan struct{}
	discoveries <-chan source.Discovery

	pumps sync.WaitGroup

	mu       sync.Mutex
	paused   bool
	buffer   []stream.Event // filled while paused, in arrival order
	pending  []stream.Event // flush queue drained by the dispatcher
	dropped  uint64
	hideKind map[stream.SourceKind]bool

	idleWindow time.Duration
	bufferCap  int
}

// New builds an engine over reg.
func New(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		reg:        reg,
		log:        nopLogger,
		intake:     make(chan envelope, intakeBuffer),
		out:        make(chan stream.Event, outputBuffer),
		nudge:      make(chan struct{}, 1),
		hideKind:   make(map[stream.SourceKind]bool),
		idleWindow: DefaultIdleWindow,
		bufferCap:  DefaultBufferCap,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events is the merged, filtered output stream.
func (e *Engine) Events() <-chan stream.Event { return e.out }

// Registry exposes session snapshots to consumers.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// AddSource starts an adapter and the pump that feeds its lines into the
// dispatcher. kind is the caller's best guess at the agent family; format
// detection may correct it after the first line.
func (e *Engine) AddSource(ctx context.Context, ad source.Adapter, kind stream.SourceKind) {
	go ad.Run(ctx)
	e.pumps.Add(1)
	go func() {
		defer e.pumps.Done()
		e.pump(ctx, ad, kind)
	}()
}

// AttachWatcher starts a directory watcher whose discoveries become file
// sources. Call before Run.
func (e *Engine) AttachWatcher(ctx context.Context, w *source.Watcher) {
	e.discoveries = w.Discoveries()
	go w.Run(ctx)
}

// Run is the dispatcher loop. It blocks until ctx is cancelled, then
// closes the output channel. Buffered events are abandoned on shutdown.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.out)
	tick := time.NewTicker(idleSweepEvery)
	defer tick.Stop()

	for {
		if !e.flushPending(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-e.nudge:
		case env := <-e.intake:
			e.handle(ctx, env)
		case d, ok := <-e.discoveries:
			if !ok {
				e.discoveries = nil
				continue
			}
			e.attach(ctx, d)
		case <-tick.C:
			for _, id := range e.reg.MarkIdle(e.idleWindow, time.Now()) {
				e.log.Debug("session idle", "session", id)
			}
		}
	}
}

// attach registers a discovered session before its first event and wires
// the file adapter in.
func (e *Engine) attach(ctx context.Context, d source.Discovery) {
	ad := d.Adapter
	e.reg.Register(ad.ID(), ad.Label(), d.Kind)
	e.log.Info("attaching discovered session", "session", ad.ID(), "kind", d.Kind)
	e.AddSource(ctx, ad, d.Kind)
}

func (e *Engine) handle(ctx context.Context, env envelope) {
	switch env.kind {
	case envOpened:
		e.reg.Register(env.id, env.label, env.srcKind)
		e.log.Info("source opened", "session", env.id)
	case envFormat:
		e.reg.SetKind(env.id, env.srcKind)
		e.log.Debug("format detected", "session", env.id, "kind", env.srcKind)
	case envLine:
		e.reg.RecordLine(env.id)
	case envParseErr:
		e.reg.RecordParseError(env.id)
		e.log.Debug("parse error", "session", env.id, "err", env.err)
	case envLabel:
		e.reg.SetLabel(env.id, env.label)
	case envEvent:
		e.handleEvent(ctx, env.ev)
	case envClosed:
		e.reg.Register(env.id, env.label, env.srcKind)
		e.reg.Close(env.id, env.reason)
		e.log.Info("source closed", "session", env.id, "reason", env.reason)
	case envError:
		// Sources can fail before ever opening (a bad spawn, an
		// unreadable file); the session still must exist to show why.
		e.reg.Register(env.id, env.label, env.srcKind)
		e.reg.Close(env.id, env.err.Error())
		e.log.Warn("source failed", "session", env.id, "err", env.err)
	}
}

// handleEvent updates counters and cost unconditionally, then applies
// visibility filters and the pause buffer to delivery only.
func (e *Engine) handleEvent(ctx context.Context, ev *stream.Event) {
	e.reg.RecordEvent(ev.SessionID, ev.ReceivedAt)
	if usd := sessionCost(ev); usd > 0 {
		e.reg.AddCost(ev.SessionID, usd)
	}

	visible := e.reg.Visible(ev.SessionID)
	e.mu.Lock()
	if e.hideKind[ev.Source] {
		visible = false
	}
	if !visible {
		e.mu.Unlock()
		return
	}
	if e.paused {
		if len(e.buffer) >= e.bufferCap {
			e.buffer = e.buffer[1:]
			e.dropped++
		}
		e.buffer = append(e.buffer, *ev)
		e.mu.Unlock()
		return
	}
	if len(e.pending) > 0 {
		// A resume landed between this event's dequeue and now; joining
		// the flush queue keeps it behind the buffered events.
		e.pending = append(e.pending, *ev)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.send(ctx, *ev)
}

// flushPending drains the resume queue before any new intake is read, so
// buffered events always precede live ones. Returns false on shutdown.
func (e *Engine) flushPending(ctx context.Context) bool {
	for {
		e.mu.Lock()
		if len(e.pending) == 0 || e.paused {
			e.mu.Unlock()
			return true
		}
		ev := e.pending[0]
		e.pending = e.pending[1:]
		if len(e.pending) == 0 {
			e.pending = nil
		}
		e.mu.Unlock()
		if !e.send(ctx, ev) {
			return false
		}
	}
}

func (e *Engine) send(ctx context.Context, ev stream.Event) bool {
	select {
	case e.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Pause stops delivery; arriving events buffer in order. Counters and
// cost keep updating while paused.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume hands the pause buffer to the dispatcher for in-order flushing
// ahead of live traffic. It never sends on the output channel itself, so
// it is safe to call from any goroutine, including the consumer's.
func (e *Engine) Resume() {
	e.mu.Lock()
	if !e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = false
	e.pending = append(e.pending, e.buffer...)
	e.buffer = nil
	e.mu.Unlock()
	select {
	case e.nudge <- struct{}{}:
	default:
	}
}

// TogglePause flips the pause state and reports the new value.
func (e *Engine) TogglePause() bool {
	e.mu.Lock()
	paused := e.paused
	e.mu.Unlock()
	if paused {
		e.Resume()
		return false
	}
	e.Pause()
	return true
}

// Paused reports whether delivery is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Buffered reports how many events wait in the pause buffer and resume
// queue combined.
func (e *Engine) Buffered() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffer) + len(e.pending)
}

// Dropped reports how many buffered events were evicted by the cap.
func (e *Engine) Dropped() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Clear discards undelivered buffered events. Session state and counters
// are untouched; the consumer clears its own display separately.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.buffer = nil
	e.pending = nil
	e.dropped = 0
	e.mu.Unlock()
}

// SetSessionVisible toggles one session's events in the output stream.
// Hidden events are dropped, not buffered.
func (e *Engine) SetSessionVisible(id string, v bool) {
	e.reg.SetVisible(id, v)
}

// SetKindVisible toggles an entire agent family in the output stream.
func (e *Engine) SetKindVisible(kind stream.SourceKind, v bool) {
	e.mu.Lock()
	e.hideKind[kind] = !v
	e.mu.Unlock()
}

// KindVisible reports whether the agent family passes the filter.
func (e *Engine) KindVisible(kind stream.SourceKind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.hideKind[kind]
}
