// Package registry tracks every session the multiplexer knows about:
// lifecycle state, display color, visibility, and per-session counters.
// All mutation goes through Registry methods under one lock; readers get
// value snapshots and never observe partial updates.
package registry

import (
	"sync"
	"time"

	"github.com/ncklrs/agentstream/stream"
)

// State is a session's lifecycle phase. Transitions only move forward
// except idle, which returns to active when events resume.
type State int

const (
	// StateDiscovered means the session is known (e.g. a watched file was
	// found) but no event has arrived yet.
	StateDiscovered State = iota
	// StateActive means events are flowing.
	StateActive
	// StateIdle means no event has arrived within the idle window.
	StateIdle
	// StateClosed is terminal: the source ended or failed.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// PaletteSize is the number of distinct display colors. With more
// concurrent sessions than slots, colors repeat.
const PaletteSize = 8

// Session is the tracked state for one source. Snapshot methods return
// copies, so callers may hold Sessions across lock boundaries.
type Session struct {
	ID          string
	Label       string
	Kind        stream.SourceKind
	State       State
	Color       int // palette slot, -1 until first event
	Visible     bool
	CloseReason string

	Lines      uint64 // raw lines received, parsed or not
	Events     uint64 // canonical events produced
	ParseErrs  uint64 // malformed lines skipped
	Cost       float64
	StartedAt  time.Time
	LastEvent  time.Time
}

// Registry is safe for concurrent use. The dispatcher is the only writer
// in practice, but the lock makes reads from UI goroutines safe too.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
	// slotUsed tracks when each palette slot was last handed out, so
	// reuse after closes picks the longest-retired slot first.
	slotUsed [PaletteSize]time.Time
	now      func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Register adds a session in the discovered state. Registering an
// existing ID is a no-op, so adapters and watchers may race harmlessly.
func (r *Registry) Register(id, label string, kind stream.SourceKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return
	}
	r.sessions[id] = &Session{
		ID:        id,
		Label:     label,
		Kind:      kind,
		State:     StateDiscovered,
		Color:     -1,
		Visible:   true,
		StartedAt: r.now(),
	}
	r.order = append(r.order, id)
}

// SetKind updates a session's agent family once format detection settles.
func (r *Registry) SetKind(id string, kind stream.SourceKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Kind = kind
	}
}

// SetLabel upgrades a session's display label, e.g. when a transcript
// slug shows up mid-stream. Empty labels are ignored.
func (r *Registry) SetLabel(id, label string) {
	if label == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Label = label
	}
}

// RecordLine counts one raw input line.
func (r *Registry) RecordLine(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Lines++
	}
}

// RecordParseError counts one malformed line. The stream continues.
func (r *Registry) RecordParseError(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Lines++
		s.ParseErrs++
	}
}

// RecordEvent counts one canonical event and drives the state machine:
// discovered or idle sessions become active, and a session's color is
// assigned on its first event. Closed sessions never reactivate.
func (r *Registry) RecordEvent(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	s.Lines++
	s.Events++
	s.LastEvent = at
	if s.State == StateClosed {
		return
	}
	s.State = StateActive
	if s.Color < 0 {
		s.Color = r.assignColorLocked()
	}
}

// AddCost accumulates reported spend. Costs only ever grow.
func (r *Registry) AddCost(id string, usd float64) {
	if usd <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Cost += usd
	}
}

// Close marks a session terminal with a human-readable reason. Closing
// twice keeps the first reason.
func (r *Registry) Close(id, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.State == StateClosed {
		return
	}
	s.State = StateClosed
	s.CloseReason = reason
}

// MarkIdle demotes active sessions whose last event is older than the
// window. Returns the IDs demoted on this sweep.
func (r *Registry) MarkIdle(window time.Duration, now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var idle []string
	for _, id := range r.order {
		s := r.sessions[id]
		if s.State == StateActive && !s.LastEvent.IsZero() && now.Sub(s.LastEvent) > window {
			s.State = StateIdle
			idle = append(idle, id)
		}
	}
	return idle
}

// SetVisible toggles whether the session's events pass the dispatcher
// filter. Hiding does not buffer: hidden events are dropped.
func (r *Registry) SetVisible(id string, v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Visible = v
	}
}

// Visible reports the session's visibility flag. Unknown IDs are visible,
// so events racing registration are not silently dropped.
func (r *Registry) Visible(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sessions[id]; ok {
		return s.Visible
	}
	return true
}

// Get returns a copy of one session.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sessions[id]; ok {
		return *s, true
	}
	return Session{}, false
}

// Snapshot returns copies of all sessions in registration order.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.sessions[id])
	}
	return out
}

// TotalCost sums reported spend across all sessions.
func (r *Registry) TotalCost() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total float64
	for _, s := range r.sessions {
		total += s.Cost
	}
	return total
}

// assignColorLocked picks a palette slot for a session's first event.
// Slots not held by any live (non-closed) session are preferred, oldest
// hand-out first, so a closed session's color is the first recycled. When
// every slot is live the oldest assignment is reused round-robin.
func (r *Registry) assignColorLocked() int {
	var live [PaletteSize]bool
	for _, s := range r.sessions {
		if s.Color >= 0 && s.State != StateClosed {
			live[s.Color] = true
		}
	}
	pick := func(skipLive bool) int {
		best := -1
		for slot := 0; slot < PaletteSize; slot++ {
			if skipLive && live[slot] {
				continue
			}
			if best == -1 || r.slotUsed[slot].Before(r.slotUsed[best]) {
				best = slot
			}
		}
		return best
	}
	slot := pick(true)
	if slot == -1 {
		slot = pick(false)
	}
	r.slotUsed[slot] = r.now()
	return slot
}
