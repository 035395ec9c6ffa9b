// Package source contains the ingestion adapters: stdin, spawned
// subprocess, tailed file, and the directory watcher that discovers new
// session files. Adapters know nothing about wire formats beyond an
// optional forced-format hint; they emit raw lines and lifecycle signals
// on a bounded channel and apply backpressure by blocking the producer.
package source

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/ncklrs/agentstream/format"
)

// signalBuffer is the per-adapter channel depth. A slow consumer blocks
// the adapter's read loop rather than dropping lines.
const signalBuffer = 256

// Scanner limits match the largest single records the agent CLIs emit
// (tool results routinely exceed the bufio default).
const (
	scanInitial = 1024 * 1024
	scanMax     = 10 * 1024 * 1024
)

// SignalKind discriminates adapter lifecycle signals.
type SignalKind int

const (
	// SignalOpened fires once when the underlying source is live.
	SignalOpened SignalKind = iota
	// SignalLine carries one raw input line.
	SignalLine
	// SignalClosed fires once when the source ends; Reason says why.
	SignalClosed
	// SignalError carries an adapter-origin failure. The adapter stops.
	SignalError
)

// Signal is one message from an adapter to its pump.
type Signal struct {
	Kind   SignalKind
	Line   []byte
	Reason string
	Err    error
	At     time.Time
}

// Adapter is one live ingestion source feeding exactly one session.
type Adapter interface {
	// ID is the stable session identity (a path for file sources, a
	// generated ID otherwise).
	ID() string
	// Label is the initial human-facing name; the stream may upgrade it.
	Label() string
	// Hint is the forced wire format, or FormatAuto to detect.
	Hint() format.Format
	// Signals is the adapter's output. It is closed when Run returns.
	Signals() <-chan Signal
	// Run blocks until the source ends or ctx is cancelled, then releases
	// all resources and closes Signals.
	Run(ctx context.Context)
}

// base carries the plumbing shared by every adapter.
type base struct {
	id    string
	label string
	hint  format.Format
	out   chan Signal
}

func newBase(id, label string, hint format.Format) base {
	return base{id: id, label: label, hint: hint, out: make(chan Signal, signalBuffer)}
}

func (b *base) ID() string             { return b.id }
func (b *base) Label() string          { return b.label }
func (b *base) Hint() format.Format    { return b.hint }
func (b *base) Signals() <-chan Signal { return b.out }

// send blocks until the signal is consumed or ctx ends. Blocking here is
// the backpressure mechanism: adapters never drop lines.
func (b *base) send(ctx context.Context, s Signal) bool {
	if s.At.IsZero() {
		s.At = time.Now()
	}
	select {
	case b.out <- s:
		return true
	case <-ctx.Done():
		return false
	}
}

func (b *base) opened(ctx context.Context) bool {
	return b.send(ctx, Signal{Kind: SignalOpened})
}

func (b *base) line(ctx context.Context, l []byte) bool {
	return b.send(ctx, Signal{Kind: SignalLine, Line: l})
}

func (b *base) closed(ctx context.Context, reason string) {
	b.send(ctx, Signal{Kind: SignalClosed, Reason: reason})
}

func (b *base) fail(ctx context.Context, err error) {
	b.send(ctx, Signal{Kind: SignalError, Err: err})
}

// scanLines reads r line by line, forwarding each to the channel. Returns
// the scanner error, or nil at clean EOF.
func (b *base) scanLines(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, scanInitial), scanMax)
	for sc.Scan() {
		l := append([]byte(nil), sc.Bytes()...)
		if !b.line(ctx, l) {
			return ctx.Err()
		}
	}
	return sc.Err()
}
