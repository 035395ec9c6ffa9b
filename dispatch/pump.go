package dispatch

import (
	"bytes"
	"context"
	"time"

	"github.com/ncklrs/agentstream/format"
	"github.com/ncklrs/agentstream/source"
	"github.com/ncklrs/agentstream/stream"
)

// envKind discriminates pump-to-dispatcher messages.
type envKind int

const (
	envOpened envKind = iota
	envFormat
	envLine
	envParseErr
	envLabel
	envEvent
	envClosed
	envError
)

// envelope is one message on the intake channel.
type envelope struct {
	kind    envKind
	id      string
	label   string
	srcKind stream.SourceKind
	ev      *stream.Event
	reason  string
	err     error
}

// pump drains one adapter: detects the format on the first non-empty
// line (once, never retried), parses lines, assigns session identity and
// sequence numbers, and forwards everything to the dispatcher.
func (e *Engine) pump(ctx context.Context, ad source.Adapter, kind stream.SourceKind) {
	id := ad.ID()

	f := ad.Hint()
	detected := f != format.FormatAuto
	var parser format.Parser
	if detected {
		parser = format.NewParser(f)
		kind = format.SourceKindOf(f)
	}

	var seq uint64
	var lastHint string
	emit := func(ev *stream.Event) {
		seq++
		ev.SessionID = id
		ev.Sequence = seq
		if h := format.LabelHint(ev); h != "" && h != lastHint {
			lastHint = h
			e.post(ctx, envelope{kind: envLabel, id: id, label: h})
		}
		e.post(ctx, envelope{kind: envEvent, id: id, ev: ev})
	}

	for sig := range ad.Signals() {
		switch sig.Kind {
		case source.SignalOpened:
			e.post(ctx, envelope{kind: envOpened, id: id, label: ad.Label(), srcKind: kind})

		case source.SignalLine:
			if !detected {
				if len(bytes.TrimSpace(sig.Line)) == 0 {
					continue
				}
				f = format.Detect(sig.Line)
				detected = true
				parser = format.NewParser(f)
				kind = format.SourceKindOf(f)
				e.post(ctx, envelope{kind: envFormat, id: id, srcKind: kind})
			}
			if parser == nil {
				// Unclassifiable stream: count lines, emit nothing.
				e.post(ctx, envelope{kind: envLine, id: id})
				continue
			}
			ev, err := parser.ParseLine(sig.Line, sig.At)
			if err != nil {
				e.post(ctx, envelope{kind: envParseErr, id: id, err: err})
				continue
			}
			if ev == nil {
				e.post(ctx, envelope{kind: envLine, id: id})
				continue
			}
			emit(ev)

		case source.SignalClosed:
			e.flushParser(ctx, id, parser, sig.At, emit)
			e.post(ctx, envelope{kind: envClosed, id: id, label: ad.Label(), srcKind: kind, reason: sig.Reason})

		case source.SignalError:
			e.post(ctx, envelope{kind: envError, id: id, label: ad.Label(), srcKind: kind, err: sig.Err})
		}
	}
}

// flushParser recovers a partial frame from a stateful parser when its
// stream ends without the frame terminator (an SSE stream cut mid-frame).
func (e *Engine) flushParser(ctx context.Context, id string, parser format.Parser, at time.Time, emit func(*stream.Event)) {
	fp, ok := parser.(format.Flusher)
	if !ok {
		return
	}
	ev, err := fp.Flush(at)
	if err != nil {
		e.post(ctx, envelope{kind: envParseErr, id: id, err: err})
		return
	}
	if ev != nil {
		emit(ev)
	}
}

// post blocks until the dispatcher accepts the envelope; this is where
// backpressure from a busy dispatcher reaches the adapters.
func (e *Engine) post(ctx context.Context, env envelope) bool {
	select {
	case e.intake <- env:
		return true
	case <-ctx.Done():
		return false
	}
}
