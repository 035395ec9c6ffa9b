package source

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncklrs/agentstream/format"
)

// nextSignal pulls one signal or fails the test.
func nextSignal(t *testing.T, ch <-chan Signal) Signal {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "signal channel closed")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
		return Signal{}
	}
}

// drainUntil collects signals until one of the wanted kind arrives.
func drainUntil(t *testing.T, ch <-chan Signal, kind SignalKind) []Signal {
	t.Helper()
	var got []Signal
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			require.True(t, ok, "channel closed before %v", kind)
			got = append(got, s)
			if s.Kind == kind {
				return got
			}
		case <-deadline:
			t.Fatalf("never saw signal kind %v (got %d signals)", kind, len(got))
		}
	}
}

func TestStdinAdapterReadsUntilEOF(t *testing.T) {
	input := "{\"type\":\"system\"}\n{\"type\":\"result\"}\n"
	ad := NewStdin(strings.NewReader(input), "piped", format.FormatClaudeCLI)
	assert.Equal(t, "piped", ad.Label())
	assert.Equal(t, format.FormatClaudeCLI, ad.Hint())
	assert.True(t, strings.HasPrefix(ad.ID(), "stdin-"))

	go ad.Run(context.Background())

	sig := nextSignal(t, ad.Signals())
	assert.Equal(t, SignalOpened, sig.Kind)
	sig = nextSignal(t, ad.Signals())
	assert.Equal(t, SignalLine, sig.Kind)
	assert.Equal(t, `{"type":"system"}`, string(sig.Line))
	sig = nextSignal(t, ad.Signals())
	assert.Equal(t, `{"type":"result"}`, string(sig.Line))
	sig = nextSignal(t, ad.Signals())
	assert.Equal(t, SignalClosed, sig.Kind)
	assert.Equal(t, "eof", sig.Reason)

	_, ok := <-ad.Signals()
	assert.False(t, ok, "channel should be closed after Run returns")
}

func TestStdinAdapterDefaultLabel(t *testing.T) {
	ad := NewStdin(strings.NewReader(""), "", format.FormatAuto)
	assert.Equal(t, "stdin", ad.Label())
}

func TestStdinAdapterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pr := make(chan struct{})
	ad := NewStdin(blockingReader{unblock: pr}, "", format.FormatAuto)

	done := make(chan struct{})
	go func() {
		ad.Run(ctx)
		close(done)
	}()

	nextSignal(t, ad.Signals()) // opened
	cancel()
	close(pr)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

// blockingReader blocks until unblocked, then reports EOF.
type blockingReader struct {
	unblock chan struct{}
}

func (r blockingReader) Read(p []byte) (int, error) {
	<-r.unblock
	return 0, io.EOF
}
