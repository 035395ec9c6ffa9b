package source

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/ncklrs/agentstream/format"
)

// StdinAdapter reads a piped stream line by line until EOF. The reader is
// injected so tests can drive it with any io.Reader.
type StdinAdapter struct {
	base
	r io.Reader
}

// NewStdin builds an adapter over r. label may be empty.
func NewStdin(r io.Reader, label string, hint format.Format) *StdinAdapter {
	id := "stdin-" + uuid.NewString()[:8]
	if label == "" {
		label = "stdin"
	}
	return &StdinAdapter{base: newBase(id, label, hint), r: r}
}

// Run reads until EOF or cancellation.
func (a *StdinAdapter) Run(ctx context.Context) {
	defer close(a.out)
	if !a.opened(ctx) {
		return
	}
	if err := a.scanLines(ctx, a.r); err != nil {
		if ctx.Err() != nil {
			return
		}
		a.fail(ctx, fmt.Errorf("read stdin: %w", err))
		return
	}
	a.closed(ctx, "eof")
}
