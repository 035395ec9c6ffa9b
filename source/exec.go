package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ncklrs/agentstream/format"
)

// stderrTail bounds how much subprocess stderr is kept for the close
// reason of a failed command.
const stderrTail = 4096

// ExecAdapter spawns a shell command and tails its stdout. Stderr is
// drained separately so the child never blocks on a full pipe; its tail
// is reported when the command exits nonzero. Spawn failure surfaces as
// an adapter error, not a panic.
type ExecAdapter struct {
	base
	command string
}

// NewExec builds an adapter that will run command via the shell.
func NewExec(command, label string, hint format.Format) *ExecAdapter {
	id := "exec-" + uuid.NewString()[:8]
	if label == "" {
		label = commandLabel(command)
	}
	return &ExecAdapter{base: newBase(id, label, hint), command: command}
}

// commandLabel shortens a shell command into a sidebar-sized name.
func commandLabel(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "exec"
	}
	return fields[0]
}

// Run spawns the command and streams stdout until it exits.
func (a *ExecAdapter) Run(ctx context.Context) {
	defer close(a.out)

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", a.command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		a.fail(ctx, fmt.Errorf("stdout pipe: %w", err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		a.fail(ctx, fmt.Errorf("stderr pipe: %w", err))
		return
	}
	if err := cmd.Start(); err != nil {
		a.fail(ctx, fmt.Errorf("spawn %q: %w", a.command, err))
		return
	}
	if !a.opened(ctx) {
		_ = cmd.Wait()
		return
	}

	var errBuf tailBuffer
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(&errBuf, stderr)
	}()

	scanErr := a.scanLines(ctx, stdout)
	wg.Wait()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return
	}
	if scanErr != nil {
		a.fail(ctx, fmt.Errorf("read stdout: %w", scanErr))
		return
	}
	if waitErr != nil {
		reason := fmt.Sprintf("command failed: %v", waitErr)
		if tail := strings.TrimSpace(errBuf.String()); tail != "" {
			reason += ": " + tail
		}
		a.closed(ctx, reason)
		return
	}
	a.closed(ctx, "command exited")
}

// tailBuffer keeps only the last stderrTail bytes written.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= stderrTail {
		t.buf.Reset()
		p = p[n-stderrTail:]
	}
	t.buf.Write(p)
	if over := t.buf.Len() - stderrTail; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
