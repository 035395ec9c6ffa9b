package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ncklrs/agentstream/format"
)

// pollInterval is how often a tailed file is re-checked at EOF.
const pollInterval = 150 * time.Millisecond

// FileAdapter tails a file. Lines already present are optionally skipped
// (tail mode), then appends stream as they land. Truncation reopens from
// the start; deletion closes the session.
type FileAdapter struct {
	base
	path      string
	fromStart bool
}

// NewFile builds a tail adapter. The file path doubles as the session ID
// so rediscovery of the same file never forks a second session. When
// fromStart is false the adapter seeks to the end before following.
func NewFile(path, label string, hint format.Format, fromStart bool) *FileAdapter {
	if label == "" {
		label = filepath.Base(path)
	}
	return &FileAdapter{base: newBase(path, label, hint), path: path, fromStart: fromStart}
}

// Run follows the file until it disappears or ctx is cancelled.
func (a *FileAdapter) Run(ctx context.Context) {
	defer close(a.out)

	f, err := os.Open(a.path)
	if err != nil {
		a.fail(ctx, fmt.Errorf("open %s: %w", a.path, err))
		return
	}
	defer func() { _ = f.Close() }()

	var offset int64
	if !a.fromStart {
		if offset, err = f.Seek(0, io.SeekEnd); err != nil {
			a.fail(ctx, fmt.Errorf("seek %s: %w", a.path, err))
			return
		}
	}
	if !a.opened(ctx) {
		return
	}

	r := bufio.NewReaderSize(f, scanInitial)
	var partial bytes.Buffer
	for {
		chunk, err := r.ReadBytes('\n')
		if len(chunk) > 0 {
			offset += int64(len(chunk))
			partial.Write(chunk)
		}
		if err == nil {
			l := bytes.TrimRight(partial.Bytes(), "\r\n")
			if !a.line(ctx, append([]byte(nil), l...)) {
				return
			}
			partial.Reset()
			continue
		}
		if err != io.EOF {
			a.fail(ctx, fmt.Errorf("read %s: %w", a.path, err))
			return
		}

		// At EOF: wait for more data, watching for truncation or removal.
		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
		info, statErr := os.Stat(a.path)
		if statErr != nil {
			a.closed(ctx, "file removed")
			return
		}
		if info.Size() < offset {
			// Truncated or rotated: reopen and restart from the top. A
			// plain seek would keep the old inode after a rename-replace.
			nf, openErr := os.Open(a.path)
			if openErr != nil {
				a.closed(ctx, "file removed")
				return
			}
			_ = f.Close()
			f = nf
			offset = 0
			partial.Reset()
			r.Reset(f)
		}
	}
}
