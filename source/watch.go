package source

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ncklrs/agentstream/format"
	"github.com/ncklrs/agentstream/stream"
)

// nopHandler is a slog.Handler that discards all output.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }

var nopLogger = slog.New(nopHandler{})

// Watch defaults. Discovery latency is bounded by the rescan interval
// even where fsnotify drops events; fsnotify usually beats it.
const (
	DefaultScanInterval = 5 * time.Second
	DefaultMaxAge       = 10 * time.Minute
)

// Root is one directory tree to watch for session transcripts.
type Root struct {
	Path string
	Kind stream.SourceKind
}

// DefaultRoots returns the standard transcript locations for both agent
// families, skipping any that do not exist.
func DefaultRoots() []Root {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var roots []Root
	for _, r := range []Root{
		{Path: filepath.Join(home, ".claude", "projects"), Kind: stream.SourceClaude},
		{Path: filepath.Join(home, ".codex", "sessions"), Kind: stream.SourceCodex},
	} {
		if st, err := os.Stat(r.Path); err == nil && st.IsDir() {
			roots = append(roots, r)
		}
	}
	return roots
}

// Discovery is one session file the watcher found. The adapter is built
// but not running; the consumer attaches it.
type Discovery struct {
	Adapter *FileAdapter
	Kind    stream.SourceKind
}

// Watcher discovers new *.jsonl session files under the configured roots
// using fsnotify, with a periodic rescan as a safety net. Files already
// present at startup are adopted tail-only if recently modified; files
// that appear later are read from the beginning.
type Watcher struct {
	roots        []Root
	scanInterval time.Duration
	maxAge       time.Duration
	seen         map[string]bool
	out          chan Discovery
	log          *slog.Logger
}

// NewWatcher builds a watcher over roots. Zero intervals get defaults.
func NewWatcher(roots []Root, scanInterval, maxAge time.Duration, log *slog.Logger) *Watcher {
	if scanInterval <= 0 {
		scanInterval = DefaultScanInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if log == nil {
		log = nopLogger
	}
	return &Watcher{
		roots:        roots,
		scanInterval: scanInterval,
		maxAge:       maxAge,
		seen:         make(map[string]bool),
		out:          make(chan Discovery, signalBuffer),
		log:          log,
	}
}

// Discoveries is the watcher's output. Closed when Run returns.
func (w *Watcher) Discoveries() <-chan Discovery { return w.out }

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.out)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("fsnotify unavailable, falling back to rescans", "err", err)
	} else {
		defer func() { _ = fw.Close() }()
	}

	// Initial sweep adopts recent files and registers directory watches.
	cutoff := time.Now().Add(-w.maxAge)
	for _, root := range w.roots {
		w.scanRoot(ctx, fw, root, cutoff, false)
	}

	tick := time.NewTicker(w.scanInterval)
	defer tick.Stop()
	for {
		var events chan fsnotify.Event
		var errs chan error
		if fw != nil {
			events = fw.Events
			errs = fw.Errors
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			for _, root := range w.roots {
				w.scanRoot(ctx, fw, root, time.Time{}, true)
			}
		case ev, ok := <-events:
			if !ok {
				fw = nil
				continue
			}
			if ev.Op&fsnotify.Create == 0 {
				continue
			}
			w.handleCreate(ctx, fw, ev.Name)
		case err, ok := <-errs:
			if !ok {
				continue
			}
			w.log.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) handleCreate(ctx context.Context, fw *fsnotify.Watcher, path string) {
	root, ok := w.rootFor(path)
	if !ok {
		return
	}
	st, err := os.Stat(path)
	if err != nil {
		return
	}
	if st.IsDir() {
		w.watchDir(fw, path)
		w.scanRoot(ctx, fw, Root{Path: path, Kind: root.Kind}, time.Time{}, true)
		return
	}
	if isSessionFile(path) {
		w.adopt(ctx, path, root.Kind, true)
	}
}

func (w *Watcher) rootFor(path string) (Root, bool) {
	for _, r := range w.roots {
		if strings.HasPrefix(path, r.Path+string(filepath.Separator)) || path == r.Path {
			return r, true
		}
	}
	return Root{}, false
}

// scanRoot walks one tree. During the initial sweep, files older than
// cutoff are ignored and adopted files tail from the end; later rescans
// only pick up files fsnotify missed, reading those from the start.
func (w *Watcher) scanRoot(ctx context.Context, fw *fsnotify.Watcher, root Root, cutoff time.Time, fromStart bool) {
	_ = filepath.WalkDir(root.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if d.IsDir() {
			w.watchDir(fw, path)
			return nil
		}
		if !isSessionFile(path) || w.seen[path] {
			return nil
		}
		if !cutoff.IsZero() {
			if info, err := d.Info(); err != nil || info.ModTime().Before(cutoff) {
				return nil
			}
		}
		w.adopt(ctx, path, root.Kind, fromStart)
		return nil
	})
}

func (w *Watcher) watchDir(fw *fsnotify.Watcher, path string) {
	if fw == nil {
		return
	}
	if err := fw.Add(path); err != nil {
		w.log.Debug("cannot watch dir", "path", path, "err", err)
	}
}

func (w *Watcher) adopt(ctx context.Context, path string, kind stream.SourceKind, fromStart bool) {
	if w.seen[path] {
		return
	}
	w.seen[path] = true

	hint := format.FormatClaudeCLI
	if kind == stream.SourceCodex {
		hint = format.FormatCodex
	}
	label := sessionLabel(path, kind)
	ad := NewFile(path, label, hint, fromStart)
	w.log.Info("discovered session file", "path", path, "kind", kind)
	select {
	case w.out <- Discovery{Adapter: ad, Kind: kind}:
	case <-ctx.Done():
	}
}

func isSessionFile(path string) bool {
	return strings.HasSuffix(path, ".jsonl")
}

// sessionLabel derives an initial display name. Claude transcripts live
// under a project directory named after the workspace path; Codex rollout
// files record the workspace in their session_meta header.
func sessionLabel(path string, kind stream.SourceKind) string {
	stem := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	short := stem
	if len(short) > 8 {
		short = short[:8]
	}
	switch kind {
	case stream.SourceClaude:
		dir := filepath.Dir(path)
		if filepath.Base(dir) == "subagents" {
			dir = filepath.Dir(dir)
		}
		proj := filepath.Base(dir)
		if i := strings.LastIndex(proj, "-"); i >= 0 && i+1 < len(proj) {
			proj = proj[i+1:]
		}
		return proj + "/" + short
	case stream.SourceCodex:
		if cwd := peekCodexCwd(path); cwd != "" {
			return filepath.Base(cwd) + "/" + short
		}
	}
	return short
}

// peekCodexCwd reads the first line of a rollout file looking for the
// session_meta workspace path. Best effort only.
func peekCodexCwd(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, scanInitial), scanMax)
	if !sc.Scan() {
		return ""
	}
	var rec struct {
		Type    string `json:"type"`
		Payload struct {
			Cwd string `json:"cwd"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(sc.Bytes(), &rec); err != nil || rec.Type != "session_meta" {
		return ""
	}
	return rec.Payload.Cwd
}
