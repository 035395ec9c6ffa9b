// Command agentstream multiplexes live AI coding agent sessions into a
// single terminal event feed. Sources are piped streams, spawned
// commands, tailed transcript files, or auto-discovered session
// directories.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ncklrs/agentstream/dispatch"
	"github.com/ncklrs/agentstream/format"
	"github.com/ncklrs/agentstream/registry"
	"github.com/ncklrs/agentstream/source"
	"github.com/ncklrs/agentstream/stream"
	"github.com/ncklrs/agentstream/tui"
)

var (
	flagConfig     string
	flagDemo       bool
	flagStdin      string
	flagFiles      []string
	flagExecs      []string
	flagWatch      bool
	flagWatchRoots []string
	flagLabel      string
	flagLogFile    string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "agentstream",
	Short: "Live multiplexed viewer for Claude and Codex agent sessions",
	Long: `agentstream merges event streams from AI coding agents into one
terminal feed. Pipe a stream in, spawn agents, tail transcript files, or
watch the standard session directories:

  claude -p --output-format stream-json "fix the tests" | agentstream
  agentstream --exec 'codex=codex exec --json "add retries"'
  agentstream --file claude=~/.claude/projects/myapp/abc123.jsonl
  agentstream --watch`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flagConfig, "config", "", "config file (default ~/.config/agentstream/config.yaml)")
	f.BoolVar(&flagDemo, "demo", false, "replay scripted sessions instead of real sources")
	f.StringVar(&flagStdin, "stdin", "", "read stdin with the given format (claude|codex|claude-sse|auto)")
	f.StringArrayVar(&flagFiles, "file", nil, "tail a transcript file, as [FORMAT=]PATH (repeatable)")
	f.StringArrayVar(&flagExecs, "exec", nil, "spawn a command and read its stdout, as [FORMAT=]CMD (repeatable)")
	f.BoolVar(&flagWatch, "watch", false, "discover session files under the watch roots")
	f.StringArrayVar(&flagWatchRoots, "watch-root", nil, "extra directory to watch, as [KIND=]PATH (repeatable)")
	f.StringVar(&flagLabel, "label", "", "display label for the stdin source")
	f.StringVar(&flagLogFile, "log", "", "write diagnostic logs to this file")
	f.BoolVar(&flagVerbose, "verbose", false, "log at debug level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return err
	}

	logger, logClose, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logClose()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := registry.New()
	opts := []dispatch.Option{dispatch.WithLogger(logger)}
	if cfg.IdleWindow > 0 {
		opts = append(opts, dispatch.WithIdleWindow(time.Duration(cfg.IdleWindow)))
	}
	if cfg.BufferCap > 0 {
		opts = append(opts, dispatch.WithBufferCap(cfg.BufferCap))
	}
	engine := dispatch.New(reg, opts...)

	added, err := addSources(ctx, engine, cfg, logger)
	if err != nil {
		return err
	}
	if !added {
		// Nothing asked for and no pipe on stdin: fall back to the demo
		// so the first run shows something.
		for _, ad := range source.NewDemoAdapters() {
			engine.AddSource(ctx, ad, format.SourceKindOf(ad.Hint()))
		}
	}

	go engine.Run(ctx)

	prog := tea.NewProgram(tui.NewModel(engine), tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		prog.Quit()
	}()
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	cancel()
	return nil
}

// addSources wires every requested source into the engine. Returns false
// when none were configured.
func addSources(ctx context.Context, engine *dispatch.Engine, cfg Config, logger *slog.Logger) (bool, error) {
	added := false

	if flagDemo {
		for _, ad := range source.NewDemoAdapters() {
			engine.AddSource(ctx, ad, format.SourceKindOf(ad.Hint()))
		}
		added = true
	}

	for _, spec := range flagFiles {
		hint, path, err := parseSourceArg(spec)
		if err != nil {
			return false, err
		}
		ad := source.NewFile(expandHome(path), "", hint, true)
		engine.AddSource(ctx, ad, format.SourceKindOf(hint))
		added = true
	}

	for _, spec := range flagExecs {
		hint, command, err := parseSourceArg(spec)
		if err != nil {
			return false, err
		}
		ad := source.NewExec(command, "", hint)
		engine.AddSource(ctx, ad, format.SourceKindOf(hint))
		added = true
	}

	if flagWatch || len(flagWatchRoots) > 0 || len(cfg.WatchRoots) > 0 {
		roots := watchRoots(cfg)
		if len(roots) == 0 {
			return false, fmt.Errorf("no watch roots exist")
		}
		w := source.NewWatcher(roots, time.Duration(cfg.ScanInterval), 0, logger)
		engine.AttachWatcher(ctx, w)
		added = true
	}

	// stdin joins when asked for explicitly, or as the sole source when
	// something is piped in and nothing else was configured.
	stdinPiped := !term.IsTerminal(int(os.Stdin.Fd()))
	if flagStdin != "" || (stdinPiped && !added) {
		if !stdinPiped {
			return false, fmt.Errorf("--stdin given but stdin is a terminal")
		}
		hint, err := formatFromName(flagStdin)
		if err != nil {
			return false, err
		}
		ad := source.NewStdin(os.Stdin, flagLabel, hint)
		engine.AddSource(ctx, ad, format.SourceKindOf(hint))
		added = true
	}

	return added, nil
}

// watchRoots merges default, config, and flag roots.
func watchRoots(cfg Config) []source.Root {
	var roots []source.Root
	if flagWatch {
		roots = source.DefaultRoots()
	}
	for _, spec := range append(cfg.WatchRoots, flagWatchRoots...) {
		kind := stream.SourceClaude
		path := spec
		if k, rest, ok := strings.Cut(spec, "="); ok && (k == "claude" || k == "codex") {
			path = rest
			if k == "codex" {
				kind = stream.SourceCodex
			}
		}
		roots = append(roots, source.Root{Path: expandHome(path), Kind: kind})
	}
	return roots
}

// parseSourceArg splits an optional FORMAT= prefix off a source spec.
func parseSourceArg(spec string) (format.Format, string, error) {
	if name, rest, ok := strings.Cut(spec, "="); ok {
		if f, err := formatFromName(name); err == nil {
			return f, rest, nil
		}
	}
	return format.FormatAuto, spec, nil
}

// formatFromName maps a CLI format name to a wire format. Empty means
// auto-detect.
func formatFromName(name string) (format.Format, error) {
	switch name {
	case "", "auto":
		return format.FormatAuto, nil
	case "claude":
		return format.FormatClaudeCLI, nil
	case "codex":
		return format.FormatCodex, nil
	case "claude-sse", "sse":
		return format.FormatClaudeSSE, nil
	default:
		return format.FormatUnknown, fmt.Errorf("unknown format %q (want claude, codex, claude-sse, or auto)", name)
	}
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}

// newLogger builds the diagnostic logger. The TUI owns the terminal, so
// logs go to a file or nowhere.
func newLogger(cfg Config) (*slog.Logger, func(), error) {
	path := flagLogFile
	if path == "" {
		path = cfg.LogFile
	}
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(expandHome(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = f.Close() }, nil
}
