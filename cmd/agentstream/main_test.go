package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncklrs/agentstream/format"
)

func TestParseSourceArg(t *testing.T) {
	f, v, err := parseSourceArg("claude=/tmp/session.jsonl")
	require.NoError(t, err)
	assert.Equal(t, format.FormatClaudeCLI, f)
	assert.Equal(t, "/tmp/session.jsonl", v)

	f, v, err = parseSourceArg(`codex=codex exec --json "add retries"`)
	require.NoError(t, err)
	assert.Equal(t, format.FormatCodex, f)
	assert.Equal(t, `codex exec --json "add retries"`, v)

	// no known format prefix: the whole spec is the value
	f, v, err = parseSourceArg("/tmp/plain.jsonl")
	require.NoError(t, err)
	assert.Equal(t, format.FormatAuto, f)
	assert.Equal(t, "/tmp/plain.jsonl", v)

	// an = that is not a format prefix stays in the value
	f, v, err = parseSourceArg("FOO=bar printenv FOO")
	require.NoError(t, err)
	assert.Equal(t, format.FormatAuto, f)
	assert.Equal(t, "FOO=bar printenv FOO", v)
}

func TestFormatFromName(t *testing.T) {
	for name, want := range map[string]format.Format{
		"":           format.FormatAuto,
		"auto":       format.FormatAuto,
		"claude":     format.FormatClaudeCLI,
		"codex":      format.FormatCodex,
		"claude-sse": format.FormatClaudeSSE,
		"sse":        format.FormatClaudeSSE,
	} {
		got, err := formatFromName(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	_, err := formatFromName("gemini")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"watch_roots:\n  - codex=/data/sessions\nidle_window: 90s\nbuffer_cap: 1024\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"codex=/data/sessions"}, cfg.WatchRoots)
	assert.Equal(t, 90*time.Second, time.Duration(cfg.IdleWindow))
	assert.Equal(t, 1024, cfg.BufferCap)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWatchRootsParsing(t *testing.T) {
	flagWatch = false
	flagWatchRoots = []string{"codex=/data/rollouts", "/data/claude"}
	t.Cleanup(func() { flagWatchRoots = nil })

	roots := watchRoots(Config{WatchRoots: []string{"claude=/cfg/projects"}})
	require.Len(t, roots, 3)
	assert.Equal(t, "/cfg/projects", roots[0].Path)
	assert.Equal(t, "claude", string(roots[0].Kind))
	assert.Equal(t, "/data/rollouts", roots[1].Path)
	assert.Equal(t, "codex", string(roots[1].Kind))
	assert.Equal(t, "/data/claude", roots[2].Path)
	assert.Equal(t, "claude", string(roots[2].Kind))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), expandHome("~/x"))
	assert.Equal(t, "/abs/x", expandHome("/abs/x"))
}
