package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wordCountScript = `
local M = {}

function M.activate(ctx)
  ctx.commands.register("wordCount.count", function(text)
    local n = 0
    for _ in string.gmatch(text or "", "%S+") do n = n + 1 end
    return n
  end)
end

return M
`

// workspace creates a workspace with one Lua plugin and a config file
// pointing at it.
func workspace(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "plugins"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugins", "word-count.lua"), []byte(wordCountScript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper.pdf"), []byte("%PDF-1.5\n<< /Type /Page >>\n<< /Type /Page >>\n"), 0o644))

	cfgPath = filepath.Join(dir, "texforge.yaml")
	cfg := "workspace: " + dir + "\nextensionDirs: [plugins]\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return dir, cfgPath
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPluginsCommand(t *testing.T) {
	_, cfgPath := workspace(t)

	out, err := execute(t, "plugins", "-c", cfgPath, "--env-file", "", "--json")
	require.NoError(t, err)

	var body struct {
		Plugins []struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"plugins"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body), out)
	states := make(map[string]string)
	for _, p := range body.Plugins {
		states[p.ID] = p.State
	}
	assert.Equal(t, map[string]string{
		"pdf-viewer":     "active",
		"plugin-manager": "active",
		"word-count":     "active",
	}, states)
}

func TestPluginsTable(t *testing.T) {
	_, cfgPath := workspace(t)
	t.Setenv("TEXFORGE_DISABLED_PLUGINS", "pdf-viewer")

	out, err := execute(t, "plugins", "-c", cfgPath, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Regexp(t, `word-count\s+0\.0\.0\s+active`, out)
	assert.Regexp(t, `pdf-viewer\s+-\s+disabled`, out)
}

func TestCommandsCommand(t *testing.T) {
	_, cfgPath := workspace(t)

	out, err := execute(t, "commands", "zoom", "-c", cfgPath, "--env-file", "", "--json")
	require.NoError(t, err)

	var cmds []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &cmds), out)
	ids := make([]string, len(cmds))
	for i, c := range cmds {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"pdfViewer.resetZoom", "pdfViewer.zoomIn", "pdfViewer.zoomOut"}, ids)
}

func TestExecCommand(t *testing.T) {
	_, cfgPath := workspace(t)

	out, err := execute(t, "exec", "wordCount.count", "one two three", "-c", cfgPath, "--env-file", "")
	require.NoError(t, err)
	assert.JSONEq(t, "3", out)

	_, err = execute(t, "exec", "missing.command", "-c", cfgPath, "--env-file", "")
	assert.ErrorContains(t, err, "command not found")
}

func TestOpenCommand(t *testing.T) {
	dir, cfgPath := workspace(t)

	out, err := execute(t, "open", filepath.Join(dir, "paper.pdf"), "-c", cfgPath, "--env-file", "")
	require.NoError(t, err)

	var view struct {
		Custom  bool `json:"custom"`
		Content struct {
			Pages int `json:"pages"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view), out)
	assert.True(t, view.Custom)
	assert.Equal(t, 2, view.Content.Pages)
}

func TestFlagsOverrideConfig(t *testing.T) {
	dir, cfgPath := workspace(t)
	other := t.TempDir()

	out, err := execute(t, "plugins", "-c", cfgPath, "--env-file", "", "--json",
		"--workspace", other, "--extensions", filepath.Join(dir, "plugins"))
	require.NoError(t, err)
	assert.Contains(t, out, `"word-count"`)

	_, err = execute(t, "plugins", "-c", cfgPath, "--env-file", "", "--log-format", "xml")
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	_, cfgPath := workspace(t)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := newRootCmd()
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "-c", cfgPath, "--env-file", "", "--http", "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "activated:") },
		5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []any{"one two", float64(3), true, map[string]any{"a": "b"}},
		parseArgs([]string{"one two", "3", "true", `{"a":"b"}`}))
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "plugins", "-c", filepath.Join(t.TempDir(), "none.yaml"), "--env-file", "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
