package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellToolDisabledByDefault(t *testing.T) {
	shell := NewShellTool(DefaultShellConfig())

	assert.False(t, shell.Enabled())
	_, err := shell.Call(context.Background(), map[string]any{"command": "echo hi"})
	assert.ErrorContains(t, err, "disabled")
}

func TestShellToolDeniedPattern(t *testing.T) {
	cfg := DefaultShellConfig()
	cfg.Enabled = true
	shell := NewShellTool(cfg)

	_, err := shell.Call(context.Background(), map[string]any{"command": "sudo rm -rf / --no-preserve-root"})
	assert.ErrorContains(t, err, "denied pattern")
}

func TestShellToolAllowlist(t *testing.T) {
	cfg := DefaultShellConfig()
	cfg.Enabled = true
	cfg.AllowedCmds = []string{"echo"}
	shell := NewShellTool(cfg)

	_, err := shell.Call(context.Background(), map[string]any{"command": "ls /"})
	assert.ErrorContains(t, err, "allowlist")

	result, err := shell.Call(context.Background(), map[string]any{"command": "echo hello"})
	require.NoError(t, err)
	res := result.(*ShellResult)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestShellToolExitCode(t *testing.T) {
	cfg := DefaultShellConfig()
	cfg.Enabled = true
	shell := NewShellTool(cfg)

	result, err := shell.Call(context.Background(), map[string]any{"command": "exit 3"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.(*ShellResult).ExitCode)
}

func TestShellToolTimeout(t *testing.T) {
	cfg := DefaultShellConfig()
	cfg.Enabled = true
	shell := NewShellTool(cfg)

	result, err := shell.exec(context.Background(), "sleep 0", 1)
	require.NoError(t, err)
	assert.False(t, result.TimedOut)

	result, err = shell.exec(context.Background(), "sleep 5", 1)
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Equal(t, -1, result.ExitCode)
}

func TestShellToolEmptyCommand(t *testing.T) {
	cfg := DefaultShellConfig()
	cfg.Enabled = true
	shell := NewShellTool(cfg)

	_, err := shell.Call(context.Background(), map[string]any{})
	assert.ErrorContains(t, err, "empty")
}

func TestTruncateOutput(t *testing.T) {
	assert.Equal(t, "short", truncateOutput("short", 100))
	long := truncateOutput("aaaaaaaaaa", 4)
	assert.Contains(t, long, "truncated")
}
