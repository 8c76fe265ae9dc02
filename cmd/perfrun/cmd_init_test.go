package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spboyer/perfrun/internal/config"
)

func TestInitCommand_WritesLoadableConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bench")

	var buf bytes.Buffer
	cmd := newInitCommand()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{dir})
	require.NoError(t, cmd.Execute())

	path := filepath.Join(dir, defaultConfigName)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sleep 1"}, cfg.Commands)
	assert.Equal(t, config.DefaultPerfSeconds, cfg.PerfSeconds)
	assert.Contains(t, buf.String(), "Created "+path)
}

func TestInitCommand_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, defaultConfigName)
	require.NoError(t, os.WriteFile(path, []byte("command: mine\n"), 0o644))

	cmd := newInitCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{dir})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "command: mine\n", string(data))
}

func TestInitCommand_Force(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, defaultConfigName)
	require.NoError(t, os.WriteFile(path, []byte("command: mine\n"), 0o644))

	cmd := newInitCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "--force"})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# perfrun configuration")
}
