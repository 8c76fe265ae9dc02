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

func executeValidate(t *testing.T, content string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "perfrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	var buf bytes.Buffer
	cmd := newValidateCommand()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateCommand_Valid(t *testing.T) {
	out, err := executeValidate(t, "command:\n  - sleep 1\n  - sleep 2\nperf_seconds: 5\n")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid (2 command(s))")
}

func TestValidateCommand_SchemaViolations(t *testing.T) {
	out, err := executeValidate(t, "command: sleep 1\nperf_seconds: 0\ncolour: red\n")
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
	assert.Contains(t, err.Error(), "schema violation")
	assert.Contains(t, out, "✗ /perf_seconds")
}

func TestValidateCommand_MissingFile(t *testing.T) {
	cmd := newValidateCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.yaml")})
	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
}
