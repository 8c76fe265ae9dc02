package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spboyer/perfrun/internal/config"
	"github.com/spboyer/perfrun/internal/logfiles"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func executeRun(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRunCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func readLog(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestRunCommand_AdHocCommand(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()

	out, err := executeRun(t, "--output-dir", dir, "--no-performance", "--", "echo", "hello world")
	require.NoError(t, err)

	assert.Equal(t, "hello world\n", readLog(t, dir, logfiles.Stdout))
	assert.Contains(t, readLog(t, dir, logfiles.Times), "cmd: echo 'hello world'\n")
	assert.NoFileExists(t, filepath.Join(dir, logfiles.Performance))
	assert.Contains(t, out, "Ran 1 command(s)")
	assert.Contains(t, out, "✓")
}

func TestRunCommand_ConfigFile(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	outDir := filepath.Join(dir, "results")
	cfgPath := filepath.Join(dir, "perfrun.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`command:
  - echo first
  - sh -c "echo second; exit 3"
output_directory: `+outDir+`
performance: false
`), 0o644))

	out, err := executeRun(t, cfgPath)
	require.NoError(t, err, "a non-zero exit of a command is not an error")

	assert.Equal(t, "first\nsecond\n", readLog(t, outDir, logfiles.Stdout))
	times := readLog(t, outDir, logfiles.Times)
	assert.Contains(t, times, "cmd: echo first\n")
	assert.Contains(t, times, "cmd: sh -c \"echo second; exit 3\"\n")
	assert.Contains(t, out, "✗ exit 3")
}

func TestRunCommand_FlagsOverrideConfig(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "perfrun.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("command: echo hi\noutput_directory: "+filepath.Join(dir, "ignored")+"\n"), 0o644))

	outDir := filepath.Join(dir, "override")
	_, err := executeRun(t, cfgPath, "--output-dir", outDir, "--no-performance", "--no-time")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, logfiles.Stdout))
	assert.NoFileExists(t, filepath.Join(outDir, logfiles.Times))
	assert.NoDirExists(t, filepath.Join(dir, "ignored"))
}

func TestRunCommand_WritesSummary(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	summaryPath := filepath.Join(dir, "summary.json")

	_, err := executeRun(t, "-d", dir, "--no-performance", "-o", summaryPath, "--", "true")
	require.NoError(t, err)

	data, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, dir, got["output_directory"])
	records := got["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "true", records[0].(map[string]any)["command"])
	assert.EqualValues(t, 0, records[0].(map[string]any)["exit_code"])
}

func TestRunCommand_ArgumentErrors(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "perfrun.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("command: echo hi\n"), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{"nothing to run", nil},
		{"file and command", []string{cfgPath, "--", "echo"}},
		{"two files", []string{cfgPath, cfgPath}},
		{"missing file", []string{filepath.Join(t.TempDir(), "nope.yaml")}},
		{"bad interval", []string{"--perf-seconds", "0", "--", "echo"}},
		{"bad probe match", []string{"--probe-match", "cmdline", "--", "echo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeRun(t, tt.args...)
			require.Error(t, err)
			assert.True(t, config.IsConfigError(err), "got %v", err)
		})
	}
}

func TestRunCommand_MissingProbeCreatesNoFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	_, err := executeRun(t, "-d", dir, "--probe", "/nonexistent/pidstat", "--", "echo", "hi")
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
	assert.NoDirExists(t, dir)
}

func TestRunCommand_FakeProbe(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	probe := filepath.Join(dir, "fakestat")
	require.NoError(t, os.WriteFile(probe, []byte("#!/bin/sh\necho \"probe $*\"\n"), 0o755))

	outDir := filepath.Join(dir, "out")
	_, err := executeRun(t, "-d", outDir, "--probe", probe, "--perf-seconds", "7", "--wait-probe", "--", "sleep", "0.2")
	require.NoError(t, err)

	assert.Equal(t, "probe 7 -rud -C sleep\n", readLog(t, outDir, logfiles.Performance))
}

func TestApplyRunFlags_OnlyChangedValues(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--no-std", "--probe-match", "pid"}))

	cfg := config.New()
	cfg.OutputDirectory = "from-file"
	cfg.PerfSeconds = 5
	applyRunFlags(cmd.Flags(), &runOptions{
		noStd:       true,
		probeMatch:  "pid",
		perfSeconds: config.DefaultPerfSeconds,
	}, cfg)

	assert.Equal(t, "from-file", cfg.OutputDirectory)
	assert.Equal(t, 5, cfg.PerfSeconds)
	assert.False(t, cfg.Std)
	assert.True(t, cfg.TimeIt)
	assert.Equal(t, config.MatchPID, cfg.ProbeMatch)
}
