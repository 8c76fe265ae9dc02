// Package runner starts target commands as child processes and waits for
// them to finish.
package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// Streams holds the destinations of a child's standard output and error.
// A nil field inherits the harness's own stream.
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Runner starts target commands.
type Runner struct {
	// Dir is the working directory of started commands. Empty means the
	// harness's working directory.
	Dir string
}

// Process is one started target command.
type Process struct {
	Command string
	Started time.Time

	cmd *exec.Cmd
}

// Split splits a command line into a program name and its arguments using
// shell word-splitting rules (quotes and backslash escapes, no expansion).
func Split(command string) (string, []string, error) {
	if strings.TrimSpace(command) == "" {
		return "", nil, errors.New("empty command")
	}
	words, err := shellquote.Split(command)
	if err != nil {
		return "", nil, fmt.Errorf("splitting %q: %w", command, err)
	}
	if len(words) == 0 {
		return "", nil, errors.New("empty command")
	}
	return words[0], words[1:], nil
}

// Start launches command and returns without waiting for it.
func (r *Runner) Start(command string, streams Streams) (*Process, error) {
	name, args, err := Split(command)
	if err != nil {
		return nil, err
	}

	//nolint:gosec // commands come from the user's own run configuration
	cmd := exec.Command(name, args...)
	cmd.Dir = r.Dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if streams.Stdout != nil {
		cmd.Stdout = streams.Stdout
	}
	if streams.Stderr != nil {
		cmd.Stderr = streams.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %q: %w", command, err)
	}

	return &Process{
		Command: command,
		Started: time.Now(),
		cmd:     cmd,
	}, nil
}

// Pid returns the operating system process id of the command.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the command exits and returns its exit code. A non-zero
// exit code is not an error; only a failure to wait on the process is.
// Commands killed by a signal report -1.
func (p *Process) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("waiting for %q: %w", p.Command, err)
}
