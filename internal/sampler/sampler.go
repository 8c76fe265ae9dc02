// Package sampler runs an external pidstat-style probe alongside a target
// command and stops it when the command is done.
package sampler

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"
)

// maxNameLen is the longest executable name passed verbatim to the probe.
// Longer names are cut and suffixed with "*" so the probe prefix-matches.
const maxNameLen = 10

// Target identifies the process the probe should watch. Exactly one of Name
// and PID is used; PID takes precedence when non-zero.
type Target struct {
	Name string
	PID  int
}

// ProbeName returns the probe's match string for command: the base name of
// its executable, truncated to maxNameLen characters plus "*" when longer.
// The command is split with shell-word rules, as the runner splits it, so a
// quoted executable path yields the name of the program actually started.
func ProbeName(command string) string {
	words, err := shellquote.Split(command)
	if err != nil {
		words = strings.Fields(command)
	}
	if len(words) == 0 {
		return ""
	}
	name := filepath.Base(words[0])
	if r := []rune(name); len(r) > maxNameLen {
		name = string(r[:maxNameLen]) + "*"
	}
	return name
}

// Args returns the probe's arguments: interval seconds, CPU, memory and disk
// reports, and the process selector.
func Args(interval int, target Target) []string {
	args := []string{strconv.Itoa(interval), "-rud"}
	if target.PID > 0 {
		return append(args, "-p", strconv.Itoa(target.PID))
	}
	return append(args, "-C", target.Name)
}

// Sampler starts probe processes.
type Sampler struct {
	// Binary is the probe executable.
	Binary string
	// Interval is the sampling period in seconds.
	Interval int
	// Wait makes Terminate wait for the probe to exit, killing it after Grace.
	Wait  bool
	Grace time.Duration
}

// Probe is one running probe process.
type Probe struct {
	cmd   *exec.Cmd
	done  chan struct{}
	wait  bool
	grace time.Duration
}

// Start launches the probe for target with its standard output written to
// out. The probe is not awaited; call Terminate when the target exits.
func (s *Sampler) Start(target Target, out io.Writer) (*Probe, error) {
	if target.PID <= 0 && target.Name == "" {
		return nil, fmt.Errorf("probe target has neither a name nor a pid")
	}

	//nolint:gosec // the probe binary comes from the user's run configuration
	cmd := exec.Command(s.Binary, Args(s.Interval, target)...)
	cmd.Stdout = out
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting probe %s: %w", s.Binary, err)
	}

	p := &Probe{
		cmd:   cmd,
		done:  make(chan struct{}),
		wait:  s.Wait,
		grace: s.Grace,
	}
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Pid returns the probe's process id.
func (p *Probe) Pid() int {
	return p.cmd.Process.Pid
}

// Done is closed once the probe process has exited and been reaped.
func (p *Probe) Done() <-chan struct{} {
	return p.done
}

// Terminate sends SIGTERM to the probe. Unless the Sampler was configured to
// wait, it returns immediately and a final partial sample may or may not
// reach the log.
func (p *Probe) Terminate() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		select {
		case <-p.done:
			return nil
		default:
		}
		return fmt.Errorf("signaling probe %d: %w", p.Pid(), err)
	}
	if !p.wait {
		return nil
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(p.grace):
	}
	if err := p.cmd.Process.Kill(); err != nil {
		select {
		case <-p.done:
			return nil
		default:
		}
		return fmt.Errorf("killing probe %d: %w", p.Pid(), err)
	}
	<-p.done
	return nil
}
