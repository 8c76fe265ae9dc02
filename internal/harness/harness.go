// Package harness runs the configured target commands one after another,
// sampling each with the probe and recording its timing.
//
// For every command the harness moves Idle -> Running -> Idle:
//
//  1. start the probe (performance enabled, name matching)
//  2. start the target command
//  3. wait for the target to exit
//  4. signal the probe
//  5. append the cmd/ended record to _times.out (time_it enabled)
//
// A single "started:" line opens _times.out before the first command.
package harness

//go:generate go tool mockgen -source=harness.go -destination=mocks_test.go -package=harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/spboyer/perfrun/internal/config"
	"github.com/spboyer/perfrun/internal/logfiles"
	"github.com/spboyer/perfrun/internal/runner"
	"github.com/spboyer/perfrun/internal/sampler"
	"github.com/spboyer/perfrun/internal/spinner"
)

// Process is a started target command.
type Process interface {
	Pid() int
	Wait() (int, error)
}

// Launcher starts target commands.
type Launcher interface {
	Start(command string, streams runner.Streams) (Process, error)
}

// Probe is a running sampling probe.
type Probe interface {
	Terminate() error
}

// ProbeLauncher starts sampling probes.
type ProbeLauncher interface {
	Start(target sampler.Target, out io.Writer) (Probe, error)
}

// RunRecord describes one executed command.
type RunRecord struct {
	Command  string    `json:"command"`
	PID      int       `json:"pid"`
	ExitCode int       `json:"exit_code"`
	Started  time.Time `json:"started"`
	Ended    time.Time `json:"ended"`
}

// Duration is the command's own wall-clock time.
func (r RunRecord) Duration() time.Duration {
	return r.Ended.Sub(r.Started)
}

// Summary is the outcome of a run.
type Summary struct {
	OutputDirectory string      `json:"output_directory"`
	Started         time.Time   `json:"started"`
	Records         []RunRecord `json:"records"`
}

// Failed returns the records whose command exited with a non-zero code.
func (s *Summary) Failed() []RunRecord {
	var out []RunRecord
	for _, r := range s.Records {
		if r.ExitCode != 0 {
			out = append(out, r)
		}
	}
	return out
}

// Harness executes one run configuration.
type Harness struct {
	cfg      *config.Config
	launcher Launcher
	probes   ProbeLauncher
	opener   *logfiles.Opener
	times    *logfiles.TimesWriter
	now      func() time.Time
	progress io.Writer
	logger   *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLauncher replaces the process launcher for target commands.
func WithLauncher(l Launcher) Option {
	return func(h *Harness) {
		h.launcher = l
	}
}

// WithProbeLauncher replaces the probe launcher.
func WithProbeLauncher(p ProbeLauncher) Option {
	return func(h *Harness) {
		h.probes = p
	}
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) {
		h.now = now
	}
}

// WithProgress shows a spinner on w while each command runs.
func WithProgress(w io.Writer) Option {
	return func(h *Harness) {
		h.progress = w
	}
}

// WithLogger sets the logger for phase messages.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// New creates a Harness for cfg. cfg.OutputDirectory should already be
// resolved to an absolute path.
func New(cfg *config.Config, opts ...Option) *Harness {
	opener := logfiles.NewOpener(cfg.OutputDirectory)
	h := &Harness{
		cfg:      cfg,
		launcher: execLauncher{r: &runner.Runner{}},
		probes: execProbeLauncher{s: &sampler.Sampler{
			Binary:   cfg.Probe,
			Interval: cfg.PerfSeconds,
			Wait:     cfg.WaitProbe,
			Grace:    time.Duration(cfg.ProbeGraceMs) * time.Millisecond,
		}},
		opener: opener,
		times:  logfiles.NewTimesWriter(opener),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Run executes every configured command in order. A non-zero exit code of a
// command is recorded, not returned as an error; any failure to start a
// process or write a log file aborts the run.
func (h *Harness) Run(ctx context.Context) (*Summary, error) {
	if err := h.cfg.Validate(); err != nil {
		return nil, err
	}
	if h.cfg.Performance {
		if c, ok := h.probes.(interface{ Check() error }); ok {
			if err := c.Check(); err != nil {
				return nil, err
			}
		}
	}

	summary := &Summary{
		OutputDirectory: h.opener.Dir(),
		Started:         h.now(),
	}

	if h.cfg.TimeIt {
		h.logger.DebugContext(ctx, "writing start time", "file", h.opener.Path(logfiles.Times))
		if err := h.times.Started(summary.Started); err != nil {
			return nil, err
		}
	}

	for i, command := range h.cfg.Commands {
		rec, err := h.runOne(ctx, i, command)
		if err != nil {
			return summary, fmt.Errorf("command %d of %d (%q): %w", i+1, len(h.cfg.Commands), command, err)
		}
		summary.Records = append(summary.Records, *rec)

		if h.cfg.TimeIt {
			if err := h.times.Ended(command, rec.Ended); err != nil {
				return summary, err
			}
		}
	}

	return summary, nil
}

func (h *Harness) runOne(ctx context.Context, index int, command string) (*RunRecord, error) {
	streams, closeStreams, err := h.openStreams()
	if err != nil {
		return nil, err
	}
	defer closeStreams()

	var probe *activeProbe
	if h.cfg.Performance && h.cfg.ProbeMatch == config.MatchName {
		probe, err = h.startProbe(ctx, sampler.Target{Name: sampler.ProbeName(command)})
		if err != nil {
			return nil, err
		}
	}

	h.logger.InfoContext(ctx, "starting command", "n", index+1, "cmd", command)
	proc, err := h.launcher.Start(command, streams)
	if err != nil {
		_ = h.stopProbe(ctx, probe)
		return nil, err
	}
	started := h.now()
	pid := proc.Pid()
	h.logger.InfoContext(ctx, "command started", "n", index+1, "pid", pid)

	var probeErr error
	if h.cfg.Performance && h.cfg.ProbeMatch == config.MatchPID {
		probe, probeErr = h.startProbe(ctx, sampler.Target{PID: pid})
	}

	stopProgress := h.startProgress(command)
	code, err := proc.Wait()
	stopProgress()
	ended := h.now()
	if err != nil {
		_ = h.stopProbe(ctx, probe)
		return nil, err
	}
	h.logger.InfoContext(ctx, "command finished", "n", index+1, "exit_code", code, "elapsed", ended.Sub(started).Round(time.Millisecond))

	if err := h.stopProbe(ctx, probe); err != nil {
		return nil, err
	}
	if probeErr != nil {
		return nil, probeErr
	}

	return &RunRecord{
		Command:  command,
		PID:      pid,
		ExitCode: code,
		Started:  started,
		Ended:    ended,
	}, nil
}

// openStreams opens the stdout/stderr capture files when std is enabled.
// With capture disabled the child inherits the harness's streams.
func (h *Harness) openStreams() (runner.Streams, func(), error) {
	if !h.cfg.Std {
		return runner.Streams{}, func() {}, nil
	}

	stdout, err := h.opener.Open(logfiles.Stdout)
	if err != nil {
		return runner.Streams{}, nil, err
	}
	stderr, err := h.opener.Open(logfiles.Stderr)
	if err != nil {
		_ = stdout.Close()
		return runner.Streams{}, nil, err
	}
	return runner.Streams{Stdout: stdout, Stderr: stderr}, func() {
		_ = stdout.Close()
		_ = stderr.Close()
	}, nil
}

type activeProbe struct {
	probe Probe
	out   *os.File
}

func (h *Harness) startProbe(ctx context.Context, target sampler.Target) (*activeProbe, error) {
	out, err := h.opener.Open(logfiles.Performance)
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "starting probe", "probe", h.cfg.Probe, "args", sampler.Args(h.cfg.PerfSeconds, target))
	p, err := h.probes.Start(target, out)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	h.logger.InfoContext(ctx, "probe started")
	return &activeProbe{probe: p, out: out}, nil
}

func (h *Harness) stopProbe(ctx context.Context, ap *activeProbe) error {
	if ap == nil {
		return nil
	}
	err := ap.probe.Terminate()
	_ = ap.out.Close()
	if err != nil {
		return err
	}
	h.logger.InfoContext(ctx, "probe terminated")
	return nil
}

func (h *Harness) startProgress(command string) func() {
	if h.progress == nil {
		return func() {}
	}
	return spinner.Start(h.progress, command)
}

type execLauncher struct {
	r *runner.Runner
}

func (l execLauncher) Start(command string, streams runner.Streams) (Process, error) {
	p, err := l.r.Start(command, streams)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type execProbeLauncher struct {
	s *sampler.Sampler
}

func (l execProbeLauncher) Start(target sampler.Target, out io.Writer) (Probe, error) {
	p, err := l.s.Start(target, out)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Check fails with a configuration error when the probe binary cannot be
// found, before any file is created.
func (l execProbeLauncher) Check() error {
	if _, err := exec.LookPath(l.s.Binary); err != nil {
		return &config.Error{Field: "probe", Msg: fmt.Sprintf("%q not found", l.s.Binary), Err: err}
	}
	return nil
}
