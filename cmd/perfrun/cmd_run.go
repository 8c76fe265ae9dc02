package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spboyer/perfrun/internal/config"
	"github.com/spboyer/perfrun/internal/harness"
	"github.com/spboyer/perfrun/internal/spinner"
)

type runOptions struct {
	outputDir     string
	perfSeconds   int
	noTime        bool
	noStd         bool
	noPerformance bool
	probe         string
	probeMatch    string
	waitProbe     bool
	summaryPath   string
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [config.yaml] [-- command args...]",
		Short: "Run the configured commands under the probe",
		Long: `Run every command of a configuration file in order.

For each command the probe is started first, then the command itself. When
the command exits the probe is signaled and the command's end time is
appended to _times.out.

A single command can be given after "--" instead of a configuration file:

  perfrun run --perf-seconds 5 -- sysbench cpu --time=30 run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, args)
		},
	}

	addRunFlags(cmd.Flags(), opts)
	return cmd
}

func addRunFlags(f *pflag.FlagSet, opts *runOptions) {
	f.StringVarP(&opts.outputDir, "output-dir", "d", "", "Directory for the log files (overrides output_directory)")
	f.IntVar(&opts.perfSeconds, "perf-seconds", config.DefaultPerfSeconds, "Probe sampling interval in seconds (overrides perf_seconds)")
	f.BoolVar(&opts.noTime, "no-time", false, "Do not write _times.out")
	f.BoolVar(&opts.noStd, "no-std", false, "Do not capture stdout and stderr")
	f.BoolVar(&opts.noPerformance, "no-performance", false, "Do not start the probe")
	f.StringVar(&opts.probe, "probe", config.DefaultProbe, "Probe executable (overrides probe)")
	f.StringVar(&opts.probeMatch, "probe-match", config.DefaultProbeMatch, "How the probe finds the command: name or pid")
	f.BoolVar(&opts.waitProbe, "wait-probe", false, "Wait for the probe to exit after signaling it")
	f.StringVarP(&opts.summaryPath, "summary", "o", "", "Write a JSON run summary to this file")
}

func runRun(cmd *cobra.Command, opts *runOptions, args []string) error {
	cfg, err := loadRunConfig(cmd, args)
	if err != nil {
		return err
	}
	applyRunFlags(cmd.Flags(), opts, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	cfg.Resolve(cwd)

	hopts := []harness.Option{harness.WithLogger(slog.Default())}
	if cfg.Std && spinner.IsTerminal(os.Stderr) {
		hopts = append(hopts, harness.WithProgress(os.Stderr))
	}

	summary, err := harness.New(cfg, hopts...).Run(cmd.Context())
	if summary != nil {
		printRunSummary(cmd.OutOrStdout(), summary)
		if opts.summaryPath != "" {
			if werr := writeRunSummary(opts.summaryPath, summary); werr != nil {
				return errors.Join(err, werr)
			}
		}
	}
	return err
}

// loadRunConfig builds the configuration from a file argument or from the
// command given after "--".
func loadRunConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	files, command := args, []string(nil)
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		files, command = args[:dash], args[dash:]
	}

	switch {
	case len(command) > 0 && len(files) > 0:
		return nil, &config.Error{Msg: "give either a configuration file or a command after --, not both"}
	case len(command) > 0:
		cfg := config.New()
		cfg.Commands = []string{shellquote.Join(command...)}
		return cfg, nil
	case len(files) == 1:
		return config.Load(files[0])
	case len(files) == 0:
		return nil, &config.Error{Msg: "a configuration file or a command after -- is required"}
	default:
		return nil, &config.Error{Msg: fmt.Sprintf("expected one configuration file, got %d", len(files))}
	}
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(f *pflag.FlagSet, opts *runOptions, cfg *config.Config) {
	if f.Changed("output-dir") {
		cfg.OutputDirectory = opts.outputDir
	}
	if f.Changed("perf-seconds") {
		cfg.PerfSeconds = opts.perfSeconds
	}
	if opts.noTime {
		cfg.TimeIt = false
	}
	if opts.noStd {
		cfg.Std = false
	}
	if opts.noPerformance {
		cfg.Performance = false
	}
	if f.Changed("probe") {
		cfg.Probe = opts.probe
	}
	if f.Changed("probe-match") {
		cfg.ProbeMatch = opts.probeMatch
	}
	if opts.waitProbe {
		cfg.WaitProbe = true
	}
}

func printRunSummary(w io.Writer, s *harness.Summary) {
	fmt.Fprintf(w, "\nRan %d command(s), logs in %s\n", len(s.Records), s.OutputDirectory) //nolint:errcheck
	for i, r := range s.Records {
		status := "✓"
		if r.ExitCode != 0 {
			status = fmt.Sprintf("✗ exit %d", r.ExitCode)
		}
		fmt.Fprintf(w, "  %d. %s  %s  (%s)\n", i+1, status, r.Command, r.Duration().Round(time.Millisecond)) //nolint:errcheck
	}
}

func writeRunSummary(path string, s *harness.Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}
