package main

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perfrun",
		Short: "perfrun - run commands under a CPU and memory probe",
		Long: `perfrun runs a list of commands one after another while a pidstat-style
probe samples their CPU and memory usage.

Each run writes _times.out, _performance.out, _stdout.out and _stderr.out
into the output directory. Use "perfrun analyze" to summarize them.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger(cmd.OutOrStdout(), *debugLogging))
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newAnalyzeCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newArchiveCommand())

	return cmd
}

// newLogger returns a slog.Logger rendering phase messages on w.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           level,
		Prefix:          "perfrun",
	})
	return slog.New(handler)
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
