package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spboyer/perfrun/internal/analyze"
)

func newAnalyzeCommand() *cobra.Command {
	var (
		format   string
		plotPath string
	)

	cmd := &cobra.Command{
		Use:   "analyze [dir...]",
		Short: "Summarize the logs of one or more runs",
		Long: `Analyze reads _performance.out and _times.out from each directory
(default: the current directory) and reports maximum and average CPU usage,
peak memory and the elapsed time of every command.

Compressed logs (_performance.out.gz, _times.out.gz) are read as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := analyze.ParseFormat(format)
			if err != nil {
				return err
			}
			dirs := args
			if len(dirs) == 0 {
				dirs = []string{"."}
			}
			if plotPath != "" && len(dirs) != 1 {
				return fmt.Errorf("--plot needs exactly one directory, got %d", len(dirs))
			}

			reports, err := analyze.AnalyzeDirs(cmd.Context(), dirs...)
			if err != nil {
				return err
			}
			if err := analyze.Write(cmd.OutOrStdout(), f, reports); err != nil {
				return err
			}

			if plotPath != "" {
				rep := reports[0]
				title := filepath.Base(rep.Dir)
				if err := analyze.Plot(rep.Perf, title, plotPath); err != nil {
					return fmt.Errorf("plotting %s: %w", rep.Dir, err)
				}
				cmd.PrintErrf("Plot written to %s\n", plotPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(analyze.FormatText), "Output format: text, json, markdown, html")
	cmd.Flags().StringVar(&plotPath, "plot", "", "Write a PNG chart of CPU and memory usage to this file")
	return cmd
}
