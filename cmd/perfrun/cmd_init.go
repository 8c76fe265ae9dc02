package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spboyer/perfrun/internal/config"
	"github.com/spboyer/perfrun/internal/wizard"
)

const defaultConfigName = "perfrun.yaml"

func newInitCommand() *cobra.Command {
	var (
		interactive bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter configuration file",
		Long: `Write perfrun.yaml into dir (default: the current directory).

With --interactive the commands and options are asked for; otherwise a
template with the default options is written. An existing file is only
replaced with --force.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path := filepath.Join(dir, defaultConfigName)

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to replace it)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			var cfg *config.Config
			if interactive {
				var err error
				cfg, err = wizard.Run(cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
			} else {
				cfg = config.New()
				cfg.Commands = []string{"sleep 1"}
			}

			content, err := wizard.GenerateConfigYAML(cfg)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", dir, err)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			cmd.Printf("Created %s\n", path)
			cmd.Printf("Next: edit the commands, then run `perfrun run %s`\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Ask for the commands and options")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing configuration file")
	return cmd
}
