package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spboyer/perfrun/internal/config"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Check a configuration file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			errs, err := config.ValidateFile(path)
			if err != nil {
				return &config.Error{Msg: "validating", Err: err}
			}
			if len(errs) > 0 {
				for _, e := range errs {
					cmd.Printf("  ✗ %s\n", e)
				}
				return &config.Error{Msg: fmt.Sprintf("%s: %d schema violation(s)", path, len(errs))}
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			cmd.Printf("✓ %s is valid (%d command(s))\n", path, len(cfg.Commands))
			return nil
		},
	}
}
