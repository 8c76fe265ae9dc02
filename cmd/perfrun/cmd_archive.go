package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spboyer/perfrun/internal/archive"
)

func newArchiveCommand() *cobra.Command {
	var (
		outPath   string
		uploadURL string
	)

	cmd := &cobra.Command{
		Use:   "archive [dir]",
		Short: "Bundle the logs of a run into a tar.gz file",
		Long: `Archive writes the log files found in dir (default: the current directory)
into a gzip-compressed tar file.

With --upload the archive is also copied to an Azure Blob Storage container.
A SAS token in the container URL is used when present; otherwise credentials
come from the environment, a managed identity or the Azure CLI login.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			out := outPath
			if out == "" {
				out = filepath.Join(dir, "perfrun-logs.tar.gz")
			}

			added, err := archive.CreateFile(dir, out)
			if err != nil {
				return err
			}
			cmd.Printf("Archived %d file(s) to %s\n", len(added), out)

			if uploadURL == "" {
				return nil
			}
			f, err := os.Open(out)
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck

			blob, err := archive.Upload(cmd.Context(), uploadURL, filepath.Base(out), f)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			cmd.Printf("Uploaded to %s\n", blob)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Archive file (default: <dir>/perfrun-logs.tar.gz)")
	cmd.Flags().StringVar(&uploadURL, "upload", "", "Azure Blob Storage container URL to upload the archive to")
	return cmd
}
