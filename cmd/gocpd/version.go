package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/gocpd/internal/storage"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "gocpd %s\n", Version)
			_, _ = fmt.Fprintf(w, "Build Mode: %s\n", storage.BuildMode)
			_, _ = fmt.Fprintf(w, "SQLite Driver: %s\n", storage.DriverName)
			_, _ = fmt.Fprintf(w, "Schema Version: %s\n", storage.CurrentSchemaVersion)
		},
	}
}
