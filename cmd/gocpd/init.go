package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/gocpd/internal/config"
)

type initOptions struct {
	force     bool
	blockSize int
}

func newInitCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter .gocpd.yaml",
		Long: `Create .gocpd.yaml in the project root with the default settings spelled
out. An existing file is left alone unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.force, "force", false, "overwrite an existing .gocpd.yaml")
	f.IntVar(&opts.blockSize, "block-size", 0, "statements per block to record (default 10)")

	return cmd
}

func runInit(cmd *cobra.Command, args []string, opts *initOptions) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("gocpd: path %q does not exist", root)
	}
	if !info.IsDir() {
		return fmt.Errorf("gocpd: %q is not a directory", root)
	}

	cfg := config.Starter()
	if cmd.Flags().Changed("block-size") {
		cfg.BlockSize = &opts.blockSize
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	path := filepath.Join(root, config.FileName)
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if opts.force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	w := cmd.OutOrStdout()
	f, err := os.OpenFile(path, flags, 0o644) //nolint:gosec // user-provided project path
	if errors.Is(err, fs.ErrExist) {
		_, _ = color.New(color.FgYellow).Fprintf(w, "%s already exists, use --force to overwrite\n", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := config.Write(f, cfg); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	slog.Info("wrote config", "path", path)
	_, _ = color.New(color.FgGreen).Fprintf(w, "Wrote %s\n", path)
	return nil
}
