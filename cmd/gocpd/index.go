package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/gocpd/internal/config"
	"github.com/dshills/gocpd/internal/indexer"
	"github.com/dshills/gocpd/internal/storage"
)

type indexOptions struct {
	force         bool
	blockSize     int
	workers       int
	includeTests  bool
	includeVendor bool
}

func newIndexCmd(global *globalOptions) *cobra.Command {
	opts := &indexOptions{}

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Fingerprint a project into the block index",
		Long: `Walk the project, split every matching file into statements and store one
fingerprint per window of block-size consecutive statements. Unchanged files
are skipped unless --force is given. Settings default to .gocpd.yaml in the
project root; flags override them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args, global, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.force, "force", false, "re-fingerprint unchanged files")
	f.IntVar(&opts.blockSize, "block-size", 0, "statements per block (default from config or 10)")
	f.IntVar(&opts.workers, "workers", 0, "concurrent workers (default NumCPU)")
	f.BoolVar(&opts.includeTests, "include-tests", true, "index _test.go files")
	f.BoolVar(&opts.includeVendor, "include-vendor", false, "index the vendor directory")

	return cmd
}

func runIndex(cmd *cobra.Command, args []string, global *globalOptions, opts *indexOptions) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	cfg, err := loadProjectConfig(root)
	if err != nil {
		return err
	}

	idxConfig := &indexer.Config{
		BlockSize:     cfg.GetBlockSize(),
		Workers:       cfg.GetWorkers(),
		BatchSize:     cfg.GetBatchSize(),
		IncludeTests:  cfg.GetIncludeTests(),
		IncludeVendor: cfg.IncludeVendor,
		ForceReindex:  opts.force,
		Extensions:    cfg.GetExtensions(),
	}
	flags := cmd.Flags()
	if flags.Changed("block-size") {
		if opts.blockSize < 1 {
			return fmt.Errorf("--block-size must be at least 1, got %d", opts.blockSize)
		}
		idxConfig.BlockSize = opts.blockSize
	}
	if flags.Changed("workers") {
		idxConfig.Workers = opts.workers
	}
	if flags.Changed("include-tests") {
		idxConfig.IncludeTests = opts.includeTests
	}
	if flags.Changed("include-vendor") {
		idxConfig.IncludeVendor = opts.includeVendor
	}

	store, err := openStorage(global, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := indexer.New(store).WithLogger(slog.Default()).IndexProject(cmd.Context(), root, idxConfig)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	_, _ = fmt.Fprintf(w, "%s %s (block size %d)\n", bold.Sprint("Indexed"), root, idxConfig.BlockSize)
	_, _ = fmt.Fprintf(w, "  files:  %s indexed, %d skipped, %d pruned",
		green.Sprint(stats.FilesIndexed), stats.FilesSkipped, stats.FilesPruned)
	if stats.FilesFailed > 0 {
		_, _ = fmt.Fprintf(w, ", %s", red.Sprintf("%d failed", stats.FilesFailed))
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "  blocks: %d\n", stats.BlocksCreated)
	_, _ = fmt.Fprintf(w, "  run:    %s in %s\n", stats.RunID, stats.Duration.Round(time.Millisecond))
	for _, msg := range stats.ErrorMessages {
		_, _ = fmt.Fprintf(w, "  %s %s\n", red.Sprint("error:"), msg)
	}

	return nil
}

// projectRoot resolves the optional path argument to an absolute directory
func projectRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", root, err)
	}
	return abs, nil
}

// openStorage opens the SQLite index chosen by flags, environment and config
func openStorage(global *globalOptions, cfg *config.Config) (*storage.SQLiteStorage, error) {
	dbPath, err := global.resolveDBPath(cfg)
	if err != nil {
		return nil, err
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	slog.Debug("opening index", "db", dbPath, "driver", storage.DriverName)
	return storage.NewSQLiteStorage(dbPath)
}
