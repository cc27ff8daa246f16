package main

import (
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/gocpd/internal/config"
	gocpdlog "github.com/dshills/gocpd/internal/log"
)

// globalOptions holds the persistent flag values
type globalOptions struct {
	verbose bool
	quiet   bool
	noColor bool
	logFile string
	dbPath  string

	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "gocpd",
		Short: "Find copy-pasted code with rolling-hash block fingerprints",
		Long: `gocpd splits source files into statements, fingerprints every window of
consecutive statements with a rolling hash and stores the fingerprints in
SQLite. Windows that share a fingerprint across the codebase are reported as
duplicated code, from the command line or to AI assistants over MCP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			opts.logCloser = gocpdlog.Setup(gocpdlog.Options{
				Verbose: opts.verbose,
				Quiet:   opts.quiet,
				File:    opts.logFile,
			})
			if opts.noColor {
				color.NoColor = true
			}
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.logCloser != nil {
				_ = opts.logCloser.Close()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress non-essential output")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	pf.StringVar(&opts.logFile, "log-file", "", "also write logs to this file (rotated)")
	pf.StringVar(&opts.dbPath, "db", "", "database file (default $"+config.EnvDBPath+", db_path or "+config.DefaultDBPath+")")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newDuplicatesCmd(opts))
	cmd.AddCommand(newBlocksCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// resolveDBPath picks the database: --db, then the config chain
func (o *globalOptions) resolveDBPath(cfg *config.Config) (string, error) {
	if o.dbPath != "" {
		return o.dbPath, nil
	}
	return cfg.ResolveDBPath()
}

// loadProjectConfig reads and validates .gocpd.yaml from root
func loadProjectConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
