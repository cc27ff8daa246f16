package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/gocpd/internal/detector"
	"github.com/dshills/gocpd/internal/httpapi"
	"github.com/dshills/gocpd/internal/mcp"
	"github.com/dshills/gocpd/internal/metrics"
)

func newServeCmd(global *globalOptions) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Serve the index_codebase, find_duplicates, get_status and fingerprint_file
tools over the Model Context Protocol on stdin/stdout. With --http-addr, a
read-only HTTP API with /healthz and Prometheus /metrics runs alongside.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, global, httpAddr)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "listen address for the HTTP API and /metrics (disabled when empty)")

	return cmd
}

func runServe(cmd *cobra.Command, global *globalOptions, httpAddr string) error {
	logger := slog.Default()

	// Only db_path matters here; tool calls read each project's own config
	cfg, err := loadProjectConfig(".")
	if err != nil {
		return err
	}
	store, err := openStorage(global, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	metrics.Register(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcp.New(store, logger)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer stop()
		return srv.Serve(gctx)
	})

	if httpAddr != "" {
		httpSrv := &http.Server{
			Addr:              httpAddr,
			Handler:           httpapi.New(logger, store, detector.New(store), prometheus.DefaultGatherer),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		g.Go(func() error {
			logger.Info("starting HTTP API", "addr", httpAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
