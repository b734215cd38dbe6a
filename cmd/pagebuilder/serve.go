package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/pagebuilder"
	"github.com/aretw0/pagebuilder/internal/presentation/tui"
	"github.com/aretw0/pagebuilder/pkg/adapters/file"
	httpAdapter "github.com/aretw0/pagebuilder/pkg/adapters/http"
	"github.com/aretw0/pagebuilder/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts PageBuilder in server mode: page sessions are exposed as a JSON API
over HTTP and their changes are streamed as server-sent events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); cmd.Flags().Changed("addr") {
			cfg.Server.Addr = addr
		}
		if dir, _ := cmd.Flags().GetString("pages"); cmd.Flags().Changed("pages") {
			cfg.Pages.Dir = dir
		}
		if watch, _ := cmd.Flags().GetBool("watch"); cmd.Flags().Changed("watch") {
			cfg.Pages.Watch = watch
		}

		b, err := openStore(cfg.Store)
		if err != nil {
			return err
		}
		defer func() {
			if err := b.close(); err != nil {
				logger.Warn("Failed to close session store", "err", err)
			}
		}()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics()
		metrics.MustRegister(reg)

		appOpts := append(appOptions(cfg, logger),
			pagebuilder.WithLifecycleHooks(metrics.Hooks()),
			pagebuilder.WithLifecycleHooks(observability.LogHooks(logger)),
		)
		opts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger),
			httpAdapter.WithAppOptions(appOpts...),
			httpAdapter.WithSessionOptions(b.sessions...),
			httpAdapter.WithGatherer(reg),
			httpAdapter.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		}
		if cfg.Pages.Dir != "" {
			loader := file.NewLoader(cfg.Pages.Dir,
				file.WithLogger(logger),
				file.WithDebounce(time.Duration(cfg.Pages.Debounce)),
			)
			opts = append(opts, httpAdapter.WithLoader(loader))
		}
		server := httpAdapter.NewServer(b.store, opts...)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if cfg.Pages.Dir != "" && cfg.Pages.Watch {
			go func() {
				if err := server.WatchPages(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Page watcher stopped", "err", err)
				}
			}()
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		tui.PrintBanner(cmd.OutOrStdout())

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting PageBuilder server", "addr", srv.Addr, "store", cfg.Store.Driver, "pages", cfg.Pages.Dir)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())
			cancel()

			timeout := time.Duration(cfg.Server.ShutdownTimeout)
			shutdownCtx, stop := context.WithTimeout(context.Background(), timeout)
			defer stop()

			// Open event streams keep requests alive; Close ends them.
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", timeout, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("failed to close server: %w", err)
				}
			}
			logger.Info("PageBuilder server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("pages", "", "Directory of page files served by name")
	serveCmd.Flags().Bool("watch", false, "Reload sessions when their page file changes")
}
