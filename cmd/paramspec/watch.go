package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/paramspec/metrics"
	"github.com/c360studio/paramspec/watch"
)

func watchCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Rebuild and revalidate whenever the spec or a document changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *logLevel)
			if err != nil {
				return &exitError{code: exitStructural, err: err}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			debounce, err := a.cfg.WatchDebounce()
			if err != nil {
				return &exitError{code: exitStructural, err: err}
			}

			watcher, err := watch.New(watch.Config{
				Debounce:    debounce,
				ExcludeDirs: a.cfg.Scan.ExcludeDirs,
			}, a.cfg.Scan.Root, a.logger)
			if err != nil {
				return &exitError{code: exitStructural, err: err}
			}
			if err := watcher.Start(ctx); err != nil {
				return &exitError{code: exitStructural, err: err}
			}
			defer watcher.Stop()

			if addr := a.cfg.Watch.MetricsAddr; addr != "" {
				go serveMetrics(ctx, a, addr)
			}

			// Initial pass before waiting for changes.
			a.rebuild(ctx)

			for {
				select {
				case <-ctx.Done():
					a.logger.Info("Watch mode stopped")
					return nil
				case ev, ok := <-watcher.Events():
					if !ok {
						return nil
					}
					a.logger.Info("Change detected, rebuilding",
						"path", ev.Path,
						"op", ev.Operation)
					a.rebuild(ctx)
				}
			}
		},
	}
}

// rebuild runs the full build+validate pipeline once. Failures are logged,
// never fatal; watch mode keeps running and retries on the next change.
func (a *app) rebuild(ctx context.Context) {
	res, err := a.runPipeline(ctx, false)
	if err != nil {
		metrics.BuildsTotal.WithLabelValues("fatal").Inc()
		a.logger.Error("Build failed", "error", err)
		return
	}
	if err := a.export(res); err != nil {
		metrics.BuildsTotal.WithLabelValues("fatal").Inc()
		a.logger.Error("Export failed", "error", err)
		return
	}

	rep, err := a.scanCorpus(res.snap, res.warnings)
	if err != nil {
		a.logger.Error("Scan failed", "error", err)
		return
	}
	if err := a.writeReport(rep); err != nil {
		a.logger.Error("Write report failed", "error", err)
		return
	}

	if rep.HasIssues() || len(res.warnings) > 0 {
		metrics.BuildsTotal.WithLabelValues("issues").Inc()
		a.logger.Warn("Build complete with findings",
			"issues", rep.Total,
			"warnings", len(res.warnings))
		return
	}
	metrics.BuildsTotal.WithLabelValues("ok").Inc()
	a.logger.Info("Build complete", "content_hash", res.snap.ContentHash)
}

// serveMetrics exposes prometheus metrics until the context is cancelled.
func serveMetrics(ctx context.Context, a *app, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("Serving metrics", "addr", fmt.Sprintf("http://%s/metrics", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.logger.Error("Metrics server failed", "error", err)
	}
}
