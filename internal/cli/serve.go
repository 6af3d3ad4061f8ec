package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"metapick/internal/handlers"
	"metapick/internal/indexer"
	"metapick/internal/metrics"
	"metapick/internal/middleware"
	"metapick/internal/startup"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectorInterval = time.Minute
)

func serveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [path...]",
		Short: "Serve statistics over HTTP",
		Long: `Serve the statistics and the record catalog as a JSON API with health
checks and Prometheus metrics. When paths are given they are extracted in
the background at startup and, with extract_interval set, periodically.`,
		RunE: func(_ *cobra.Command, args []string) error {
			return a.runServe(args)
		},
	}

	cmd.Flags().String("port", "8080", "HTTP port")
	cmd.Flags().Bool("metrics", true, "expose Prometheus metrics on /metrics")
	cmd.Flags().String("extract-interval", "0s", "re-extract the given paths this often (0 = only at startup)")
	cmd.Flags().Bool("log-health-checks", false, "log requests to health check endpoints")

	bindFlag(a.v, cmd.Flags().Lookup("port"), startup.KeyPort)
	bindFlag(a.v, cmd.Flags().Lookup("metrics"), startup.KeyMetricsEnabled)
	bindFlag(a.v, cmd.Flags().Lookup("extract-interval"), startup.KeyExtractInterval)
	bindFlag(a.v, cmd.Flags().Lookup("log-health-checks"), startup.KeyLogHealthChecks)

	return cmd
}

func (a *app) runServe(roots []string) error {
	startTime := time.Now()
	startup.LogBanner()
	metrics.InitializeMetrics()
	a.configureVolumes(roots)

	p, err := a.newPipeline(context.Background())
	if err != nil {
		return err
	}
	defer p.Close()

	var idx *indexer.Indexer
	if len(roots) > 0 {
		idx = p.indexer
		idx.Start(roots, indexer.Options{Workers: a.cfg.Workers}, a.cfg.ExtractInterval)
	}

	collector := metrics.NewCollector(p.store, collectorInterval)
	collector.Start()

	h := handlers.New(p.store, p.db, idx)
	router := setupRouter(h, a.cfg)
	startup.LogHTTPRoutes(router, a.cfg.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = a.cfg.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		handleShutdown(srv, idx, collector)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            a.cfg.Port,
		MetricsEnabled:  a.cfg.MetricsEnabled,
		Roots:           roots,
		ExtractInterval: a.cfg.ExtractInterval,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shutdownDone

	// A background run may have changed the statistics since its last save.
	return persist(p.store)
}

func setupRouter(h *handlers.Handlers, cfg *startup.Config) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	h.RegisterRoutes(r)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	}

	return r
}

func handleShutdown(srv *http.Server, idx *indexer.Indexer, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if idx != nil {
		startup.ShutdownStep("Stopping extraction", func() error {
			idx.Stop()
			return waitForIdle(ctx, idx)
		})
	}

	startup.ShutdownStep("Stopping metrics collector", func() error {
		collector.Stop()
		return nil
	})

	startup.ShutdownStep("Shutting down HTTP server", func() error {
		return srv.Shutdown(ctx)
	})

	startup.LogShutdownComplete()
}

// waitForIdle waits for an in-flight run to finish persisting, or for ctx.
func waitForIdle(ctx context.Context, idx *indexer.Indexer) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for idx.IsRunning() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("extraction did not stop in time: %w", ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
