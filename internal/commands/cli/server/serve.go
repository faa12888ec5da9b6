// Package server provides server-related CLI commands.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/andrei-cloud/go_ayoto/internal/app"
	"github.com/andrei-cloud/go_ayoto/internal/config"
	"github.com/andrei-cloud/go_ayoto/internal/metrics"
	"github.com/andrei-cloud/go_ayoto/internal/server"
	"github.com/andrei-cloud/go_ayoto/internal/watch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the plugin server",
		Long: `Load every plugin in the plugin directory and serve their operations over TCP.
Send SIGHUP to reload the directory.`,
		RunE: runServe,
	}

	// Add serve command specific flags that can override config.
	cmd.Flags().String("host", "localhost", "Server host")
	cmd.Flags().Int("port", 1500, "Server port")
	cmd.Flags().Bool("watch", false, "Hot-load plugins dropped into the plugin directory")
	cmd.Flags().String("metrics-address", "", "Serve Prometheus metrics on this address, e.g. :9090")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Get configuration.
	cfg := config.Get()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Make sure plugin directory exists.
	if err := os.MkdirAll(cfg.Plugin.Path, 0o755); err != nil {
		return fmt.Errorf("failed to create plugin directory: %w", err)
	}

	// One registry for the whole process; reloads reuse the instruments.
	m := metrics.New(prometheus.NewRegistry())

	current, err := openApp(ctx, cfg, m)
	if err != nil {
		return err
	}

	serverAddr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv, err := server.NewServer(serverAddr, current.Dispatcher)
	if err != nil {
		_ = current.Close(ctx)

		return fmt.Errorf("failed to initialize server: %w", err)
	}

	if cfg.Metrics.Address != "" {
		stopMetrics := serveMetrics(cfg.Metrics.Address, m)
		defer stopMetrics()
	}

	var mu sync.Mutex // guards current and stopWatch.
	stopWatch := startWatch(ctx, cfg, current)

	// Reload plugins on SIGHUP.
	reloadChan := make(chan os.Signal, 1)
	signal.Notify(reloadChan, syscall.SIGHUP)
	go func() {
		for range reloadChan {
			log.Info().Msg("reloading plugins...")

			next, err := openApp(ctx, cfg, m)
			if err != nil {
				log.Error().Err(err).Msg("failed to reload plugins")

				continue
			}

			mu.Lock()
			stopWatch()
			prev := current
			current = next
			srv.SetDispatcher(ctx, next.Dispatcher)
			if err := prev.Close(ctx); err != nil {
				log.Error().Err(err).Msg("failed to release previous plugins")
			}
			stopWatch = startWatch(ctx, cfg, next)
			mu.Unlock()

			log.Info().Int("plugins", len(next.Summaries())).Msg("plugins reloaded")
		}
	}()

	defer signal.Stop(reloadChan)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stopChan:
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server...")

	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	mu.Lock()
	defer mu.Unlock()
	stopWatch()

	return current.Close(context.Background())
}

func openApp(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*app.App, error) {
	a, results, err := app.Open(ctx, app.Options{Config: cfg, Metrics: m})
	if err != nil {
		return nil, fmt.Errorf("failed to load plugins: %w", err)
	}

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}

	log.Debug().Msg("Loaded plugins metadata:")
	for _, s := range a.Summaries() {
		log.Debug().
			Str("plugin_id", s.ID).
			Str("backend", s.Backend).
			Str("version", s.Version).
			Bool("enabled", s.Enabled).
			Msg("plugin details")
	}
	log.Info().
		Str("path", a.PluginDir()).
		Int("loaded", len(results)-failed).
		Int("failed", failed).
		Msg("plugin directory loaded")

	return a, nil
}

// startWatch runs a watcher over a's backends and returns a function that
// stops it and waits for it to exit.
func startWatch(ctx context.Context, cfg *config.Config, a *app.App) func() {
	if !cfg.Plugin.Watch {
		return func() {}
	}

	wctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w := watch.New(a.PluginDir(), a.Loaders(), watch.WithLoadHook(a.ObserveLoad))

	go func() {
		defer close(done)
		if err := w.Run(wctx); err != nil {
			log.Error().Err(err).Msg("plugin watcher stopped")
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func serveMetrics(addr string, m *metrics.Metrics) func() {
	mux := http.NewServeMux()
	m.RegisterEndpoint(mux)

	hs := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("address", addr).Msg("metrics endpoint failed")
		}
	}()
	log.Info().Str("address", addr).Msg("metrics endpoint started")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(ctx)
	}
}
