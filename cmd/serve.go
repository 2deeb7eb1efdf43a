package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/artifacts"
	"github.com/grove-sh/grove/internal/git"
	"github.com/grove-sh/grove/internal/infrastructure/sqlite"
	"github.com/grove-sh/grove/internal/log"
	"github.com/grove-sh/grove/internal/paths"
	"github.com/grove-sh/grove/internal/pubsub"
	"github.com/grove-sh/grove/internal/registry/application"
	"github.com/grove-sh/grove/internal/server"
	"github.com/grove-sh/grove/internal/tracing"
	"github.com/grove-sh/grove/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry server",
	Long: `Run the registry HTTP server. The server exposes the web pages, the
package index under /_pypi, and the upload API.

Example:
  grove serve                       # Start on the configured address
  grove serve --addr :8080          # Start on port 8080
  grove serve --data-dir /srv/grove # Use an explicit data directory`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides config)")
}

func runServe(_ *cobra.Command, _ []string) error {
	// Initialize logging if debug mode enabled (via flag, config, or env var)
	debug := cfg.Debug || os.Getenv("GROVE_DEBUG") != ""
	if debug {
		logPath := os.Getenv("GROVE_LOG")
		if logPath == "" {
			logPath = "debug.log"
		}

		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		defer cleanup()

		log.Info(log.CatConfig, "grove starting", "debug", true, "logPath", logPath)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	layout := paths.Resolve(cfg.DataDir)
	log.Info(log.CatConfig, "resolved data dir", "path", layout.Root)

	db, err := sqlite.NewDB(layout.DatabasePath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	broker := pubsub.NewBroker[application.EventPayload]()
	defer broker.Close()

	service := application.NewService(application.Config{
		Layout:   layout,
		Projects: db.Projects(),
		Packages: db.Packages(),
		Git:      git.NewRealExecutor(),
		Store:    artifacts.NewStore(layout.PackagesDir()),
		Broker:   broker,
		CacheTTL: cfg.CacheTTL,
	})

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Addr
	}

	handler := server.NewHandler(server.HandlerConfig{
		Service:       service,
		Broker:        broker,
		UpstreamIndex: cfg.UpstreamIndex,
		Version:       version,
	})

	serverCfg := server.ServerConfig{Addr: addr, Handler: handler}
	if provider.Enabled() {
		serverCfg.Tracer = provider.Tracer()
	}
	srv, err := server.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Watch the artifact directory so out-of-band changes drop the
	// cached index listings
	if cfg.Watcher.Enabled {
		stopWatcher, watchErr := startStoreWatcher(ctx, layout, service)
		if watchErr != nil {
			log.ErrorErr(log.CatWatcher, "store watcher disabled", watchErr)
		} else {
			defer stopWatcher()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	fmt.Printf("Grove listening on port %d\n", srv.Port())
	fmt.Println("Press Ctrl+C to stop")

	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.ErrorErr(log.CatHTTP, "error stopping server", err)
	}

	fmt.Println("Server stopped")
	return nil
}

// startStoreWatcher watches the artifact directory and flushes the index
// caches when its contents change outside an upload request.
func startStoreWatcher(ctx context.Context, layout paths.Layout, service *application.Service) (func(), error) {
	if err := os.MkdirAll(layout.PackagesDir(), 0750); err != nil {
		return nil, fmt.Errorf("creating packages directory: %w", err)
	}

	w, err := watcher.New(watcher.Config{
		Dir:         layout.PackagesDir(),
		DebounceDur: cfg.Watcher.Debounce,
	})
	if err != nil {
		return nil, err
	}

	onChange, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return nil, err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-onChange:
				if !ok {
					return
				}
				service.HandleStoreChange(ctx)
			}
		}
	}()

	return func() { _ = w.Stop() }, nil
}
