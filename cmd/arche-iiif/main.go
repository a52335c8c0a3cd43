// Package main provides the arche-iiif binary entry point: an HTTP
// service (and one-shot CLI) that disseminates repository resources as
// IIIF manifests, collections, image lists and image-service redirects.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/acdh-oeaw/arche-iiif/cache"
	"github.com/acdh-oeaw/arche-iiif/config"
	"github.com/acdh-oeaw/arche-iiif/iiif"
	"github.com/acdh-oeaw/arche-iiif/service"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "arche-iiif"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "IIIF dissemination service for repository resources",
		Long: `arche-iiif converts the RDF description of a repository resource and
its ordered siblings into IIIF artifacts: an image-service redirect, an
ordered image list, a Presentation API manifest or a collection.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(&configPath, &logLevel))
	cmd.AddCommand(resolveCmd(&configPath, &logLevel))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func setupLogging(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func serveCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath, *logLevel)
		},
	}
}

func runServe(configPath, logLevel string) error {
	logger := setupLogging(logLevel)

	loader := config.NewLoader(logger)
	cfg, err := loader.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()

	cacheStore, nc, err := connectCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Close()
	}

	server := service.NewServer(cfg, cacheStore, logger)

	if configPath != "" {
		stop, err := loader.Watch(configPath, func(next *config.Config) {
			server.UpdateConfig(next)
		})
		if err != nil {
			logger.Warn("Config watching disabled", "error", err)
		} else {
			defer stop()
		}
	}

	mux := http.NewServeMux()
	server.RegisterHTTPHandlers(mux)

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Service ready", "version", Version, "listen", cfg.Listen)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// connectCache connects the NATS-backed response cache. Caching is
// optional: no NATS URL means every request is computed from scratch.
func connectCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*cache.Store, *nats.Conn, error) {
	if cfg.NATS.URL == "" {
		logger.Info("Response cache disabled (no NATS URL configured)")
		return nil, nil, nil
	}

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name(appName),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}

	store, err := cache.NewStore(ctx, js, cfg.NATS.CacheTTL)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create cache store: %w", err)
	}

	logger.Info("Response cache ready", "nats_url", cfg.NATS.URL, "ttl", cfg.NATS.CacheTTL)
	return store, nc, nil
}

func resolveCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id> [mode]",
		Short: "Resolve a single resource and print the payload",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := ""
			if len(args) > 1 {
				mode = args[1]
			}
			return runResolve(*configPath, *logLevel, args[0], mode)
		},
	}
}

func runResolve(configPath, logLevel, id, modeStr string) error {
	logger := setupLogging(logLevel)

	cfg, err := config.NewLoader(logger).Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if modeStr == "" {
		modeStr = cfg.IIIF.DefaultMode
	}
	mode, err := iiif.ParseMode(modeStr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Repo.Timeout+time.Minute)
	defer cancel()

	out, err := service.Compute(ctx, cfg, id, mode, logger)
	if err != nil {
		return err
	}

	if location, ok := out.Headers["Location"]; ok {
		fmt.Println(location)
		return nil
	}
	fmt.Println(string(out.Body))
	return nil
}
