package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/micro-ha/pod-door-controller/internal/broker"
	"github.com/micro-ha/pod-door-controller/internal/config"
	"github.com/micro-ha/pod-door-controller/internal/events"
	"github.com/micro-ha/pod-door-controller/internal/executor"
	httpapi "github.com/micro-ha/pod-door-controller/internal/http"
	"github.com/micro-ha/pod-door-controller/internal/http/handlers"
	"github.com/micro-ha/pod-door-controller/internal/logging"
	"github.com/micro-ha/pod-door-controller/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := pflag.String("config", "", "path to YAML config (default $DOORCTL_CONFIG)")
	dryRun := pflag.Bool("dry-run", false, "drive simulated GPIO lines instead of hardware")
	logLevel := pflag.String("log-level", "", "override log level (debug|info|warn|error)")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger, logCloser := logging.New(cfg.Level(), cfg.LogFile)
	defer logCloser.Close()
	slog.SetDefault(logger)

	provider, err := openProvider(cfg, *dryRun)
	if err != nil {
		logger.Error("failed to initialize gpio", "err", err)
		return 1
	}
	registry, routes, err := buildDoors(cfg, provider, logger)
	if err != nil {
		logger.Error("failed to configure doors", "err", err)
		if closeErr := provider.Close(); closeErr != nil {
			logger.Error("failed to release gpio lines", "err", closeErr)
		}
		return 1
	}
	defer func() {
		if err := registry.ReleaseAll(); err != nil {
			logger.Error("failed to release doors", "err", err)
		}
		if err := provider.Close(); err != nil {
			logger.Error("failed to release gpio lines", "err", err)
		}
		logger.Info("all door lines released")
	}()

	hub := events.NewHub(logger.With("component", "events"))
	sinks := []executor.Sink{hub}
	var audit handlers.AuditLog
	if cfg.DBPath != "" {
		if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
			logger.Error("failed to create db directory", "err", err)
			return 1
		}
		repo, err := storage.New(ctx, cfg.DBPath, logger)
		if err != nil {
			logger.Error("failed to initialize storage", "err", err)
			return 1
		}
		defer repo.Close()
		sinks = append(sinks, repo)
		audit = repo
	}

	exec := executor.New(routes, logger.With("component", "executor"),
		executor.WithSinks(sinks...),
		executor.WithQueueSize(cfg.QueueSize),
	)
	subscriber, err := broker.New(cfg.Broker, routes.Topics(), exec, logger)
	if err != nil {
		logger.Error("failed to configure broker", "err", err)
		return 1
	}

	api := handlers.New(handlers.Deps{
		Doors:     registry,
		Routes:    routes,
		Submitter: exec,
		Audit:     audit,
		Broker:    subscriber,
		Events:    hub,
		Logger:    logger.With("component", "http"),
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("door controller starting",
		"doors", len(registry.List()),
		"topics", routes.Topics(),
		"dry_run", *dryRun || cfg.GPIOBackend == config.BackendSimulated,
		"http_addr", httpServer.Addr,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		exec.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return subscriber.Run(gctx)
	})
	g.Go(func() error {
		return httpapi.RunServer(gctx, httpServer)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("door controller terminated with error", "err", err)
		return 1
	}
	logger.Info("door controller stopped")
	return 0
}
