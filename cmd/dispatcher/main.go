package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/pubsub"
	"github.com/webscanhq/job-triggers/internal/config"
	"github.com/webscanhq/job-triggers/internal/dispatch"
	"github.com/webscanhq/job-triggers/internal/runclient"
	"github.com/webscanhq/job-triggers/internal/server"
	"github.com/webscanhq/job-triggers/internal/subscriber"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Configure log level
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx := context.Background()

	runner, err := runclient.New(ctx, cfg.RunEndpoint)
	if err != nil {
		slog.Error("failed to create run client", "error", err)
		os.Exit(1)
	}
	defer runner.Close()

	// Build the trigger table from config
	d := dispatch.New(runner, cfg.ProjectID, cfg.Region, logger)
	var triggers []dispatch.Trigger
	for _, td := range cfg.Triggers.Triggers {
		t := dispatch.Trigger{
			Name:         td.Name,
			Job:          td.Job,
			EnvKey:       td.EnvKey,
			Subscription: td.Subscription,
		}
		triggers = append(triggers, t)
		slog.Info("registered trigger", "name", t.Name, "job", t.Job, "env_key", t.EnvKey)
	}

	switch cfg.Mode {
	case "pull":
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			slog.Error("failed to create pubsub client", "error", err)
			os.Exit(1)
		}
		defer psClient.Close()

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := subscriber.New(psClient, d, logger).Run(ctx, triggers); err != nil {
			slog.Error("subscriber failed", "error", err)
			os.Exit(1)
		}
	case "push":
		srv := server.New(d, triggers, logger)

		// Handle graceful shutdown
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			slog.Info("shutting down...")
			srv.Stop()
		}()

		if err := srv.Start(cfg.Port); err != nil {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("unknown mode", "mode", cfg.Mode)
		os.Exit(1)
	}
}
