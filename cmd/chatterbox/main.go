package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"chatterbox/internal/app"
	"chatterbox/internal/config"
	"chatterbox/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loads configuration, serves until SIGINT/SIGTERM and shuts down
// gracefully within 30 seconds.
func run(args []string) error {
	flags := flag.NewFlagSet("chatterbox", flag.ContinueOnError)
	configPath := flags.String("config", os.Getenv("CHATTERBOX_CONFIG_FILE"), "path to a JSON config file")
	envFile := flags.String("env-file", ".env", "path to a .env file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfigWithPrecedence(*configPath, *envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if err := application.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Stop(shutdownCtx)
		return fmt.Errorf("application error: %w", err)
	}

	<-ctx.Done()
	logger.Info("received shutdown signal, shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown finished with errors", zap.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
