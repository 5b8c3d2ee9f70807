package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/audit"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/cli"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(cfg, "idphoto")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRoot(cfg, logger, audit.NewSlogLogger(logger))
	return cli.NewRootCmd(root).ExecuteContext(ctx)
}
