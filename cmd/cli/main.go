package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"star-art-studio/internal/app"
	"star-art-studio/internal/config"
	"star-art-studio/internal/logging"
	"star-art-studio/internal/studio"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newStudio).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newStudio wires the real generators. Logs go to stderr so stdout stays
// clean for the blueprint.
func newStudio(ctx context.Context) (*studio.Orchestrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	svc, err := app.New(ctx, cfg, logging.NewWithWriter(cfg.LogLevel, os.Stderr))
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return svc.NewStudio(), nil
}
