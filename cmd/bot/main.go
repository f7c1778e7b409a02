package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"star-art-studio/internal/app"
	"star-art-studio/internal/config"
	"star-art-studio/internal/handlers"
	"star-art-studio/internal/logging"
	"star-art-studio/internal/session"
	"star-art-studio/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadBot()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("init failed", "err", err)
		os.Exit(1)
	}

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: svc.HTTPClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	sessions := session.NewStore(session.Options{NewStudio: svc.NewStudio})

	handler := handlers.New(handlers.Options{
		Telegram: tg,
		Sessions: sessions,
		Logger:   logger,
	})

	go sessions.Janitor(ctx, time.Minute, cfg.SessionIdle, logger)

	logger.Info("bot started", "username", tg.Username())

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	// SetLimit makes Go block once MaxConcurrent updates are in flight.
	var workers errgroup.Group
	workers.SetLimit(cfg.MaxConcurrent)
	defer workers.Wait()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			workers.Go(func() error {
				reqCtx := ctx
				if cfg.RequestTimeout > 0 {
					var cancel context.CancelFunc
					reqCtx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
					defer cancel()
				}

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
				return nil
			})
		}
	}
}
