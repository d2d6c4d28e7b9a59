package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/nikolayk812/cartflow/internal/app"
	"github.com/nikolayk812/cartflow/internal/config"
	"github.com/nikolayk812/cartflow/internal/logger"
	"github.com/nikolayk812/cartflow/internal/shutdown"
)

func main() {
	cfg, err := config.Load(config.StageCart)
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(logger.Options{Service: cfg.ServiceName, Env: cfg.Env, Level: cfg.LogLevel, AddSource: true})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := app.Main(ctx, cfg, log); err != nil {
		log.Error("cart-worker stopped", slog.Any("err", err))
		cancel()
		os.Exit(1)
	}

	log.Info("cart-worker shutdown complete")
}
