package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-pos/config"
	"shop-pos/internal/pos/controller"
	"shop-pos/internal/pos/inventory"
	"shop-pos/internal/pos/lookup"
	"shop-pos/internal/pos/remote"
	"shop-pos/internal/pos/terminal"
	"shop-pos/internal/util"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	level := cfg.Server.LogLevel
	if level == "" {
		level = "warn"
	}
	if err := util.InitLogger(cfg.Server.Env, level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	tp, err := util.InitTracer(cfg.Observ.ServiceName+"-terminal", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	client := remote.NewClient(cfg.Client.APIBaseURL, cfg.Client.HTTPTimeout)
	ctrl := controller.New(client, cfg.Client.ShopID)
	term := terminal.New(ctrl, inventory.NewCache(client), lookup.New(client), client, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Terminal started", zap.String("api", cfg.Client.APIBaseURL), zap.String("shop_id", cfg.Client.ShopID))
	if cfg.Client.ShopID != "" {
		if _, err := term.Exec(ctx, "shop "+cfg.Client.ShopID); err != nil {
			logger.Warn("Failed to load inventory of configured shop", zap.Error(err))
		}
	}

	if err := term.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		logger.Error("Terminal stopped", zap.Error(err))
	}
}
