package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wolfman30/clinic-booking/cmd/mainconfig"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	notificationworker "github.com/wolfman30/clinic-booking/internal/worker/notification"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func main() {
	mainconfig.LoadDotEnv()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := notificationworker.Run(ctx, cfg, logger); err != nil {
		logger.Error("notification worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("notification worker stopped")
}
