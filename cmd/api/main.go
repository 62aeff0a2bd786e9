package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfman30/clinic-booking/cmd/mainconfig"
	appbootstrap "github.com/wolfman30/clinic-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	notificationworker "github.com/wolfman30/clinic-booking/internal/worker/notification"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func main() {
	dotenv := mainconfig.LoadDotEnv()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"dotenv", dotenv,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	app, err := appbootstrap.BuildAPI(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	bgCtx, cancelBackground := context.WithCancel(ctx)
	defer cancelBackground()
	app.Start(bgCtx)

	if err := startInlineNotifications(bgCtx, cfg, app, logger); err != nil {
		return err
	}

	srv := newServer(cfg, app.Handler)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startInlineNotifications consumes the in-process queue when no separate
// notification worker can reach it.
func startInlineNotifications(ctx context.Context, cfg *appconfig.Config, app *appbootstrap.API, logger *logging.Logger) error {
	if !cfg.UseMemoryQueue || app.Queue == nil {
		return nil
	}
	notifier, err := appbootstrap.BuildNotifier(cfg, app.AWS, app.Doctors, logger)
	if err != nil {
		return err
	}
	consumer := notificationworker.NewConsumer(app.Queue, notifier, app.Processed, logger).WithWaitSeconds(1)
	go consumer.Run(ctx)
	return nil
}

func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
