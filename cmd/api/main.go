package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/medpulse/medpulse-connect/cmd/mainconfig"
	"github.com/medpulse/medpulse-connect/internal/app/bootstrap"
	appconfig "github.com/medpulse/medpulse-connect/internal/config"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting medpulse-connect API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"appointment_store", cfg.AppointmentStore,
		"notification_store", cfg.NotificationStore,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.New(ctx, cfg, &awsCfg, logger)
	if err != nil {
		logger.Error("failed to assemble app", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.RunWorkersInAPI {
		app.RunWorkers(ctx)
	}

	srv := newServer(cfg.Port, app.Router())

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func newServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
