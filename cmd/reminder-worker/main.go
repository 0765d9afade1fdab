package main

import (
	"context"
	"errors"
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

// checkShared rejects configurations whose notification records would not be
// visible to the API process.
func checkShared(cfg *appconfig.Config) error {
	if cfg.NotificationStore == "" || cfg.NotificationStore == "memory" {
		return errors.New("reminder worker requires NOTIFICATION_STORE=postgres or dynamodb")
	}
	if cfg.AppointmentStore == "" || cfg.AppointmentStore == "memory" {
		return errors.New("reminder worker requires APPOINTMENT_STORE=postgres")
	}
	return nil
}

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := checkShared(cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if !cfg.ReminderDeliveryEnabled {
		logger.Warn("REMINDER_DELIVERY_ENABLED is false; only outbox events will be delivered")
	}

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

	app.RunWorkers(ctx)
	logger.Info("reminder worker started",
		"interval", cfg.ReminderPollInterval.String(),
		"batch_size", cfg.ReminderBatchSize,
		"outbox", app.Deliverer != nil,
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("reminder worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}
