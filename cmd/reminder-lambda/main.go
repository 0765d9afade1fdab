package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/medpulse/medpulse-connect/cmd/mainconfig"
	"github.com/medpulse/medpulse-connect/internal/app/bootstrap"
	appconfig "github.com/medpulse/medpulse-connect/internal/config"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

type dueProcessor interface {
	ProcessDue(ctx context.Context) (int, error)
}

type outboxDrainer interface {
	Drain(ctx context.Context) int
}

type result struct {
	Reminders int `json:"reminders"`
	Events    int `json:"events"`
}

type handler struct {
	reminders dueProcessor
	outbox    outboxDrainer
	logger    *logging.Logger
}

// handle runs one sweep per scheduled invocation.
func (h *handler) handle(ctx context.Context, evt events.CloudWatchEvent) (result, error) {
	var out result
	if h.reminders != nil {
		n, err := h.reminders.ProcessDue(ctx)
		if err != nil {
			h.logger.Error("reminder sweep failed", "event_id", evt.ID, "error", err)
			return out, err
		}
		out.Reminders = n
	}
	if h.outbox != nil {
		out.Events = h.outbox.Drain(ctx)
	}
	h.logger.Info("scheduled sweep complete",
		"event_id", evt.ID,
		"reminders", out.Reminders,
		"events", out.Events,
	)
	return out, nil
}

func main() {
	cfg := appconfig.Load()
	logger := logging.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		panic(err)
	}
	app, err := bootstrap.New(ctx, cfg, &awsCfg, logger)
	if err != nil {
		panic(err)
	}

	h := &handler{logger: logger}
	if cfg.ReminderDeliveryEnabled {
		h.reminders = app.Dispatcher
	}
	if app.Deliverer != nil {
		h.outbox = app.Deliverer
	}
	lambda.Start(h.handle)
}
