package bootstrap

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/api/router"
	"github.com/medpulse/medpulse-connect/internal/appointments"
	"github.com/medpulse/medpulse-connect/internal/compliance"
	appconfig "github.com/medpulse/medpulse-connect/internal/config"
	"github.com/medpulse/medpulse-connect/internal/events"
	httpmiddleware "github.com/medpulse/medpulse-connect/internal/http/middleware"
	"github.com/medpulse/medpulse-connect/internal/notify"
	"github.com/medpulse/medpulse-connect/internal/observability/metrics"
	"github.com/medpulse/medpulse-connect/internal/patients"
	"github.com/medpulse/medpulse-connect/internal/sessions"
	"github.com/medpulse/medpulse-connect/internal/textgen"
	"github.com/medpulse/medpulse-connect/internal/visibility"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// App is the fully wired service graph shared by the API server and the
// reminder workers.
type App struct {
	Config   *appconfig.Config
	Logger   *logging.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.WorkflowMetrics
	Backends *Backends
	Stores   *Stores

	Appointments *appointments.Service
	Patients     *patients.Service
	Sessions     *sessions.Service
	Visibility   *visibility.Service
	Notifier     *notify.LifecycleNotifier
	Dispatcher   *notify.Dispatcher
	// Deliverer is nil unless both the outbox and a queue are configured.
	Deliverer *events.Deliverer
}

// New opens the configured backends and assembles the app.
func New(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	backends, err := OpenBackends(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	llm, err := BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		backends.Close()
		return nil, err
	}
	app, err := Assemble(cfg, backends, llm, awsCfg, logger)
	if err != nil {
		backends.Close()
		return nil, err
	}
	return app, nil
}

// Assemble wires services over already-open backends.
func Assemble(cfg *appconfig.Config, backends *Backends, llm textgen.LLMClient, awsCfg *aws.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if backends == nil {
		backends = &Backends{}
	}
	stores, err := BuildStores(cfg, backends, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWorkflowMetrics(registry)

	gate := access.NewGate()
	messages := BuildMessages(cfg, llm, m, logger)
	cascade := notify.NewCascade(messages).WithLocation(ClinicLocation(cfg.ClinicTimezone, logger))

	directory := patients.NewCachedDirectory(patients.NewDirectory(stores.Patients), cfg.PatientCacheTTL)

	whatsapp, sms := ChannelSenders(cfg, logger)
	dispatcher := notify.NewDispatcher(stores.Notifications, stores.Appointments, directory, logger).
		WithSender(notify.ChannelWhatsApp, whatsapp).
		WithSender(notify.ChannelSMS, sms).
		WithBatchSize(cfg.ReminderBatchSize).
		WithRetry(cfg.ReminderMaxAttempts, cfg.ReminderRetryBackoff).
		WithInterval(cfg.ReminderPollInterval).
		WithMetrics(m)

	notifier := notify.NewLifecycleNotifier(cascade, stores.Notifications, directory, logger).WithMetrics(m)
	if cfg.ReminderDeliveryEnabled {
		notifier = notifier.WithImmediateSender(dispatcher)
	}
	if len(cfg.OperatorEmailRecipients) > 0 {
		email := BuildEmailSender(cfg, awsCfg, logger)
		notifier = notifier.WithOperatorAlerts(notify.NewOperatorAlerts(email, cfg.OperatorEmailRecipients, cascade, logger))
	}

	apptSvc := appointments.NewService(stores.Appointments, gate, logger).
		WithNotifier(notifier).
		WithSessionLookup(sessions.NewLookup(stores.Sessions)).
		WithMetrics(m)
	if stores.Outbox != nil {
		apptSvc = apptSvc.WithEventRecorder(stores.Outbox)
	}
	if !cfg.AsyncCascade {
		apptSvc = apptSvc.WithSynchronousCascade()
	}

	sessionSvc := sessions.NewService(stores.Sessions, apptSvc, gate, logger).WithMessages(messages)

	app := &App{
		Config:       cfg,
		Logger:       logger,
		Registry:     registry,
		Metrics:      m,
		Backends:     backends,
		Stores:       stores,
		Appointments: apptSvc,
		Patients:     patients.NewService(stores.Patients, notifier, logger).WithCache(directory),
		Sessions:     sessionSvc,
		Visibility: visibility.NewService(stores.Settings, sessionSvc, gate, logger).
			WithMessages(messages).
			WithDisclaimer(compliance.NewDisclaimer(compliance.ParseDisclaimerLevel(cfg.ConsultationDisclaimer))),
		Notifier:   notifier,
		Dispatcher: dispatcher,
	}
	if publisher := BuildEventPublisher(cfg, awsCfg); stores.Outbox != nil && publisher != nil {
		app.Deliverer = events.NewDeliverer(stores.Outbox, publisher, logger).WithInterval(cfg.OutboxPollInterval)
	}
	return app, nil
}

// Router builds the HTTP surface over the app's services.
func (a *App) Router() http.Handler {
	cfg := a.Config
	gate := access.NewGate()
	return router.New(&router.Config{
		Logger:        a.Logger,
		Appointments:  appointments.NewHandler(a.Appointments, a.Logger),
		Notifications: notify.NewHandler(a.Stores.Notifications, a.Appointments, gate, a.Logger),
		Sessions:      sessions.NewHandler(a.Sessions, a.Logger),
		Visibility:    visibility.NewHandler(a.Visibility, a.Logger),
		Patients:      patients.NewHandler(a.Patients, a.Logger),
		AuthSecret:    cfg.AuthJWTSecret,
		Cognito: httpmiddleware.CognitoConfig{
			Region:     cfg.CognitoRegion,
			UserPoolID: cfg.CognitoUserPoolID,
			ClientID:   cfg.CognitoClientID,
		},
		DefaultOrgID:       cfg.DefaultOrgID,
		PublicRateLimit:    cfg.PublicRateLimit,
		PublicRateBurst:    cfg.PublicRateBurst,
		MetricsHandler:     promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Ready:              a.Backends.Ping,
	})
}

// RunWorkers starts the reminder dispatcher (when delivery is enabled) and the
// outbox deliverer (when configured). Both stop when ctx is cancelled.
func (a *App) RunWorkers(ctx context.Context) {
	if a.Config.ReminderDeliveryEnabled {
		go a.Dispatcher.Start(ctx)
	} else {
		a.Logger.Info("reminder delivery disabled; reminders are recorded only")
	}
	if a.Deliverer != nil {
		go a.Deliverer.Start(ctx)
	}
}

func (a *App) Close() {
	a.Backends.Close()
}
