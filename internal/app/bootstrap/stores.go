package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/medpulse/medpulse-connect/internal/appointments"
	appconfig "github.com/medpulse/medpulse-connect/internal/config"
	"github.com/medpulse/medpulse-connect/internal/events"
	"github.com/medpulse/medpulse-connect/internal/notify"
	"github.com/medpulse/medpulse-connect/internal/patients"
	"github.com/medpulse/medpulse-connect/internal/sessions"
	"github.com/medpulse/medpulse-connect/internal/visibility"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// Backends holds the opened connections. Any of them may be nil.
type Backends struct {
	Pool   *pgxpool.Pool
	SQL    *sql.DB
	Redis  *redis.Client
	Dynamo *dynamodb.Client
}

// OpenBackends connects everything the config asks for.
func OpenBackends(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (*Backends, error) {
	b := &Backends{}
	var err error
	if b.Pool, err = ConnectPostgres(ctx, cfg.DatabaseURL); err != nil {
		return nil, err
	}
	if b.SQL, err = OpenSQL(ctx, cfg.SessionsDSN); err != nil {
		b.Close()
		return nil, err
	}
	b.Redis = BuildRedisClient(ctx, cfg, logger, true)
	if cfg.NotificationStore == "dynamodb" && awsCfg != nil {
		b.Dynamo = dynamodb.NewFromConfig(*awsCfg)
	}
	return b, nil
}

// Ping checks the stateful backends for /ready.
func (b *Backends) Ping(ctx context.Context) error {
	var errs []error
	if b.Pool != nil {
		if err := b.Pool.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if b.SQL != nil {
		if err := b.SQL.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("sessions db: %w", err))
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (b *Backends) Close() {
	if b == nil {
		return
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
	if b.SQL != nil {
		_ = b.SQL.Close()
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
}

// Stores are the persistence ports the services are built on.
type Stores struct {
	Appointments  appointments.Repository
	Notifications notify.Store
	Patients      patients.Repository
	Sessions      sessions.Repository
	Settings      visibility.Store
	Outbox        *events.OutboxStore
}

// BuildStores picks an implementation per port. Memory is the default for
// everything; a requested backend that is not connected is an error.
func BuildStores(cfg *appconfig.Config, b *Backends, logger *logging.Logger) (*Stores, error) {
	if b == nil {
		b = &Backends{}
	}
	s := &Stores{}

	switch cfg.AppointmentStore {
	case "", "memory":
		s.Appointments = appointments.NewMemoryRepository()
		s.Patients = patients.NewInMemoryRepository()
	case "postgres":
		if b.Pool == nil {
			return nil, fmt.Errorf("bootstrap: APPOINTMENT_STORE=postgres requires DATABASE_URL")
		}
		s.Appointments = appointments.NewPostgresRepository(b.Pool)
		s.Patients = patients.NewPostgresRepository(b.Pool)
	default:
		return nil, fmt.Errorf("bootstrap: unknown appointment store %q", cfg.AppointmentStore)
	}

	switch cfg.NotificationStore {
	case "", "memory":
		s.Notifications = notify.NewMemoryStore()
	case "postgres":
		if b.Pool == nil {
			return nil, fmt.Errorf("bootstrap: NOTIFICATION_STORE=postgres requires DATABASE_URL")
		}
		s.Notifications = notify.NewPostgresStore(b.Pool)
	case "dynamodb":
		if b.Dynamo == nil {
			return nil, fmt.Errorf("bootstrap: NOTIFICATION_STORE=dynamodb requires AWS config")
		}
		s.Notifications = notify.NewDynamoStore(b.Dynamo, cfg.NotificationTable, logger)
	default:
		return nil, fmt.Errorf("bootstrap: unknown notification store %q", cfg.NotificationStore)
	}

	if b.SQL != nil {
		s.Sessions = sessions.NewSQLRepository(b.SQL)
	} else {
		s.Sessions = sessions.NewMemoryRepository()
	}

	if b.Redis != nil {
		s.Settings = visibility.NewRedisStore(b.Redis)
	} else {
		s.Settings = visibility.NewMemoryStore()
	}

	if b.Pool != nil {
		s.Outbox = events.NewOutboxStore(b.Pool).WithMaxAttempts(cfg.OutboxMaxAttempts)
	}
	return s, nil
}
