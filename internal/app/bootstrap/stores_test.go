package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medpulse/medpulse-connect/internal/appointments"
	appconfig "github.com/medpulse/medpulse-connect/internal/config"
	"github.com/medpulse/medpulse-connect/internal/notify"
	"github.com/medpulse/medpulse-connect/internal/patients"
	"github.com/medpulse/medpulse-connect/internal/sessions"
	"github.com/medpulse/medpulse-connect/internal/visibility"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

func TestBuildStoresDefaultsToMemory(t *testing.T) {
	stores, err := BuildStores(&appconfig.Config{}, nil, logging.Discard())
	require.NoError(t, err)

	assert.IsType(t, &appointments.MemoryRepository{}, stores.Appointments)
	assert.IsType(t, &patients.InMemoryRepository{}, stores.Patients)
	assert.IsType(t, &notify.MemoryStore{}, stores.Notifications)
	assert.IsType(t, &sessions.MemoryRepository{}, stores.Sessions)
	assert.IsType(t, &visibility.MemoryStore{}, stores.Settings)
	assert.Nil(t, stores.Outbox)
}

func TestBuildStoresRejectsUnconnectedBackends(t *testing.T) {
	cases := []*appconfig.Config{
		{AppointmentStore: "postgres"},
		{NotificationStore: "postgres"},
		{NotificationStore: "dynamodb"},
		{AppointmentStore: "mongo"},
		{NotificationStore: "s3"},
	}
	for _, cfg := range cases {
		_, err := BuildStores(cfg, &Backends{}, logging.Discard())
		assert.Error(t, err, "%+v", cfg)
	}
}

func TestBuildStoresUsesRedisForSettings(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	stores, err := BuildStores(&appconfig.Config{}, &Backends{Redis: client}, logging.Discard())
	require.NoError(t, err)
	require.IsType(t, &visibility.RedisStore{}, stores.Settings)

	settings, err := stores.Settings.Get(context.Background(), "clinic-1")
	require.NoError(t, err)
	assert.True(t, settings.AIConsultationEnabled)
}

func TestBackendsPingWithNothingConnected(t *testing.T) {
	b := &Backends{}
	assert.NoError(t, b.Ping(context.Background()))
	b.Close()
}
