package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medpulse/medpulse-connect/pkg/logging"
)

func TestTelnyxSenderPostsMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewTelnyxSender(TelnyxConfig{APIKey: "key-1", From: "+15550009999", MessagingProfileID: "prof-1", Endpoint: srv.URL}, logging.Discard())
	err := sender.Send(context.Background(), OutboundMessage{OrgID: "clinic-1", To: "+15550001111", Body: "See you soon", Channel: ChannelSMS})
	require.NoError(t, err)

	assert.Equal(t, "+15550009999", got["from"])
	assert.Equal(t, "+15550001111", got["to"])
	assert.Equal(t, "See you soon", got["text"])
	assert.Equal(t, "prof-1", got["messaging_profile_id"])
}

func TestTelnyxSenderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewTelnyxSender(TelnyxConfig{APIKey: "key", From: "+1555", Endpoint: srv.URL}, logging.Discard())
	require.NoError(t, sender.Send(context.Background(), OutboundMessage{To: "+1666", Body: "hi"}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestTelnyxSenderDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"errors":[{"title":"invalid number"}]}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	sender := NewTelnyxSender(TelnyxConfig{APIKey: "key", From: "+1555", Endpoint: srv.URL}, logging.Discard())
	err := sender.Send(context.Background(), OutboundMessage{To: "+1666", Body: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 422")
	assert.Equal(t, int32(1), calls.Load())
}

func TestTelnyxSenderValidates(t *testing.T) {
	sender := NewTelnyxSender(TelnyxConfig{}, logging.Discard())
	assert.Error(t, sender.Send(context.Background(), OutboundMessage{To: "+1", Body: "x"}))

	sender = NewTelnyxSender(TelnyxConfig{APIKey: "k", From: "+1"}, logging.Discard())
	assert.Error(t, sender.Send(context.Background(), OutboundMessage{Body: "x"}))
	assert.Error(t, sender.Send(context.Background(), OutboundMessage{To: "+2", Body: "  "}))
}
