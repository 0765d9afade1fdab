package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/appointments"
	"github.com/medpulse/medpulse-connect/internal/textgen"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

var (
	admin   = access.Actor{Role: access.RoleAdmin, UserID: "admin-1", OrgID: "clinic-1"}
	patient = access.Actor{Role: access.RolePatient, UserID: "pat-1", OrgID: "clinic-1"}
)

type harness struct {
	svc    *appointments.Service
	store  *MemoryStore
	email  *recordingEmail
	sender *recordingSender
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := NewMemoryStore()
	email := &recordingEmail{}
	sender := &recordingSender{}
	dir := staticDirectory{"pat-1": {ID: "pat-1", OrgID: "clinic-1", Name: "Ana", Phone: "+15550001111", WhatsAppOptIn: true}}
	cascade := testCascade(failingMessages())

	repo := appointments.NewMemoryRepository()
	dispatcher := NewDispatcher(store, repo, dir, logging.Discard()).WithSender(ChannelWhatsApp, sender)
	notifier := NewLifecycleNotifier(cascade, store, dir, logging.Discard()).
		WithOperatorAlerts(NewOperatorAlerts(email, []string{"frontdesk@medpulse.test"}, cascade, logging.Discard())).
		WithImmediateSender(dispatcher)
	svc := appointments.NewService(repo, access.NewGate(), logging.Discard()).
		WithNotifier(notifier).
		WithSynchronousCascade()
	return &harness{svc: svc, store: store, email: email, sender: sender}
}

func (h *harness) byAppointment(t *testing.T, id string) []*Notification {
	t.Helper()
	items, err := h.store.ListByAppointment(context.Background(), id)
	require.NoError(t, err)
	return items
}

func typesOf(items []*Notification) []Type {
	out := make([]Type, len(items))
	for i, n := range items {
		out[i] = n.Type
	}
	return out
}

func TestSuggestAlertsOperators(t *testing.T) {
	h := newHarness(t)
	appt, err := h.svc.Suggest(context.Background(), patient, appointments.SuggestInput{
		DateTime: time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), Type: "Facial",
	})
	require.NoError(t, err)

	assert.Empty(t, h.byAppointment(t, appt.ID))
	require.Len(t, h.email.sent, 1)
	assert.Equal(t, "frontdesk@medpulse.test", h.email.sent[0].To)
	assert.Contains(t, h.email.sent[0].Body, "Ana suggested Facial")
}

func TestVerifyCascade(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pending, err := h.svc.Suggest(ctx, patient, appointments.SuggestInput{DateTime: time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), Type: "Facial"})
	require.NoError(t, err)

	_, err = h.svc.Verify(ctx, admin, appointments.VerifyInput{AppointmentID: pending.ID, StaffID: "dr-1"})
	require.NoError(t, err)

	items := h.byAppointment(t, pending.ID)
	assert.Equal(t, []Type{TypeVerificationConfirm, TypeReminder24h, TypeReminder2h}, typesOf(items))
	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, "+15550001111", h.sender.sent[0].To)
	assert.Equal(t, items[0].Content, h.sender.sent[0].Body)
}

func TestVerifyWithNewTimeSendsRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pending, err := h.svc.Suggest(ctx, patient, appointments.SuggestInput{DateTime: time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), Type: "Facial"})
	require.NoError(t, err)

	newTime := time.Date(2025, 3, 3, 16, 0, 0, 0, time.UTC)
	_, err = h.svc.Verify(ctx, admin, appointments.VerifyInput{AppointmentID: pending.ID, StaffID: "dr-1", DateTime: &newTime})
	require.NoError(t, err)

	items := h.byAppointment(t, pending.ID)
	require.Len(t, items, 3)
	assert.Equal(t, TypeVerificationRequest, items[0].Type)
	assert.Contains(t, items[0].Content, "Mar 3, 2025 4:00 PM")
}

func TestRejectSendsSingleNotice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pending, err := h.svc.Suggest(ctx, patient, appointments.SuggestInput{DateTime: time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), Type: "Facial"})
	require.NoError(t, err)

	_, err = h.svc.Reject(ctx, admin, pending.ID, appointments.ConfirmWith(true))
	require.NoError(t, err)

	assert.Equal(t, []Type{TypeRejection}, typesOf(h.byAppointment(t, pending.ID)))
}

func TestCancelPurgesPendingKeepsSent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	booked, err := h.svc.Book(ctx, admin, appointments.BookInput{
		PatientID: "pat-1", DateTime: time.Date(2025, 3, 5, 11, 0, 0, 0, time.UTC), Type: "Chemical Peel", StaffID: "dr-1",
	})
	require.NoError(t, err)
	require.Len(t, h.byAppointment(t, booked.ID), 3)

	_, err = h.svc.Cancel(ctx, admin, booked.ID, appointments.ConfirmWith(true))
	require.NoError(t, err)

	items := h.byAppointment(t, booked.ID)
	assert.Equal(t, []Type{TypeVerificationConfirm, TypeRejection}, typesOf(items))
	for _, n := range items {
		assert.Equal(t, StatusSent, n.Status)
	}
	assert.Contains(t, items[1].Content, "has been cancelled by the clinic")
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), createErr: errors.New("disk full")}
	repo := appointments.NewMemoryRepository()
	notifier := NewLifecycleNotifier(testCascade(failingMessages()), store, nil, logging.Discard())
	svc := appointments.NewService(repo, nil, logging.Discard()).WithNotifier(notifier).WithSynchronousCascade()

	appt, err := svc.Book(context.Background(), admin, appointments.BookInput{
		PatientID: "pat-1", DateTime: time.Date(2025, 3, 5, 11, 0, 0, 0, time.UTC), Type: "Facial", StaffID: "dr-1",
	})
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusScheduled, stored.Status)
	items, _ := store.ListByAppointment(context.Background(), appt.ID)
	assert.Empty(t, items)
}

func TestWelcomeRecorded(t *testing.T) {
	store := NewMemoryStore()
	notifier := NewLifecycleNotifier(testCascade(failingMessages()), store, nil, logging.Discard())

	n := notifier.Welcome(context.Background(), Recipient{ID: "pat-3", OrgID: "clinic-1", Name: "Lea"})
	assert.Equal(t, TypeWelcome, n.Type)

	items, err := store.ListByPatient(context.Background(), "pat-3")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Welcome to MedPulse Connect, Lea! We are happy to have you.", items[0].Content)
}

// slowLLM answers after delay, long enough for a cancel to commit while the
// scheduling cascade is still generating text.
type slowLLM struct {
	delay time.Duration
}

func (s slowLLM) Complete(ctx context.Context, _ textgen.LLMRequest) (textgen.LLMResponse, error) {
	select {
	case <-time.After(s.delay):
		return textgen.LLMResponse{Text: "Your visit is confirmed."}, nil
	case <-ctx.Done():
		return textgen.LLMResponse{}, ctx.Err()
	}
}

func TestAsyncCancelDuringSlowCascadeLeavesNoPendingReminders(t *testing.T) {
	store := NewMemoryStore()
	dir := staticDirectory{"pat-1": {ID: "pat-1", OrgID: "clinic-1", Name: "Ana", Phone: "+15550001111"}}
	msgs := textgen.NewMessages(textgen.NewGenerator(slowLLM{delay: 50 * time.Millisecond}, logging.Discard()), "MedPulse Connect")
	notifier := NewLifecycleNotifier(testCascade(msgs), store, dir, logging.Discard())
	svc := appointments.NewService(appointments.NewMemoryRepository(), nil, logging.Discard()).WithNotifier(notifier)
	ctx := context.Background()

	booked, err := svc.Book(ctx, admin, appointments.BookInput{
		PatientID: "pat-1", DateTime: time.Date(2025, 3, 5, 11, 0, 0, 0, time.UTC), Type: "Facial", StaffID: "dr-1",
	})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, admin, booked.ID, appointments.ConfirmWith(true))
	require.NoError(t, err)
	svc.Wait()

	items, err := store.ListByAppointment(ctx, booked.ID)
	require.NoError(t, err)
	assert.Equal(t, []Type{TypeVerificationConfirm, TypeRejection}, typesOf(items))
	for _, n := range items {
		assert.Equal(t, StatusSent, n.Status)
	}
}
