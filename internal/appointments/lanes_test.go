package appointments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// gatedNotifier holds Notify for the listed appointments until released.
type gatedNotifier struct {
	recordingNotifier
	mu    sync.Mutex
	gates map[string]chan struct{}
	delay map[TransitionKind]time.Duration
}

func (n *gatedNotifier) gate(id string) chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gates[id]
}

func (n *gatedNotifier) Notify(ctx context.Context, t Transition) {
	if g := n.gate(t.Appointment.ID); g != nil {
		<-g
	}
	time.Sleep(n.delay[t.Kind])
	n.recordingNotifier.Notify(ctx, t)
}

func TestAsyncCascadeKeepsPerAppointmentOrder(t *testing.T) {
	notifier := &gatedNotifier{delay: map[TransitionKind]time.Duration{TransitionScheduled: 50 * time.Millisecond}}
	svc := NewService(NewMemoryRepository(), nil, logging.Discard()).WithNotifier(notifier)
	ctx := context.Background()

	booked, err := svc.Book(ctx, admin, BookInput{PatientID: "pat-1", DateTime: at(9, 0), Type: "Facial", StaffID: "dr-1"})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, admin, booked.ID, ConfirmWith(true))
	require.NoError(t, err)

	svc.Wait()
	assert.Equal(t, []TransitionKind{TransitionScheduled, TransitionCancelled}, notifier.kinds())
	assert.Empty(t, svc.lanes.tails, "idle lanes are released")
}

func TestAsyncCascadeDoesNotSerializeAcrossAppointments(t *testing.T) {
	notifier := &gatedNotifier{gates: map[string]chan struct{}{}}
	repo := NewMemoryRepository()
	svc := NewService(repo, nil, logging.Discard()).WithNotifier(notifier)
	ctx := context.Background()

	pending, err := svc.Suggest(ctx, patient, SuggestInput{DateTime: at(9, 0), Type: "Facial"})
	require.NoError(t, err)
	svc.Wait()

	release := make(chan struct{})
	notifier.mu.Lock()
	notifier.gates[pending.ID] = release
	notifier.mu.Unlock()

	_, err = svc.Reject(ctx, admin, pending.ID, ConfirmWith(true))
	require.NoError(t, err)
	_, err = svc.Book(ctx, admin, BookInput{PatientID: "pat-1", DateTime: at(13, 0), Type: "Facial", StaffID: "dr-1"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		k := notifier.kinds()
		return len(k) == 2 && k[1] == TransitionScheduled
	}, time.Second, 5*time.Millisecond)

	close(release)
	svc.Wait()
	assert.Equal(t, []TransitionKind{TransitionSuggested, TransitionScheduled, TransitionRejected}, notifier.kinds())
}

func TestSynchronousCascadeReservesNoLanes(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Book(context.Background(), admin, BookInput{PatientID: "pat-1", DateTime: at(9, 0), Type: "Facial", StaffID: "dr-1"})
	require.NoError(t, err)
	assert.Empty(t, svc.lanes.tails)
}
