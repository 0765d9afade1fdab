package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminMayDoEverything(t *testing.T) {
	gate := NewGate()
	admin := Actor{Role: RoleAdmin, UserID: "admin-1"}
	actions := []Action{
		ActionSuggestAppointment, ActionBookAppointment, ActionVerifyAppointment,
		ActionRejectAppointment, ActionCancelAppointment, ActionCompleteAppointment,
		ActionViewAppointment, ActionCreateSession, ActionViewSession, ActionUpdateSettings,
	}
	for _, action := range actions {
		assert.NoError(t, gate.Authorize(admin, action, Resource{}), string(action))
	}
}

func TestDoctorCannotVerifyRegardlessOfAssignment(t *testing.T) {
	gate := NewGate()
	doctor := Actor{Role: RoleDoctor, UserID: "dr-1"}

	for _, res := range []Resource{{}, {AssignedStaffID: "dr-1"}, {AssignedStaffID: "dr-2"}} {
		err := gate.Authorize(doctor, ActionVerifyAppointment, res)
		require.Error(t, err)
		assert.True(t, IsDenied(err))
	}
	assert.Error(t, gate.Authorize(doctor, ActionRejectAppointment, Resource{AssignedStaffID: "dr-1"}))
	assert.Error(t, gate.Authorize(doctor, ActionCancelAppointment, Resource{AssignedStaffID: "dr-1"}))
	assert.Error(t, gate.Authorize(doctor, ActionBookAppointment, Resource{AssignedStaffID: "dr-1"}))
}

func TestDoctorOwnAppointmentsOnly(t *testing.T) {
	gate := NewGate()
	doctor := Actor{Role: RoleDoctor, UserID: "dr-1"}

	assert.NoError(t, gate.Authorize(doctor, ActionViewAppointment, Resource{AssignedStaffID: "dr-1"}))
	assert.NoError(t, gate.Authorize(doctor, ActionCompleteAppointment, Resource{AssignedStaffID: "dr-1"}))
	assert.NoError(t, gate.Authorize(doctor, ActionCreateSession, Resource{AssignedStaffID: "dr-1"}))

	assert.Error(t, gate.Authorize(doctor, ActionViewAppointment, Resource{AssignedStaffID: "dr-2"}))
	assert.Error(t, gate.Authorize(doctor, ActionCreateSession, Resource{}))
}

func TestPatientMaySuggestOnlyForThemselves(t *testing.T) {
	gate := NewGate()
	patient := Actor{Role: RolePatient, UserID: "pat-1"}

	assert.NoError(t, gate.Authorize(patient, ActionSuggestAppointment, Resource{OwnerPatientID: "pat-1"}))
	assert.Error(t, gate.Authorize(patient, ActionSuggestAppointment, Resource{OwnerPatientID: "pat-2"}))

	for _, action := range []Action{ActionVerifyAppointment, ActionCancelAppointment, ActionRejectAppointment, ActionBookAppointment, ActionCompleteAppointment} {
		assert.Error(t, gate.Authorize(patient, action, Resource{OwnerPatientID: "pat-1"}), string(action))
	}
}

func TestUnknownRoleAndMissingUserDenied(t *testing.T) {
	gate := NewGate()

	err := gate.Authorize(Actor{Role: "receptionist", UserID: "r-1"}, ActionViewAppointment, Resource{})
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "unknown role", denied.Reason)

	assert.Error(t, gate.Authorize(Actor{Role: RoleAdmin}, ActionBookAppointment, Resource{}))
}

func TestActorContextRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{Role: RoleDoctor, UserID: "dr-9", OrgID: "org-1"})
	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "dr-9", actor.UserID)

	_, ok = ActorFromContext(context.Background())
	assert.False(t, ok)
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RolePatient.Valid())
	assert.False(t, Role("nurse").Valid())
}
