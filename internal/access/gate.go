// Package access implements the role gate that precedes every mutating
// operation on the appointment lifecycle.
package access

import (
	"context"
	"errors"
	"fmt"
)

// Role is the acting user's role as established by the auth collaborator.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// Action names a capability checked by the gate.
type Action string

const (
	ActionSuggestAppointment  Action = "appointment.suggest"
	ActionBookAppointment     Action = "appointment.book"
	ActionVerifyAppointment   Action = "appointment.verify"
	ActionRejectAppointment   Action = "appointment.reject"
	ActionCancelAppointment   Action = "appointment.cancel"
	ActionCompleteAppointment Action = "appointment.complete"
	ActionViewAppointment     Action = "appointment.view"
	ActionCreateSession       Action = "session.create"
	ActionViewSession         Action = "session.view"
	ActionUpdateSettings      Action = "settings.update"
)

// Actor is the already-authenticated identity performing an operation.
type Actor struct {
	Role   Role
	UserID string
	OrgID  string
}

// Resource describes the ownership facts of the record being acted on.
type Resource struct {
	OwnerPatientID  string
	AssignedStaffID string
}

// ErrDenied is the sentinel wrapped by every DeniedError.
var ErrDenied = errors.New("access: denied")

// DeniedError is a user-facing authorization refusal. It is not a system fault.
type DeniedError struct {
	Role   Role
	Action Action
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access: %s may not %s: %s", e.Role, e.Action, e.Reason)
}

func (e *DeniedError) Unwrap() error { return ErrDenied }

// Gate decides whether an actor may perform an action on a resource.
type Gate struct{}

// NewGate returns the role gate.
func NewGate() *Gate {
	return &Gate{}
}

// Authorize returns nil when allowed and a *DeniedError otherwise.
func (g *Gate) Authorize(actor Actor, action Action, res Resource) error {
	if actor.UserID == "" {
		return deny(actor, action, "no acting user")
	}

	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleDoctor:
		return authorizeDoctor(actor, action, res)
	case RolePatient:
		return authorizePatient(actor, action, res)
	default:
		return deny(actor, action, "unknown role")
	}
}

func authorizeDoctor(actor Actor, action Action, res Resource) error {
	switch action {
	case ActionViewAppointment, ActionCompleteAppointment, ActionCreateSession:
		if res.AssignedStaffID == "" || res.AssignedStaffID != actor.UserID {
			return deny(actor, action, "appointment is not assigned to you")
		}
		return nil
	case ActionViewSession:
		return nil
	case ActionVerifyAppointment, ActionRejectAppointment, ActionCancelAppointment:
		return deny(actor, action, "only the clinic admin can verify, reject, or cancel appointments")
	default:
		return deny(actor, action, "not permitted for doctors")
	}
}

func authorizePatient(actor Actor, action Action, res Resource) error {
	switch action {
	case ActionSuggestAppointment, ActionViewAppointment, ActionViewSession:
		if res.OwnerPatientID != actor.UserID {
			return deny(actor, action, "patients may only act on their own records")
		}
		return nil
	default:
		return deny(actor, action, "patients cannot change existing appointments")
	}
}

func deny(actor Actor, action Action, reason string) error {
	return &DeniedError{Role: actor.Role, Action: action, Reason: reason}
}

// IsDenied reports whether err is an authorization refusal.
func IsDenied(err error) bool {
	return errors.Is(err, ErrDenied)
}

type ctxKey string

const actorKey ctxKey = "medpulse.actor"

// WithActor stores the acting identity in context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the acting identity if present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok && actor.UserID != ""
}
