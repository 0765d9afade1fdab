package textgen

import (
	"context"
	"fmt"
	"strings"
)

// Prompt kinds, also used as metric labels.
const (
	KindWelcome      = "welcome"
	KindConfirmation = "confirmation"
	KindTimeChange   = "time_change"
	KindReminder     = "reminder"
	KindCareAdvice   = "care_instructions"
	KindConsultation = "consultation"
)

const messagingSystem = "You write short SMS/WhatsApp messages for an aesthetic medical clinic. " +
	"Plain text only, no markdown, no placeholders, at most three sentences."

// Fallback texts.
const (
	CareInstructionsFallback = "Follow general wellness guidelines and stay hydrated."
	ConsultationFallback     = "Based on your concern, we recommend a consultation with our specialist to determine the best plan."
)

// WelcomeFallback is used when the welcome message cannot be generated.
func WelcomeFallback(clinic, patientName string) string {
	return fmt.Sprintf("Welcome to %s, %s! We are happy to have you.", clinic, patientName)
}

// ConfirmationFallback confirms an appointment at the suggested time.
func ConfirmationFallback(treatment, when string) string {
	return fmt.Sprintf("Your appointment for %s has been fixed for %s. See you soon!", treatment, when)
}

// BookingFallback confirms a booking made directly by the clinic.
func BookingFallback(treatment, when string) string {
	return fmt.Sprintf("Your appointment for %s has been scheduled for %s. We look forward to seeing you!", treatment, when)
}

// TimeChangeFallback asks the patient to confirm a clinic-chosen time.
func TimeChangeFallback(when string) string {
	return fmt.Sprintf("The time you have chosen is full, your new appointment is %s, please reply to confirm so we can fix your new appointment.", when)
}

// ReminderFallback is the deterministic reminder text.
func ReminderFallback(clinic, treatment, when string) string {
	return fmt.Sprintf("Friendly reminder: You have a %s appointment on %s at %s.", treatment, when, clinic)
}

// Messages builds clinic-specific prompts over a Generator.
type Messages struct {
	gen    *Generator
	clinic string
}

// NewMessages binds prompt templates to a clinic display name.
func NewMessages(gen *Generator, clinic string) *Messages {
	if gen == nil {
		gen = NewGenerator(nil, nil)
	}
	return &Messages{gen: gen, clinic: clinic}
}

// Clinic returns the display name used in texts.
func (m *Messages) Clinic() string { return m.clinic }

func (m *Messages) Welcome(ctx context.Context, patientName string) Outcome {
	return m.gen.Generate(ctx, Prompt{
		Kind:   KindWelcome,
		System: messagingSystem,
		User: fmt.Sprintf("Write a warm, professional welcome message for a new patient named %s at %s clinic.",
			patientName, m.clinic),
		MaxTokens: 160,
	}, WelcomeFallback(m.clinic, patientName))
}

func (m *Messages) Confirmation(ctx context.Context, patientName, treatment, when string) Outcome {
	return m.gen.Generate(ctx, Prompt{
		Kind:   KindConfirmation,
		System: messagingSystem,
		User: fmt.Sprintf("Write a confirmation for %s: their %s appointment at %s is confirmed for %s.",
			patientName, treatment, m.clinic, when),
		MaxTokens: 160,
	}, ConfirmationFallback(treatment, when))
}

func (m *Messages) Booking(ctx context.Context, patientName, treatment, when string) Outcome {
	return m.gen.Generate(ctx, Prompt{
		Kind:   KindConfirmation,
		System: messagingSystem,
		User: fmt.Sprintf("Write a booking confirmation for %s: %s scheduled their %s appointment for %s.",
			patientName, m.clinic, treatment, when),
		MaxTokens: 160,
	}, BookingFallback(treatment, when))
}

func (m *Messages) TimeChange(ctx context.Context, patientName, treatment, when string) Outcome {
	return m.gen.Generate(ctx, Prompt{
		Kind:   KindTimeChange,
		System: messagingSystem,
		User: fmt.Sprintf("Tell %s that the time they chose for %s is full, their new appointment is %s, "+
			"and ask them to reply to confirm.", patientName, treatment, when),
		MaxTokens: 160,
	}, TimeChangeFallback(when))
}

// Reminder drafts a reminder sent leadTime (e.g. "24 hours") before the visit.
func (m *Messages) Reminder(ctx context.Context, patientName, treatment, when, leadTime string) Outcome {
	return m.gen.Generate(ctx, Prompt{
		Kind:   KindReminder,
		System: messagingSystem,
		User: fmt.Sprintf("Write a short, professional appointment reminder for %s.\nAppointment: %s\nTime: %s\n"+
			"Lead time: %s before the appointment.\nClinic: %s.\nAsk them to arrive 10 minutes early.",
			patientName, treatment, when, leadTime, m.clinic),
		MaxTokens: 160,
	}, ReminderFallback(m.clinic, treatment, when))
}

// CareInstructions suggests home-care instructions from session notes.
func (m *Messages) CareInstructions(ctx context.Context, summary, results string) Outcome {
	return m.gen.Generate(ctx, Prompt{
		Kind: KindCareAdvice,
		User: fmt.Sprintf("Based on the following session notes and results, generate a concise list of home care "+
			"instructions for the patient.\nNotes: %s\nResults: %s\nFormat as a simple bulleted list.",
			strings.TrimSpace(summary), strings.TrimSpace(results)),
		MaxTokens: 320,
	}, CareInstructionsFallback)
}

// Consultation recommends one treatment from the catalog for a concern.
func (m *Messages) Consultation(ctx context.Context, concern string, catalog []string) Outcome {
	return m.gen.Generate(ctx, Prompt{
		Kind: KindConsultation,
		System: fmt.Sprintf("You are a professional medical aesthetic consultant for %s. "+
			"Keep your tone empathetic, professional, and reassuring. Limit your response to 4 sentences.", m.clinic),
		User: fmt.Sprintf("A patient has the following concern: %q. Recommend the best treatment from: %s. "+
			"Explain why and what they can expect.", strings.TrimSpace(concern), strings.Join(catalog, ", ")),
		MaxTokens: 320,
	}, ConsultationFallback)
}
