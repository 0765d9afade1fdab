// Package compliance holds the patient-safety text rules applied to generated
// content before it reaches a patient.
package compliance

import (
	"fmt"
	"strings"
)

// DisclaimerLevel represents the verbosity of the disclaimer.
type DisclaimerLevel string

const (
	DisclaimerOff    DisclaimerLevel = "off"
	DisclaimerShort  DisclaimerLevel = "short"
	DisclaimerMedium DisclaimerLevel = "medium"
	DisclaimerFull   DisclaimerLevel = "full"
)

const (
	disclaimerShortText = "Automated suggestion. Not medical advice."

	disclaimerMediumText = "This recommendation was generated automatically. Please confirm any treatment with your provider."

	disclaimerFullText = "This recommendation was generated automatically from the clinic's treatment catalog. It is general in nature and not a substitute for professional medical advice. Please review it with a licensed provider before booking."
)

// ParseDisclaimerLevel maps a config value to a level. Unknown values fall
// back to medium.
func ParseDisclaimerLevel(raw string) DisclaimerLevel {
	switch DisclaimerLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case DisclaimerOff, "none", "disabled":
		return DisclaimerOff
	case DisclaimerShort:
		return DisclaimerShort
	case DisclaimerFull:
		return DisclaimerFull
	default:
		return DisclaimerMedium
	}
}

// Disclaimer appends a fixed notice to AI-authored recommendations.
type Disclaimer struct {
	level  DisclaimerLevel
	custom string
}

func NewDisclaimer(level DisclaimerLevel) *Disclaimer {
	return &Disclaimer{level: level}
}

// WithCustomText overrides the built-in template.
func (d *Disclaimer) WithCustomText(text string) *Disclaimer {
	d.custom = strings.TrimSpace(text)
	return d
}

// Text returns the notice, or "" when disabled.
func (d *Disclaimer) Text() string {
	if d == nil || d.level == DisclaimerOff {
		return ""
	}
	if d.custom != "" {
		return d.custom
	}
	switch d.level {
	case DisclaimerShort:
		return disclaimerShortText
	case DisclaimerFull:
		return disclaimerFullText
	default:
		return disclaimerMediumText
	}
}

// Apply appends the notice unless the message already carries it.
func (d *Disclaimer) Apply(message string) string {
	notice := d.Text()
	if notice == "" || strings.Contains(message, notice) {
		return message
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return notice
	}
	return fmt.Sprintf("%s\n\n%s", message, notice)
}
