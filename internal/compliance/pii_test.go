package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubPII(t *testing.T) {
	cases := map[string]string{
		"email ana@example.com now":           "email [EMAIL] now",
		"call +1 (555) 123-4567 today":        "call [PHONE] today",
		"text 555.123.4567":                   "text [PHONE]",
		"Your appointment is at 10:30 on Mon": "Your appointment is at 10:30 on Mon",
	}
	for in, want := range cases {
		assert.Equal(t, want, ScrubPII(in), in)
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "Hi [EMAIL]", Preview("Hi ana@example.com", 0))
	assert.Equal(t, "Hello...", Preview("Hello there", 5))
	assert.Equal(t, "short", Preview("short", 10))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "f***@medpulse.test", MaskEmail("frontdesk@medpulse.test"))
	assert.Equal(t, "[EMAIL]", MaskEmail("not-an-address"))
	assert.Equal(t, "[EMAIL]", MaskEmail("@medpulse.test"))
}
