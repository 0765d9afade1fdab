package compliance

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE] so
// message bodies can be logged.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	return phoneRe.ReplaceAllString(text, "[PHONE]")
}

// Preview scrubs text and truncates it to at most n runes.
func Preview(text string, n int) string {
	scrubbed := []rune(ScrubPII(text))
	if n <= 0 || len(scrubbed) <= n {
		return string(scrubbed)
	}
	return string(scrubbed[:n]) + "..."
}

// MaskEmail keeps the first character of the local part and the domain, so
// logs can tell recipients apart without carrying the address.
func MaskEmail(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "[EMAIL]"
	}
	return addr[:1] + "***" + addr[at:]
}
