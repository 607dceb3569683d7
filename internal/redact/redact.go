// Package redact scrubs simple phone-like digit groups from log text.
// It is a minimal demonstration redactor, not a compliance-grade scrubber.
package redact

import "regexp"

// Placeholder replaces every matched digit group.
const Placeholder = "[REDACTED]"

var (
	// 10-digit pattern like 555-123-4567. Runs before the 7-digit pattern,
	// otherwise its trailing 123-4567 would be scrubbed on its own and leave
	// the leading group behind.
	tenDigit = regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`)

	// 7-digit pattern like 555-0199.
	sevenDigit = regexp.MustCompile(`\b\d{3}-\d{4}\b`)
)

// Sensitive replaces phone-like digit groups with the placeholder token.
// The function is pure and idempotent: the placeholder contains no digits,
// so re-running it over already-redacted text changes nothing.
func Sensitive(text string) string {
	text = tenDigit.ReplaceAllString(text, Placeholder)
	text = sevenDigit.ReplaceAllString(text, Placeholder)
	return text
}
