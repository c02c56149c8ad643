// Package redact scrubs personally identifiable information from text before
// it reaches logs.
package redact

import "regexp"

var patterns = map[string]*regexp.Regexp{
	"EMAIL":       regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	"PHONE":       regexp.MustCompile(`\b(\+?61[\s.-]?)?(04\d{2}[\s.-]?\d{3}[\s.-]?\d{3}|0[2-9]\d[\s.-]?\d{4}[\s.-]?\d{4})\b`),
	"CREDIT_CARD": regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
	"IP_ADDRESS":  regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`),
}

// Scrub replaces every recognized PII pattern with a [REDACTED_*] marker.
func Scrub(text string) string {
	for name, re := range patterns {
		text = re.ReplaceAllString(text, "[REDACTED_"+name+"]")
	}
	return text
}
