// Package redact masks personal data before it reaches the logs.
package redact

import "strings"

// Email keeps the first two characters of the local part and the domain.
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return "***"
	}
	runes := []rune(local)
	if len(runes) > 2 {
		return string(runes[:2]) + "***@" + domain
	}
	return "***@" + domain
}
