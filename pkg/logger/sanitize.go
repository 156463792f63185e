package logger

import (
	"strings"
	"unicode/utf8"
)

// SanitizedEmail masks an email address for log output, keeping the first
// character of the local part and the TLD: "jane@ishaazi.com" -> "j***@***.com".
// The mask is fixed-width so log lines do not leak the address length.
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return "[invalid-email]"
	}

	first, _ := utf8.DecodeRuneInString(local)
	masked := string(first) + "***"

	if i := strings.LastIndex(domain, "."); i > 0 {
		return masked + "@***" + domain[i:]
	}
	return masked + "@***"
}

// Query parameter fragments that must never reach the request log. "token"
// covers the websocket handshake, which authenticates via ?token= because
// browsers cannot set headers on an Upgrade request.
var sensitiveQueryFragments = []string{
	"token",
	"password",
	"secret",
	"email",
	"auth",
}

// SanitizeQueryString reports whether a raw query string carries a sensitive
// parameter and should be redacted wholesale rather than logged.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	query := strings.ToLower(rawQuery)
	for _, fragment := range sensitiveQueryFragments {
		if strings.Contains(query, fragment) {
			return true
		}
	}
	return false
}
