package auditlog

import "strings"

// maskFixed is the literal string logged in place of a password; the
// exact text is not meaningful, only that no password bytes ever appear.
const maskFixed = "********"

// MaskUsername retains the first 3 characters plus the domain/suffix after
// the last '@' (for email-shaped usernames) or a trailing mask otherwise,
// enough for an operator to recognize "which account" without exposing it.
func MaskUsername(username string) string {
	if username == "" {
		return ""
	}
	prefixLen := 3
	if len(username) < prefixLen {
		prefixLen = len(username)
	}
	prefix := username[:prefixLen]
	if at := strings.LastIndex(username, "@"); at >= 0 && at >= prefixLen {
		return prefix + "***" + username[at:]
	}
	return prefix + "***"
}

// MaskPassword returns a fixed mask regardless of input; password content
// never appears in any log surface, masked or otherwise.
func MaskPassword(string) string {
	return maskFixed
}

// MaskChallengeSecret fully masks a TOTP/MFA secret; even a partial
// reveal would let an attacker seed a forged authenticator.
func MaskChallengeSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return maskFixed
}

// MaskDeviceToken retains a short prefix only, enough to distinguish
// devices in logs without letting the token be replayed from a log line.
func MaskDeviceToken(token string) string {
	if token == "" {
		return ""
	}
	prefixLen := 4
	if len(token) < prefixLen {
		prefixLen = len(token)
	}
	return token[:prefixLen] + "..."
}
