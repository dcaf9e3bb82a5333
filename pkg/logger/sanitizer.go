package logger

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

// credentialPatterns match "key value" shapes that must never reach a
// log line, whichever field they travel in.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passwd|pwd)[\s:=]+[^\s]+`),
	regexp.MustCompile(`(?i)(token|jwt|bearer)[\s:=]+[^\s]+`),
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)[\s:=]+[^\s]+`),
	regexp.MustCompile(`(?i)(secret|private[_-]?key)[\s:=]+[^\s]+`),
}

// sensitiveKeys flags map keys whose values are redacted wholesale.
var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"token", "jwt", "bearer",
	"api_key", "apikey", "api-key",
	"secret", "private_key", "private-key",
}

// SanitizeLogMessage redacts credential-shaped substrings from a
// free-form message before it is logged.
func SanitizeLogMessage(message string) string {
	for _, pattern := range credentialPatterns {
		message = pattern.ReplaceAllString(message, "${1}="+redactedPlaceholder)
	}
	return message
}

// SanitizeMap returns a copy of data with sensitive keys redacted.
// Key matching is case-insensitive and substring-based, so "api_key"
// catches "vault_api_key" too.
func SanitizeMap(data map[string]any) map[string]any {
	sanitized := make(map[string]any, len(data))
	for k, v := range data {
		lower := strings.ToLower(k)
		redact := false
		for _, key := range sensitiveKeys {
			if strings.Contains(lower, key) {
				redact = true
				break
			}
		}

		if redact {
			sanitized[k] = redactedPlaceholder
		} else {
			sanitized[k] = v
		}
	}
	return sanitized
}
