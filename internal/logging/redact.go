package logging

import (
	"regexp"
	"strings"
)

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

var sensitiveFields = []string{
	"password",
	"passphrase",
	"secret",
	"token",
	"api_key",
	"apikey",
	"private_key",
	"user_pass",
}

// Matches --flag=value pairs whose flag name looks sensitive, quoted or not.
var sensitiveFlag = regexp.MustCompile(`(?i)(--[a-z0-9_-]*(?:pass|secret|token|api[_-]?key|private[_-]?key)[a-z0-9_-]*=)('(?:[^']|'\\'')*'|\S+)`)

// Redact masks the values of sensitive --flag=value pairs in a command line.
func Redact(s string) string {
	return sensitiveFlag.ReplaceAllString(s, "${1}"+RedactedValue)
}

// RedactMap returns a copy of m with the values of sensitive keys masked.
// Nested maps are redacted recursively. Unset values stay as they are so
// the output still shows which secrets are configured.
func RedactMap(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		if IsSensitiveField(k) {
			if v != nil && v != "" {
				v = RedactedValue
			}
			result[k] = v
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			v = RedactMap(nested)
		}
		result[k] = v
	}
	return result
}

// IsSensitiveField checks if a field name is considered sensitive.
func IsSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}
