package logging

import (
	"fmt"
	"regexp"
)

// RedactedPlaceholder replaces anything that looks like a credential.
const RedactedPlaceholder = "[REDACTED]"

// Specific shapes come first so a generic pattern cannot split a key.
var sensitivePatterns = []*regexp.Regexp{
	// Anthropic: sk-ant-...
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
	// OpenRouter: sk-or-...
	regexp.MustCompile(`sk-or-[a-zA-Z0-9_-]{20,}`),
	// OpenAI: sk-... and sk-proj-...
	regexp.MustCompile(`sk-(proj-)?[a-zA-Z0-9_-]{20,}`),
	// Google AI Studio: AIza...
	regexp.MustCompile(`AIza[a-zA-Z0-9_-]{30,}`),
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]{20,}`),
	// Query parameter form used by the Google endpoint
	regexp.MustCompile(`key=[a-zA-Z0-9_-]{8,}`),
}

// Redact masks credential-shaped substrings in s.
func Redact(s string) string {
	result := s
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// redactKeyvals masks string-like values; keys are left alone.
func redactKeyvals(keyvals []interface{}) []interface{} {
	if len(keyvals) == 0 {
		return keyvals
	}
	out := make([]interface{}, len(keyvals))
	for i, kv := range keyvals {
		if i%2 == 0 {
			out[i] = kv
			continue
		}
		switch v := kv.(type) {
		case string:
			out[i] = Redact(v)
		case error:
			out[i] = Redact(v.Error())
		case fmt.Stringer:
			out[i] = Redact(v.String())
		default:
			out[i] = v
		}
	}
	return out
}
