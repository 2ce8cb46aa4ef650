package observability

import (
	"fmt"
	"strings"
)

const (
	// RedactedValue replaces the value of fields whose key looks sensitive.
	RedactedValue = "[REDACTED]"

	// MaxFieldValueLength caps string field values before they reach a log backend.
	MaxFieldValueLength = 1024

	// MaxFields caps the number of fields of a single log entry.
	MaxFields = 64
)

var sensitiveKeyFragments = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey", "authorization",
	"bearer", "credential", "private_key", "credit_card", "creditcard", "ssn",
	"session", "cookie",
}

// IsSensitiveKey reports whether a field key names data that must not be logged.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// SanitizeFields redacts sensitive values, truncates long strings and caps the field count.
// The input slice is not modified.
func SanitizeFields(fields []Field) []Field {
	if len(fields) > MaxFields {
		fields = fields[:MaxFields]
	}

	out := make([]Field, len(fields))
	for i, f := range fields {
		switch {
		case IsSensitiveKey(f.Key):
			out[i] = Field{Key: f.Key, Value: RedactedValue}
		case isLongString(f.Value):
			out[i] = Field{Key: f.Key, Value: f.Value.(string)[:MaxFieldValueLength] + "...[truncated]"}
		default:
			out[i] = f
		}
	}
	return out
}

func isLongString(v any) bool {
	s, ok := v.(string)
	return ok && len(s) > MaxFieldValueLength
}

// ValueString renders a field value for backends that only accept strings.
func ValueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
