// Package logging provides utilities for logging requests without leaking credentials.
package logging

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Redacted replaces values that must never appear in logs.
const Redacted = "[REDACTED]"

// secretFields are JSON keys whose values are always redacted, whatever the allowlist.
var secretFields = map[string]bool{
	"nsec":        true,
	"secret":      true,
	"secret_key":  true,
	"private_key": true,
	"password":    true,
	"token":       true,
	"jwt":         true,
}

// MaskHeader redacts sensitive header values based on header name.
//
// Rules:
//   - Secret and signature headers: "[REDACTED]"
//   - Authorization: the scheme is kept, the credential reduced to its last 4 chars
//     ("Nostr ****ab3f"). NIP-98 credentials are whole signed events, so the tail is
//     never enough to replay one.
//   - Other headers: returned unchanged
func MaskHeader(name, value string) string {
	lowerName := strings.ToLower(name)

	if strings.Contains(lowerName, "secret") ||
		strings.Contains(lowerName, "signature") ||
		strings.Contains(lowerName, "password") ||
		strings.Contains(lowerName, "private-key") {
		return Redacted
	}

	switch lowerName {
	case "authorization", "proxy-authorization":
		scheme, cred, ok := strings.Cut(value, " ")
		if !ok {
			return maskTail(value)
		}
		return scheme + " " + maskTail(cred)
	case "x-api-key", "cookie":
		return maskTail(value)
	}

	return value
}

func maskTail(v string) string {
	if len(v) < 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

// MaskJSONBody redacts secret fields and, when allowlist is non-nil, every
// primitive field not in the allowlist.
//
// Returns the masked JSON as bytes, or the original body if it is not JSON.
func MaskJSONBody(body []byte, allowlist []string) []byte {
	if len(body) == 0 {
		return body
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}

	var allowed map[string]bool
	if allowlist != nil {
		allowed = make(map[string]bool, len(allowlist))
		for _, field := range allowlist {
			allowed[field] = true
		}
	}

	result, err := json.Marshal(maskJSONValue(data, allowed))
	if err != nil {
		return body
	}
	return result
}

// maskJSONValue walks objects and arrays; a nil allowlist allows every non-secret field.
func maskJSONValue(value any, allowlist map[string]bool) any {
	switch v := value.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			switch {
			case secretFields[strings.ToLower(key)]:
				result[key] = Redacted
			case isContainer(val):
				result[key] = maskJSONValue(val, allowlist)
			case allowlist == nil || allowlist[key]:
				result[key] = val
			default:
				result[key] = Redacted
			}
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = maskJSONValue(item, allowlist)
		}
		return result
	default:
		return value
	}
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// FormatBinaryData formats binary data for logging.
func FormatBinaryData(data []byte) string {
	return fmt.Sprintf("[BINARY: %d bytes]", len(data))
}
