// Package redact scrubs secrets out of structured values before they reach
// the audit trail. Redaction is by construction lossy: a redacted value can
// be logged anywhere.
package redact

import (
	"regexp"
	"strings"
)

// Placeholder replaces any value judged to be a secret.
const Placeholder = "***REDACTED***"

// GUIDPlaceholder blanks subscription-like GUIDs inside otherwise legible
// strings, keeping the rest of the identifier readable for debugging.
const GUIDPlaceholder = "00000000-0000-0000-0000-000000000000"

// secretKeyRe matches map keys whose values are secrets regardless of shape.
var secretKeyRe = regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|apikey|api[_-]key|accesskey|access[_-]key|privatekey|private[_-]key|connection[_-]?string|sas|authorization|credential)`)

// keySuffixRe matches a trailing "key" name segment: bare, after a separator,
// or as a camelCase tail. The case-sensitive tail alternative keeps words that
// merely end in "key" (monkey, turkey) out.
var keySuffixRe = regexp.MustCompile(`(?i:(^|[._-])key)$|[a-z0-9]Key$`)

// bearerRe matches strings that structurally resemble a bearer credential:
// a long run of URL-safe characters. A digits-only match (a numeric ID) is
// excluded by the letter check below.
var bearerRe = regexp.MustCompile(`^[A-Za-z0-9\-_~.+/=]{24,}$`)

var guidRe = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

var letterRe = regexp.MustCompile(`[A-Za-z]`)

// Value recursively redacts a structured value (maps, slices, scalars).
// The input is never mutated.
func Value(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSecretKey(k) {
				out[k] = Placeholder
				continue
			}
			out[k] = Value(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Value(val)
		}
		return out
	case string:
		return String(t)
	default:
		return v
	}
}

// String redacts a string value that is not under a secret-named key. A
// bearer-shaped token is replaced wholesale; anything else keeps its shape
// but has embedded GUIDs blanked.
func String(s string) string {
	if looksLikeBearer(s) {
		return Placeholder
	}
	return MaskGUIDs(s)
}

// MaskGUIDs blanks every GUID in s, leaving surrounding text intact.
func MaskGUIDs(s string) string {
	if !strings.Contains(s, "-") {
		return s
	}
	return guidRe.ReplaceAllString(s, GUIDPlaceholder)
}

func looksLikeBearer(s string) bool {
	return bearerRe.MatchString(s) && letterRe.MatchString(s)
}

func isSecretKey(k string) bool {
	return secretKeyRe.MatchString(k) || keySuffixRe.MatchString(k)
}
