package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stackwarden/warden/api"
)

// ErrNotFound signals that the provider reports no such resource. Callers
// branch on it with errors.Is.
var ErrNotFound = errors.New("provider: resource not found")

// Error is a provider-native failure as surfaced by a backend client.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	RequestID  string
	RetryAfter int64 // milliseconds, from a throttling response header
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error %s (status %d): %s", e.Code, e.StatusCode, e.Message)
}

// throttleCodes are provider error codes treated as throttling regardless of
// HTTP status.
var throttleCodes = map[string]bool{
	"TooManyRequests":   true,
	"RequestThrottled":  true,
	"ThrottlingError":   true,
	"RateLimitExceeded": true,
}

// credentialCodes are provider error codes that require operator
// intervention rather than retry.
var credentialCodes = map[string]bool{
	"AuthenticationFailed":  true,
	"InvalidClientSecret":   true,
	"ExpiredAuthentication": true,
	"AuthorizationFailed":   true,
}

// Normalize converts any error from a provider call into a structured
// ActionError. It never returns nil for a non-nil input.
func Normalize(err error) *api.ActionError {
	if err == nil {
		return nil
	}

	var ae *api.ActionError
	if errors.As(err, &ae) {
		return ae
	}

	if errors.Is(err, ErrNotFound) {
		return &api.ActionError{
			Type:       api.ErrTypeHTTP,
			Code:       "NotFound",
			Message:    err.Error(),
			StatusCode: http.StatusNotFound,
		}
	}

	var pe *Error
	if errors.As(err, &pe) {
		return normalizeProviderError(pe)
	}

	return &api.ActionError{
		Type:    api.ErrTypeProvider,
		Message: err.Error(),
	}
}

func normalizeProviderError(pe *Error) *api.ActionError {
	out := &api.ActionError{
		Type:       api.ErrTypeProvider,
		Code:       pe.Code,
		Message:    pe.Message,
		StatusCode: pe.StatusCode,
		RequestID:  pe.RequestID,
	}

	if pe.StatusCode > 0 {
		out.Type = api.ErrTypeHTTP
	}
	if credentialCodes[pe.Code] || isCredentialStatus(pe.StatusCode) {
		out.Type = api.ErrTypeCredential
		return out
	}

	switch {
	case pe.StatusCode == http.StatusTooManyRequests || throttleCodes[pe.Code]:
		out.Throttled = true
		out.Retryable = true
		out.RetryAfterMs = pe.RetryAfter
	case pe.StatusCode == http.StatusRequestTimeout || pe.StatusCode >= 500:
		out.Retryable = true
	}

	return out
}

func isCredentialStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsNotFound reports whether err means the resource does not exist, either
// as the sentinel or a normalized 404.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.StatusCode == http.StatusNotFound || strings.EqualFold(pe.Code, "NotFound")
	}
	var ae *api.ActionError
	if errors.As(err, &ae) {
		return ae.StatusCode == http.StatusNotFound
	}
	return false
}
