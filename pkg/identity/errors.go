package identity

import (
	"errors"
)

// ProviderError is a classified failure from the identity provider.
type ProviderError struct {
	// Code is the provider's machine-readable error code.
	Code string

	// Err is the underlying error, if any.
	Err error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return "identity provider: " + e.Code + ": " + e.Err.Error()
	}
	return "identity provider: " + e.Code
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// providerMessages maps provider error codes to user-facing messages.
// Surfaced only for explicit auth actions; background failures stay silent.
var providerMessages = map[string]string{
	"invalid_credentials": "Incorrect email or password.",
	"invalid_grant":       "Incorrect email or password.",
	"user_not_found":      "No account exists for that email.",
	"user_disabled":       "This account has been disabled.",
	"email_in_use":        "An account with that email already exists.",
	"weak_password":       "Password is too weak. Use at least 8 characters.",
	"too_many_requests":   "Too many attempts. Please wait a moment and try again.",
	"network_error":       "Couldn't reach the sign-in service. Check your connection.",

	"provider_not_configured": "Sign-in is not available on this deployment.",
	"token_expired":       "Your session has expired. Please sign in again.",
}

const defaultProviderMessage = "Something went wrong. Please try again."

// Classify returns a human-readable message for a provider failure.
// Unknown codes and non-provider errors map to a generic message.
func Classify(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		if msg, ok := providerMessages[pe.Code]; ok {
			return msg
		}
	}
	return defaultProviderMessage
}
