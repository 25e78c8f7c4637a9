package identity

import (
	"context"
)

// Identity is a confirmed identity-provider account.
type Identity struct {
	// ID is the stable account identifier.
	ID string `json:"id"`

	// Email is the account email, if the provider shares it.
	Email string `json:"email,omitempty"`

	// DisplayName is the human-readable name, if any.
	DisplayName string `json:"display_name,omitempty"`
}

// Credentials are the inputs to an explicit sign-in.
type Credentials struct {
	Email    string
	Password string
}

// Provider is the external identity provider, treated as a black box.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Observe registers a callback for identity confirmation. The
	// callback fires at least once: with the current identity, with nil
	// if there is none, or with an error if the provider is unreachable.
	// Returns an unsubscribe function.
	Observe(callback func(*Identity, error)) (unsubscribe func())

	// SignIn authenticates with explicit credentials.
	SignIn(ctx context.Context, creds Credentials) (*Identity, error)

	// SignOut ends the provider-side session.
	SignOut(ctx context.Context) error
}
