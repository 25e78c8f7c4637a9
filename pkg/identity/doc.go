// Package identity wraps the external identity provider and tracks what is
// known about the current user.
//
// Identity knowledge moves through three phases: unknown (nothing cached,
// provider not yet heard from), optimistic (a locally cached marker says the
// device was recently signed in, the provider has not confirmed yet), and
// confirmed (the provider answered, with an identity or with none). The
// Observer owns that progression and guarantees it confirms exactly once
// even when the provider is slow or unreachable.
//
// The provider itself is opaque behind the Provider interface; an
// OIDC-backed implementation is included.
package identity
