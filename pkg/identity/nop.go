package identity

import "context"

// NopProvider is a Provider for deployments without an identity provider
// configured. It confirms the absence of an identity immediately, so
// sessions settle into guest mode, and rejects explicit sign-in.
type NopProvider struct{}

// NewNopProvider creates a provider that never authenticates.
func NewNopProvider() *NopProvider {
	return &NopProvider{}
}

// Observe confirms absence synchronously.
func (NopProvider) Observe(callback func(*Identity, error)) func() {
	callback(nil, nil)
	return func() {}
}

// SignIn always fails: there is no provider to authenticate against.
func (NopProvider) SignIn(ctx context.Context, creds Credentials) (*Identity, error) {
	return nil, &ProviderError{Code: "provider_not_configured"}
}

// SignOut is a no-op.
func (NopProvider) SignOut(ctx context.Context) error {
	return nil
}
