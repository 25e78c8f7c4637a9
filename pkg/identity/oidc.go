package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCProvider integrates an OpenID Connect identity provider.
// It implements the authorization-code flow for browser sign-in and the
// resource-owner password grant for the Provider.SignIn contract.
type OIDCProvider struct {
	provider *oidc.Provider
	config   oauth2.Config
	verifier *oidc.IDTokenVerifier
	logger   *slog.Logger
}

// OIDCConfig holds the settings for an OIDC provider.
type OIDCConfig struct {
	// IssuerURL is the provider's issuer, e.g. "https://auth.example.com/realms/reeldeck".
	IssuerURL string

	// ClientID and ClientSecret identify this application.
	ClientID     string
	ClientSecret string

	// RedirectURL is the registered callback for the code flow.
	RedirectURL string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewOIDCProvider discovers the issuer and builds a provider.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover OIDC issuer: %w", err)
	}

	return &OIDCProvider{
		provider: provider,
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		logger:   cfg.Logger.With("component", "oidc_provider"),
	}, nil
}

// idClaims are the claims reeldeck reads from an ID token.
type idClaims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
}

func (c idClaims) identity() *Identity {
	name := c.Name
	if name == "" {
		name = c.PreferredUsername
	}
	return &Identity{
		ID:          c.Subject,
		Email:       c.Email,
		DisplayName: name,
	}
}

// AuthCodeURL returns the provider's sign-in URL for the code flow.
func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a verified identity and the
// raw ID token, which callers persist for later re-verification.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*Identity, string, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, "", classifyOAuthError(err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, "", &ProviderError{Code: "missing_id_token"}
	}

	ident, err := p.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, "", err
	}
	return ident, rawIDToken, nil
}

// VerifyIDToken verifies a raw ID token and extracts the identity.
func (p *OIDCProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (*Identity, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, &ProviderError{Code: "token_expired", Err: err}
		}
		return nil, &ProviderError{Code: "invalid_token", Err: err}
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, &ProviderError{Code: "invalid_token", Err: err}
	}
	return claims.identity(), nil
}

// SignIn authenticates with the resource-owner password grant.
func (p *OIDCProvider) SignIn(ctx context.Context, creds Credentials) (*Identity, string, error) {
	token, err := p.config.PasswordCredentialsToken(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, "", classifyOAuthError(err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, "", &ProviderError{Code: "missing_id_token"}
	}

	ident, err := p.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, "", err
	}
	return ident, rawIDToken, nil
}

// classifyOAuthError maps transport-level failures onto provider codes.
func classifyOAuthError(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		code := retrieve.ErrorCode
		if code == "" {
			code = "invalid_grant"
		}
		return &ProviderError{Code: code, Err: err}
	}
	return &ProviderError{Code: "network_error", Err: err}
}

// TokenSession adapts an OIDCProvider plus a stored ID token to the
// Provider contract for one session. Observe verifies the stored token
// asynchronously, which is the provider-confirmation step the Observer
// waits on.
type TokenSession struct {
	provider *OIDCProvider

	// rawIDToken is the token persisted at sign-in; empty means the
	// session has no stored credential.
	rawIDToken string

	// verifyTimeout bounds the Observe verification call.
	verifyTimeout time.Duration
}

// NewTokenSession creates a session-scoped Provider over a stored token.
func NewTokenSession(provider *OIDCProvider, rawIDToken string) *TokenSession {
	return &TokenSession{
		provider:      provider,
		rawIDToken:    rawIDToken,
		verifyTimeout: 5 * time.Second,
	}
}

// Observe verifies the stored token in the background and reports the
// result exactly once. No stored token confirms absence immediately.
func (t *TokenSession) Observe(callback func(*Identity, error)) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if t.rawIDToken == "" {
			callback(nil, nil)
			return
		}

		vctx, vcancel := context.WithTimeout(ctx, t.verifyTimeout)
		defer vcancel()

		ident, err := t.provider.VerifyIDToken(vctx, t.rawIDToken)
		if ctx.Err() != nil {
			// Unsubscribed while verifying.
			return
		}
		if err != nil {
			callback(nil, err)
			return
		}
		callback(ident, nil)
	}()

	return cancel
}

// SignIn authenticates and retains the new token for this session.
func (t *TokenSession) SignIn(ctx context.Context, creds Credentials) (*Identity, error) {
	ident, rawIDToken, err := t.provider.SignIn(ctx, creds)
	if err != nil {
		return nil, err
	}
	t.rawIDToken = rawIDToken
	return ident, nil
}

// SignOut drops the session's stored token. Provider-side single sign-out
// is the caller's concern.
func (t *TokenSession) SignOut(ctx context.Context) error {
	t.rawIDToken = ""
	return nil
}
