package auth

import (
	"context"
	"errors"
	"fmt"
	"github.com/Banno/consumer-api-openid-connect-example/internal/config"
	"github.com/Banno/consumer-api-openid-connect-example/internal/session"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"net/http"
	"time"
)

var (
	errNonceMismatch   = errors.New("nonces do not match")
	errIDTokenExpired  = errors.New("the ID token is expired")
	errIDTokenIssuedIn = errors.New("the ID token was issued in the future")
)

// OIDCProvider implements Provider using a discovered OpenID Connect issuer
type OIDCProvider struct {
	oauth2Config   *oauth2.Config
	verifier       *oidc.IDTokenVerifier
	httpClient     *http.Client
	clockTolerance time.Duration
	now            func() time.Time
}

var _ Provider = (*OIDCProvider)(nil)

// NewOIDCProvider discovers the issuer of env and creates a provider for its client registration.
// httpClient is used for every request to the issuer; nil selects http.DefaultClient.
func NewOIDCProvider(ctx context.Context, env *config.Environment, httpClient *http.Client) (*OIDCProvider, error) {
	if httpClient != nil {
		ctx = oidc.ClientContext(ctx, httpClient)
	}
	provider, err := oidc.NewProvider(ctx, env.Issuer)
	if err != nil {
		return nil, fmt.Errorf("could not discover the OIDC issuer: %w", err)
	}

	return &OIDCProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     env.ClientID,
			ClientSecret: string(env.ClientSecret),
			Endpoint:     provider.Endpoint(),
			RedirectURL:  env.RedirectURI,
			Scopes:       env.Scopes,
		},
		// Expiry is checked by checkTimestamps using the configured clock tolerance
		verifier: provider.Verifier(&oidc.Config{
			ClientID:        env.ClientID,
			SkipExpiryCheck: true,
		}),
		httpClient:     httpClient,
		clockTolerance: env.ClockTolerance(),
		now:            time.Now,
	}, nil
}

// AuthCodeURL builds the URL of the provider's authorization endpoint
func (provider *OIDCProvider) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return provider.oauth2Config.AuthCodeURL(state, opts...)
}

// Exchange retrieves the OAuth2 tokens and extracts and verifies the ID token + nonce
func (provider *OIDCProvider) Exchange(ctx context.Context, code string, authorization *session.Authorization) (*session.Identity, error) {
	if provider.httpClient != nil {
		ctx = oidc.ClientContext(ctx, provider.httpClient)
	}

	var opts []oauth2.AuthCodeOption
	if authorization.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(authorization.Verifier))
	}
	token, err := provider.oauth2Config.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not exchange the authorization code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, ErrNoIdentity
	}
	idToken, err := provider.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("received invalid ID token: %w", err)
	}
	if err := provider.checkTimestamps(idToken); err != nil {
		return nil, err
	}
	if idToken.Nonce != authorization.Nonce {
		return nil, errNonceMismatch
	}

	claims := make(map[string]any)
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("could not decode the ID token claims: %w", err)
	}
	if idToken.Subject == "" {
		return nil, ErrNoIdentity
	}

	return &session.Identity{
		Claims:      claims,
		AccessToken: token.AccessToken,
	}, nil
}

func (provider *OIDCProvider) checkTimestamps(idToken *oidc.IDToken) error {
	now := provider.now()
	if !idToken.Expiry.IsZero() && now.After(idToken.Expiry.Add(provider.clockTolerance)) {
		return fmt.Errorf("%w (expiry: %s)", errIDTokenExpired, idToken.Expiry.Format(time.RFC3339))
	}
	if !idToken.IssuedAt.IsZero() && idToken.IssuedAt.After(now.Add(provider.clockTolerance)) {
		return fmt.Errorf("%w (issued at: %s)", errIDTokenIssuedIn, idToken.IssuedAt.Format(time.RFC3339))
	}
	return nil
}
