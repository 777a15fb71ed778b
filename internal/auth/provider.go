package auth

import (
	"context"
	"github.com/Banno/consumer-api-openid-connect-example/internal/session"
	"golang.org/x/oauth2"
)

// Provider represents the identity provider capability the login flow delegates to
type Provider interface {
	// AuthCodeURL builds the URL of the provider's authorization endpoint
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string

	// Exchange exchanges an authorization code for a verified identity.
	// The authorization carries the nonce and PKCE verifier of the request that initiated the flow.
	// ErrNoIdentity is returned if the provider answered without a usable identity.
	Exchange(ctx context.Context, code string, authorization *session.Authorization) (*session.Identity, error)
}
