package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/Banno/consumer-api-openid-connect-example/internal/random"
	"github.com/Banno/consumer-api-openid-connect-example/internal/session"
	"golang.org/x/oauth2"
	"net/url"
	"strings"
	"time"
)

var (
	stateLength = 32
	nonceLength = 32

	defaultStateLifetime = time.Hour
)

// Options configures a login Flow
type Options struct {
	// Claims lists the claims to request from the provider; each one is requested as voluntary
	Claims []string

	// UsePKCE enables the S256 proof key for code exchange
	UsePKCE bool

	// DefaultReturnPath is the post-login redirect target if the flow was initiated without a return path
	DefaultReturnPath string

	// StateLifetime is the time a pending authorization stays valid; defaults to one hour
	StateLifetime time.Duration
}

// Flow implements the OIDC authorization code flow on top of browser sessions
type Flow struct {
	provider Provider
	storage  session.Storage
	options  Options
	now      func() time.Time
}

// NewFlow creates a new login flow
func NewFlow(provider Provider, storage session.Storage, options Options) *Flow {
	if options.StateLifetime <= 0 {
		options.StateLifetime = defaultStateLifetime
	}
	if options.DefaultReturnPath == "" {
		options.DefaultReturnPath = "/me"
	}
	return &Flow{
		provider: provider,
		storage:  storage,
		options:  options,
		now:      time.Now,
	}
}

// Initiate creates a new pending authorization for the session identified by rawToken and returns the URL to
// redirect the browser to.
// returnPath is remembered only if it is a same-origin path.
func (flow *Flow) Initiate(ctx context.Context, rawToken, returnPath string) (string, error) {
	authorization := &session.Authorization{
		State:   random.String(stateLength, random.CharsetAlphanumeric),
		Nonce:   random.String(nonceLength, random.CharsetAlphanumeric),
		Expires: flow.now().Add(flow.options.StateLifetime).Unix(),
	}
	if IsSafeReturnPath(returnPath) {
		authorization.ReturnPath = returnPath
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("nonce", authorization.Nonce),
	}
	if flow.options.UsePKCE {
		authorization.Verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(authorization.Verifier))
	}
	if len(flow.options.Claims) > 0 {
		claims, err := claimsParameter(flow.options.Claims)
		if err != nil {
			return "", err
		}
		opts = append(opts, oauth2.SetAuthURLParam("claims", claims))
	}

	if err := flow.storage.PutAuthorization(ctx, rawToken, authorization); err != nil {
		return "", err
	}
	return flow.provider.AuthCodeURL(authorization.State, opts...), nil
}

// Complete validates an authorization callback and commits the resulting identity to the session identified by
// rawToken.
// It returns the identity and the path to redirect the browser to.
// The pending authorization referenced by the callback is consumed even if the login fails afterwards.
func (flow *Flow) Complete(ctx context.Context, rawToken string, params url.Values) (*session.Identity, string, error) {
	authorization, err := flow.storage.ConsumeAuthorization(ctx, rawToken, params.Get("state"))
	if err != nil {
		return nil, "", err
	}
	if authorization == nil {
		return nil, "", ErrStateMismatch
	}

	if providerErr := params.Get("error"); providerErr != "" {
		if description := params.Get("error_description"); description != "" {
			return nil, "", fmt.Errorf("%w: %s (%s)", ErrProviderDenied, providerErr, description)
		}
		return nil, "", fmt.Errorf("%w: %s", ErrProviderDenied, providerErr)
	}
	code := params.Get("code")
	if code == "" {
		return nil, "", fmt.Errorf("%w: no authorization code", ErrProviderDenied)
	}

	identity, err := flow.provider.Exchange(ctx, code, authorization)
	if err != nil {
		if errors.Is(err, ErrNoIdentity) {
			return nil, "", fmt.Errorf("%w: %v", ErrProviderDenied, err)
		}
		return nil, "", fmt.Errorf("%w: %v", ErrLoginFailure, err)
	}
	if identity == nil {
		return nil, "", fmt.Errorf("%w: %v", ErrProviderDenied, ErrNoIdentity)
	}

	if err := flow.storage.SetIdentity(ctx, rawToken, identity); err != nil {
		return nil, "", err
	}

	next := authorization.StateToken().ReturnPath
	if next == "" {
		next = flow.options.DefaultReturnPath
	}
	return identity, next, nil
}

// IsSafeReturnPath reports whether path may be used as a post-login redirect target.
// Only same-origin absolute paths are allowed; protocol-relative references like '//host' are rejected.
func IsSafeReturnPath(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	if strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return false
	}
	parsed, err := url.Parse(path)
	return err == nil && parsed.Scheme == "" && parsed.Host == ""
}

func claimsParameter(claims []string) (string, error) {
	requested := make(map[string]any, len(claims))
	for _, claim := range claims {
		// A null value requests the claim as voluntary
		requested[claim] = nil
	}
	raw, err := json.Marshal(map[string]any{
		"id_token": requested,
		"userinfo": requested,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
