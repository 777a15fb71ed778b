package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"github.com/Banno/consumer-api-openid-connect-example/internal/session"
	"github.com/Banno/consumer-api-openid-connect-example/internal/session/storage/inmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"net/url"
	"testing"
	"time"
)

type fakeProvider struct {
	identity *session.Identity
	err      error

	exchanges     int
	code          string
	authorization *session.Authorization
}

func (provider *fakeProvider) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	cfg := &oauth2.Config{
		ClientID:    "client",
		Endpoint:    oauth2.Endpoint{AuthURL: "https://idp.example.com/authorize"},
		RedirectURL: "https://localhost:8080/auth/cb",
		Scopes:      []string{"openid", "profile"},
	}
	return cfg.AuthCodeURL(state, opts...)
}

func (provider *fakeProvider) Exchange(_ context.Context, code string, authorization *session.Authorization) (*session.Identity, error) {
	provider.exchanges++
	provider.code = code
	provider.authorization = authorization
	return provider.identity, provider.err
}

type flowFixture struct {
	flow     *Flow
	provider *fakeProvider
	storage  *inmem.Driver
	token    string
}

func newFlowFixture(t *testing.T, options Options) *flowFixture {
	t.Helper()
	storage, err := inmem.New()
	require.NoError(t, err)
	token, _, err := storage.Create(context.Background(), time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)

	provider := &fakeProvider{
		identity: &session.Identity{
			Claims: map[string]any{
				"sub":   "a1b2c3",
				"name":  "Jane Doe",
				"email": "jane@example.com",
				"https://api.banno.com/consumer/claim/institution_id": "inst-1",
			},
			AccessToken: "access-token",
		},
	}
	return &flowFixture{
		flow:     NewFlow(provider, storage, options),
		provider: provider,
		storage:  storage,
		token:    token,
	}
}

// initiate starts a flow and returns the query of the authorization URL
func (fixture *flowFixture) initiate(t *testing.T, returnPath string) url.Values {
	t.Helper()
	redirect, err := fixture.flow.Initiate(context.Background(), fixture.token, returnPath)
	require.NoError(t, err)
	parsed, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", parsed.Host)
	return parsed.Query()
}

func callback(state, code string) url.Values {
	return url.Values{"state": {state}, "code": {code}}
}

func TestFlowInitiate(t *testing.T) {
	fixture := newFlowFixture(t, Options{Claims: []string{"name", "email"}})
	query := fixture.initiate(t, "")

	assert.Len(t, query.Get("state"), stateLength)
	assert.Len(t, query.Get("nonce"), nonceLength)
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "openid profile", query.Get("scope"))
	assert.Empty(t, query.Get("code_challenge"))

	var claims map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(query.Get("claims")), &claims))
	for _, target := range []string{"id_token", "userinfo"} {
		require.Contains(t, claims, target)
		assert.Len(t, claims[target], 2)
		value, ok := claims[target]["email"]
		assert.True(t, ok)
		assert.Nil(t, value, "claims have to be requested as voluntary")
	}

	other := fixture.initiate(t, "")
	assert.NotEqual(t, query.Get("state"), other.Get("state"))
}

func TestFlowInitiateWithPKCE(t *testing.T) {
	fixture := newFlowFixture(t, Options{UsePKCE: true})
	query := fixture.initiate(t, "")
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.Empty(t, query.Get("claims"))

	_, _, err := fixture.flow.Complete(context.Background(), fixture.token, callback(query.Get("state"), "code"))
	require.NoError(t, err)

	verifier := fixture.provider.authorization.Verifier
	require.NotEmpty(t, verifier)
	assert.NotContains(t, query.Get("state"), verifier)
	sum := sha256.Sum256([]byte(verifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), query.Get("code_challenge"))
	assert.Equal(t, query.Get("nonce"), fixture.provider.authorization.Nonce)
}

func TestFlowReturnPath(t *testing.T) {
	tests := []struct {
		returnPath string
		expected   string
	}{
		{returnPath: "", expected: "/me"},
		{returnPath: "/hello", expected: "/hello"},
		{returnPath: "/accountsAndTransactions?x=1", expected: "/accountsAndTransactions?x=1"},
		{returnPath: "hello", expected: "/me"},
		{returnPath: "https://evil.example.com/", expected: "/me"},
		{returnPath: "//evil.example.com/", expected: "/me"},
		{returnPath: "/\\evil.example.com/", expected: "/me"},
	}
	for _, test := range tests {
		t.Run(test.returnPath, func(t *testing.T) {
			fixture := newFlowFixture(t, Options{})
			query := fixture.initiate(t, test.returnPath)

			_, next, err := fixture.flow.Complete(context.Background(), fixture.token, callback(query.Get("state"), "code"))
			require.NoError(t, err)
			assert.Equal(t, test.expected, next)
		})
	}
}

func TestFlowDefaultReturnPath(t *testing.T) {
	fixture := newFlowFixture(t, Options{DefaultReturnPath: "/hello"})
	query := fixture.initiate(t, "")
	_, next, err := fixture.flow.Complete(context.Background(), fixture.token, callback(query.Get("state"), "code"))
	require.NoError(t, err)
	assert.Equal(t, "/hello", next)
}

func TestFlowComplete(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t, Options{})
	query := fixture.initiate(t, "/hello")

	identity, next, err := fixture.flow.Complete(ctx, fixture.token, callback(query.Get("state"), "the-code"))
	require.NoError(t, err)
	assert.Equal(t, "/hello", next)
	assert.Equal(t, "the-code", fixture.provider.code)
	assert.Equal(t, fixture.provider.identity.Claims, identity.Claims)

	ses, err := fixture.storage.GetByRawToken(ctx, fixture.token)
	require.NoError(t, err)
	require.True(t, ses.Authenticated())
	assert.Equal(t, fixture.provider.identity.Claims, ses.Identity.Claims)
	assert.Equal(t, "access-token", ses.Identity.AccessToken)
}

func TestFlowCompleteReplacesIdentity(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t, Options{})

	query := fixture.initiate(t, "")
	_, _, err := fixture.flow.Complete(ctx, fixture.token, callback(query.Get("state"), "code"))
	require.NoError(t, err)

	fixture.provider.identity = &session.Identity{Claims: map[string]any{"sub": "other"}, AccessToken: "second"}
	query = fixture.initiate(t, "")
	_, _, err = fixture.flow.Complete(ctx, fixture.token, callback(query.Get("state"), "code"))
	require.NoError(t, err)

	ses, err := fixture.storage.GetByRawToken(ctx, fixture.token)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sub": "other"}, ses.Identity.Claims)
	assert.Equal(t, "second", ses.Identity.AccessToken)
}

func TestFlowStateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t, Options{})
	query := fixture.initiate(t, "")

	_, _, err := fixture.flow.Complete(ctx, fixture.token, callback(query.Get("state"), "code"))
	require.NoError(t, err)

	_, _, err = fixture.flow.Complete(ctx, fixture.token, callback(query.Get("state"), "code"))
	assert.ErrorIs(t, err, ErrStateMismatch)
	assert.Equal(t, 1, fixture.provider.exchanges)
}

func TestFlowUnknownState(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t, Options{})
	fixture.initiate(t, "")

	for name, params := range map[string]url.Values{
		"unknown": callback("not-issued", "code"),
		"missing": {"code": {"code"}},
	} {
		t.Run(name, func(t *testing.T) {
			identity, _, err := fixture.flow.Complete(ctx, fixture.token, params)
			assert.ErrorIs(t, err, ErrStateMismatch)
			assert.Nil(t, identity)
		})
	}
	assert.Zero(t, fixture.provider.exchanges)

	ses, err := fixture.storage.GetByRawToken(ctx, fixture.token)
	require.NoError(t, err)
	assert.False(t, ses.Authenticated(), "a state mismatch must never fall through to an identity")
}

func TestFlowStateOfOtherSession(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t, Options{})
	query := fixture.initiate(t, "")

	otherToken, _, err := fixture.storage.Create(ctx, time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)
	_, _, err = fixture.flow.Complete(ctx, otherToken, callback(query.Get("state"), "code"))
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestFlowProviderDenied(t *testing.T) {
	ctx := context.Background()

	t.Run("error parameter", func(t *testing.T) {
		fixture := newFlowFixture(t, Options{})
		query := fixture.initiate(t, "")
		params := url.Values{
			"state":             {query.Get("state")},
			"error":             {"access_denied"},
			"error_description": {"user cancelled"},
		}
		_, _, err := fixture.flow.Complete(ctx, fixture.token, params)
		assert.ErrorIs(t, err, ErrProviderDenied)
		assert.ErrorContains(t, err, "access_denied")
		assert.Zero(t, fixture.provider.exchanges)

		_, _, err = fixture.flow.Complete(ctx, fixture.token, callback(query.Get("state"), "code"))
		assert.ErrorIs(t, err, ErrStateMismatch, "a denied state must not be reusable")
	})

	t.Run("missing code", func(t *testing.T) {
		fixture := newFlowFixture(t, Options{})
		query := fixture.initiate(t, "")
		_, _, err := fixture.flow.Complete(ctx, fixture.token, url.Values{"state": {query.Get("state")}})
		assert.ErrorIs(t, err, ErrProviderDenied)
	})

	t.Run("no identity", func(t *testing.T) {
		fixture := newFlowFixture(t, Options{})
		fixture.provider.err = ErrNoIdentity
		fixture.provider.identity = nil
		query := fixture.initiate(t, "")
		_, _, err := fixture.flow.Complete(ctx, fixture.token, callback(query.Get("state"), "code"))
		assert.ErrorIs(t, err, ErrProviderDenied)
	})

	t.Run("nil identity", func(t *testing.T) {
		fixture := newFlowFixture(t, Options{})
		fixture.provider.identity = nil
		query := fixture.initiate(t, "")
		_, _, err := fixture.flow.Complete(ctx, fixture.token, callback(query.Get("state"), "code"))
		assert.ErrorIs(t, err, ErrProviderDenied)
	})
}

func TestFlowLoginFailure(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t, Options{})
	fixture.provider.err = errors.New("token endpoint unreachable")
	query := fixture.initiate(t, "")

	_, _, err := fixture.flow.Complete(ctx, fixture.token, callback(query.Get("state"), "code"))
	assert.ErrorIs(t, err, ErrLoginFailure)
	assert.NotErrorIs(t, err, ErrProviderDenied)

	ses, err := fixture.storage.GetByRawToken(ctx, fixture.token)
	require.NoError(t, err)
	assert.False(t, ses.Authenticated())
}

func TestFlowExpiredState(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t, Options{StateLifetime: time.Minute})
	fixture.flow.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	query := fixture.initiate(t, "")

	_, _, err := fixture.flow.Complete(ctx, fixture.token, callback(query.Get("state"), "code"))
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestIsSafeReturnPath(t *testing.T) {
	assert.True(t, IsSafeReturnPath("/me"))
	assert.True(t, IsSafeReturnPath("/"))
	assert.False(t, IsSafeReturnPath(""))
	assert.False(t, IsSafeReturnPath("me"))
	assert.False(t, IsSafeReturnPath("//evil.example.com"))
	assert.False(t, IsSafeReturnPath("http://evil.example.com"))
	assert.False(t, IsSafeReturnPath("javascript:alert(1)"))
}
