package session

// StateToken represents the anti-forgery value round-tripped through the authorization redirect
type StateToken struct {
	Value string

	// ReturnPath is the same-origin path to redirect to after the login flow completed. Empty if none was requested.
	ReturnPath string
}

// Authorization represents one pending authorization request of a session.
// It is keyed by the session token and the state value and may only be consumed once.
type Authorization struct {
	SessionToken string
	State        string
	ReturnPath   string

	// Nonce is the OIDC nonce the ID token has to carry
	Nonce string

	// Verifier is the PKCE code verifier; empty if PKCE is not used
	Verifier string

	Expires int64
}

// StateToken returns the state token part of the authorization
func (authorization *Authorization) StateToken() StateToken {
	return StateToken{
		Value:      authorization.State,
		ReturnPath: authorization.ReturnPath,
	}
}
