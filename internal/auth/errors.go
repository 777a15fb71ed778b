package auth

import "errors"

var (
	// ErrProviderDenied is returned when the identity provider reported an error or returned no identity
	ErrProviderDenied = errors.New("the identity provider denied the login")

	// ErrStateMismatch is returned when a callback carries no state or a state that is unknown to the session
	ErrStateMismatch = errors.New("the login state is unknown or has already been used")

	// ErrLoginFailure is returned when the authorization code exchange itself failed
	ErrLoginFailure = errors.New("the login callback could not be completed")

	// ErrNoIdentity is returned by a Provider whose exchange succeeded without yielding a verified identity
	ErrNoIdentity = errors.New("the identity provider returned no identity")
)
