package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an operation references a session that does not exist (anymore)
var ErrNotFound = errors.New("session not found")

// Storage defines the session storage API
type Storage interface {
	// GetByRawToken retrieves a session by its raw (prior hashing) token.
	// Expired sessions are reported as non-existent (nil, nil).
	GetByRawToken(ctx context.Context, rawToken string) (*Session, error)

	// Create creates a new anonymous session and returns its raw token
	Create(ctx context.Context, expires int64) (string, *Session, error)

	// SetIdentity commits an identity to a session, replacing any prior one
	SetIdentity(ctx context.Context, rawToken string, identity *Identity) error

	// PutAuthorization stores a pending authorization request under the session with the given raw token
	PutAuthorization(ctx context.Context, rawToken string, authorization *Authorization) error

	// ConsumeAuthorization atomically looks up and deletes the pending authorization request of a session by its state
	// value. It returns nil if no unexpired authorization with that state exists for the session.
	ConsumeAuthorization(ctx context.Context, rawToken, state string) (*Authorization, error)

	// Terminate terminates a session together with its pending authorization requests
	Terminate(ctx context.Context, rawToken string) error

	// TerminateExpired terminates all sessions and pending authorization requests that are expired
	TerminateExpired(ctx context.Context) (int, error)
}
