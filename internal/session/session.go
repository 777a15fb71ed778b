package session

import "github.com/google/uuid"

// Session represents a browser session.
// A session is looked up by its token (stored as a hash); the ID is a public identifier that is safe to log.
type Session struct {
	Token    string
	ID       uuid.UUID
	Identity *Identity
	Expires  int64
}

// Authenticated reports whether an identity has been committed to the session
func (ses *Session) Authenticated() bool {
	return ses != nil && ses.Identity != nil
}

// Identity represents the authenticated principal attached to a session after a successful login callback
type Identity struct {
	Claims      map[string]any
	AccessToken string
}

// Subject returns the 'sub' claim of the identity
func (identity *Identity) Subject() string {
	return identity.StringClaim("sub")
}

// Name returns the 'name' claim of the identity
func (identity *Identity) Name() string {
	return identity.StringClaim("name")
}

// StringClaim returns the value of a string claim or an empty string if it is missing or of another type
func (identity *Identity) StringClaim(name string) string {
	val, _ := identity.Claims[name].(string)
	return val
}
