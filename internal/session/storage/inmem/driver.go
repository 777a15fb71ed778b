package inmem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"github.com/Banno/consumer-api-openid-connect-example/internal/random"
	"github.com/Banno/consumer-api-openid-connect-example/internal/session"
	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"time"
)

var tokenLength = 64

const (
	tableSessions       = "sessions"
	tableAuthorizations = "authorizations"
)

var dbSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableSessions: {
			Name: tableSessions,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:         "id",
					Unique:       true,
					AllowMissing: false,
					Indexer:      &memdb.StringFieldIndex{Field: "Token"},
				},
			},
		},
		tableAuthorizations: {
			Name: tableAuthorizations,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:         "id",
					Unique:       true,
					AllowMissing: false,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "SessionToken"},
							&memdb.StringFieldIndex{Field: "State"},
						},
					},
				},
				"session": {
					Name:         "session",
					Unique:       false,
					AllowMissing: false,
					Indexer:      &memdb.StringFieldIndex{Field: "SessionToken"},
				},
			},
		},
	},
}

// Driver represents the in-memory session storage driver built using hashicorp/go-memdb.
// Every mutation runs in its own write transaction, so consuming an authorization is atomic even if the same session
// issues concurrent callbacks.
type Driver struct {
	db  *memdb.MemDB
	now func() time.Time
}

var _ session.Storage = (*Driver)(nil)

// New creates a new empty in-memory session storage driver
func New() (*Driver, error) {
	db, err := memdb.NewMemDB(dbSchema)
	if err != nil {
		return nil, err
	}
	return &Driver{db: db, now: time.Now}, nil
}

// GetByRawToken retrieves a session by its raw (prior hashing) token
func (driver *Driver) GetByRawToken(_ context.Context, rawToken string) (*session.Session, error) {
	txn := driver.db.Txn(false)
	obj, err := txn.First(tableSessions, "id", hashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}

	ses := obj.(*session.Session)
	if ses.Expires <= driver.now().Unix() {
		return nil, nil
	}
	return ses, nil
}

// Create creates a new anonymous session
func (driver *Driver) Create(_ context.Context, expires int64) (string, *session.Session, error) {
	rawToken := random.String(tokenLength, random.CharsetTokens)

	ses := &session.Session{
		Token:   hashToken(rawToken),
		ID:      uuid.New(),
		Expires: expires,
	}

	txn := driver.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tableSessions, ses); err != nil {
		return "", nil, err
	}
	txn.Commit()

	return rawToken, ses, nil
}

// SetIdentity commits an identity to a session, replacing any prior one
func (driver *Driver) SetIdentity(_ context.Context, rawToken string, identity *session.Identity) error {
	txn := driver.db.Txn(true)
	defer txn.Abort()

	obj, err := txn.First(tableSessions, "id", hashToken(rawToken))
	if err != nil {
		return err
	}
	if obj == nil {
		return session.ErrNotFound
	}

	// Stored objects must not be mutated in place
	updated := *obj.(*session.Session)
	updated.Identity = identity
	if err := txn.Insert(tableSessions, &updated); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// PutAuthorization stores a pending authorization request
func (driver *Driver) PutAuthorization(_ context.Context, rawToken string, authorization *session.Authorization) error {
	token := hashToken(rawToken)

	txn := driver.db.Txn(true)
	defer txn.Abort()

	obj, err := txn.First(tableSessions, "id", token)
	if err != nil {
		return err
	}
	if obj == nil {
		return session.ErrNotFound
	}

	stored := *authorization
	stored.SessionToken = token
	if err := txn.Insert(tableAuthorizations, &stored); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// ConsumeAuthorization atomically looks up and deletes a pending authorization request
func (driver *Driver) ConsumeAuthorization(_ context.Context, rawToken, state string) (*session.Authorization, error) {
	if state == "" {
		return nil, nil
	}

	txn := driver.db.Txn(true)
	defer txn.Abort()

	obj, err := txn.First(tableAuthorizations, "id", hashToken(rawToken), state)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	if err := txn.Delete(tableAuthorizations, obj); err != nil {
		return nil, err
	}
	txn.Commit()

	authorization := obj.(*session.Authorization)
	if authorization.Expires <= driver.now().Unix() {
		return nil, nil
	}
	return authorization, nil
}

// Terminate terminates a session together with its pending authorization requests
func (driver *Driver) Terminate(_ context.Context, rawToken string) error {
	token := hashToken(rawToken)

	txn := driver.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(tableSessions, "id", token); err != nil {
		return err
	}
	if _, err := txn.DeleteAll(tableAuthorizations, "session", token); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// TerminateExpired terminates all sessions and pending authorization requests that are expired.
// The returned amount only counts sessions.
func (driver *Driver) TerminateExpired(_ context.Context) (int, error) {
	now := driver.now().Unix()

	txn := driver.db.Txn(true)
	defer txn.Abort()

	it, err := txn.Get(tableSessions, "id")
	if err != nil {
		return 0, err
	}
	var expired []*session.Session
	for obj := it.Next(); obj != nil; obj = it.Next() {
		if ses := obj.(*session.Session); ses.Expires <= now {
			expired = append(expired, ses)
		}
	}
	for _, ses := range expired {
		if err := txn.Delete(tableSessions, ses); err != nil {
			return 0, err
		}
		if _, err := txn.DeleteAll(tableAuthorizations, "session", ses.Token); err != nil {
			return 0, err
		}
	}

	it, err = txn.Get(tableAuthorizations, "session")
	if err != nil {
		return 0, err
	}
	var orphaned []*session.Authorization
	for obj := it.Next(); obj != nil; obj = it.Next() {
		if authorization := obj.(*session.Authorization); authorization.Expires <= now {
			orphaned = append(orphaned, authorization)
		}
	}
	for _, authorization := range orphaned {
		if err := txn.Delete(tableAuthorizations, authorization); err != nil {
			return 0, err
		}
	}

	txn.Commit()
	return len(expired), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
