// Package identity resolves sessions and API tokens into concrete
// user identities. It never performs credential checks itself; those
// happen behind the Verifier boundary on the login route only.
package identity

import (
	"database/sql"
	"errors"
	"strconv"

	_ "github.com/glebarez/go-sqlite"

	"github.com/pantherpay/pantherpay/session"
)

// ErrAuthFailed is returned when presented credentials are invalid.
var ErrAuthFailed = errors.New("authentication failed")

// Identity is a resolved user.
type Identity struct {
	ID    int64
	Email string
	Name  string
	Role  string
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == "admin"
}

// Resolver resolves a session into an identity.
// A nil identity with a nil error means the session is anonymous.
type Resolver interface {
	Resolve(s *session.Session) (*Identity, error)
}

// Verifier checks credentials and returns the matching identity.
// The verification strategy itself is outside the gateway.
type Verifier interface {
	Verify(email, password string) (*Identity, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(s *session.Session) (*Identity, error)

func (f ResolverFunc) Resolve(s *session.Session) (*Identity, error) {
	return f(s)
}

type SQLiteResolver struct {
	db *sql.DB
}

// NewSQLiteResolver resolves sessions against a users table in the
// given db file. If the file name is empty, a new in-memory db is opened.
func NewSQLiteResolver(filename string) SQLiteResolver {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		email TEXT UNIQUE,
		name TEXT,
		role TEXT DEFAULT 'user'
	)`)
	if err != nil {
		panic(err)
	}
	return SQLiteResolver{db: db}
}

func (r SQLiteResolver) Resolve(s *session.Session) (*Identity, error) {
	if s == nil || !s.LoggedIn() {
		return nil, nil
	}
	var id Identity
	err := r.db.QueryRow("SELECT id, email, name, role FROM users WHERE id = ?", s.UserID).
		Scan(&id.ID, &id.Email, &id.Name, &id.Role)
	if err == sql.ErrNoRows {
		// stale session referencing a deleted user
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// AddUser inserts a user record, returning its id. Used for seeding.
func (r SQLiteResolver) AddUser(email, name, role string) (int64, error) {
	res, err := r.db.Exec("INSERT INTO users (email, name, role) VALUES (?, ?, ?)", email, name, role)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// EnsureUser inserts the user if missing and returns its identity.
func (r SQLiteResolver) EnsureUser(email, name, role string) (*Identity, error) {
	if _, err := r.db.Exec(
		"INSERT OR IGNORE INTO users (email, name, role) VALUES (?, ?, ?)",
		email, name, role,
	); err != nil {
		return nil, err
	}
	var id Identity
	err := r.db.QueryRow("SELECT id, email, name, role FROM users WHERE email = ?", email).
		Scan(&id.ID, &id.Email, &id.Name, &id.Role)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
