package identity

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pantherpay/pantherpay/session"
)

func TestResolveAnonymousSession(t *testing.T) {
	resolver := NewSQLiteResolver(filepath.Join(t.TempDir(), "users.db"))
	id, err := resolver.Resolve(session.New(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if id != nil {
		t.Fatalf("anonymous session resolved to %+v", id)
	}
}

func TestResolveLoggedInSession(t *testing.T) {
	resolver := NewSQLiteResolver(filepath.Join(t.TempDir(), "users.db"))
	userID, err := resolver.AddUser("admin@x.test", "Admin", "admin")
	if err != nil {
		t.Fatal(err)
	}

	sess := session.New(time.Hour)
	sess.UserID = userID
	id, err := resolver.Resolve(sess)
	if err != nil {
		t.Fatal(err)
	}
	if id == nil || id.Email != "admin@x.test" {
		t.Fatalf("resolved %+v", id)
	}
	if !id.IsAdmin() {
		t.Fatal("admin role not resolved")
	}
}

func TestResolveStaleSession(t *testing.T) {
	resolver := NewSQLiteResolver(filepath.Join(t.TempDir(), "users.db"))
	sess := session.New(time.Hour)
	sess.UserID = 12345
	id, err := resolver.Resolve(sess)
	if err != nil {
		t.Fatal(err)
	}
	if id != nil {
		t.Fatalf("stale session resolved to %+v", id)
	}
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	resolver := NewSQLiteResolver(filepath.Join(t.TempDir(), "users.db"))
	first, err := resolver.EnsureUser("admin@x.test", "Admin", "admin")
	if err != nil {
		t.Fatal(err)
	}
	second, err := resolver.EnsureUser("admin@x.test", "Admin", "admin")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids diverged: %d and %d", first.ID, second.ID)
	}
}
