package session

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func testStores(t *testing.T) map[string]Store {
	return map[string]Store{
		"mem":    NewMemStore(),
		"sqlite": NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db")),
	}
}

func TestStoreRoundtrip(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := New(time.Hour)
			s.UserID = 7
			s.AddFlash(FlashInfo, "hello")
			if err := store.Save(s); err != nil {
				t.Fatal(err)
			}

			loaded, err := store.Load(s.ID)
			if err != nil {
				t.Fatal(err)
			}
			if loaded.UserID != 7 {
				t.Fatalf("user id %d", loaded.UserID)
			}
			if loaded.CSRFToken != s.CSRFToken {
				t.Fatal("CSRF token did not survive")
			}
			if len(loaded.Flashes) != 1 || loaded.Flashes[0].Text != "hello" {
				t.Fatalf("flashes %+v", loaded.Flashes)
			}
		})
	}
}

func TestStoreMissingSession(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Load("nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("error %v, expected ErrNotFound", err)
			}
		})
	}
}

func TestStoreExpiredSession(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := New(-time.Minute)
			if err := store.Save(s); err != nil {
				t.Fatal(err)
			}
			if _, err := store.Load(s.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("error %v, expected ErrNotFound for expired session", err)
			}
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := New(time.Hour)
			if err := store.Save(s); err != nil {
				t.Fatal(err)
			}
			if err := store.Delete(s.ID); err != nil {
				t.Fatal(err)
			}
			if _, err := store.Load(s.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("error %v after delete", err)
			}
			// deleting again is a no-op
			if err := store.Delete(s.ID); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestStoreOverwrite(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := New(time.Hour)
			if err := store.Save(s); err != nil {
				t.Fatal(err)
			}
			s.UserID = 9
			if err := store.Save(s); err != nil {
				t.Fatal(err)
			}
			loaded, err := store.Load(s.ID)
			if err != nil {
				t.Fatal(err)
			}
			if loaded.UserID != 9 {
				t.Fatalf("user id %d after overwrite", loaded.UserID)
			}
		})
	}
}

func TestMemStoreClonesOnLoad(t *testing.T) {
	store := NewMemStore()
	s := New(time.Hour)
	if err := store.Save(s); err != nil {
		t.Fatal(err)
	}

	loaded, _ := store.Load(s.ID)
	loaded.UserID = 99

	again, _ := store.Load(s.ID)
	if again.UserID == 99 {
		t.Fatal("mutating a loaded session leaked into the store")
	}
}
