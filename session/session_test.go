package session

import (
	"testing"
	"time"
)

func TestNewSessionHasTokenAndExpiry(t *testing.T) {
	s := New(time.Hour)
	if s.ID == "" {
		t.Fatal("no session id")
	}
	if s.CSRFToken == "" {
		t.Fatal("no CSRF token")
	}
	if s.LoggedIn() {
		t.Fatal("fresh session is logged in")
	}
	if s.Expired() {
		t.Fatal("fresh session is expired")
	}
	if got := s.ExpiresAt.Sub(s.CreatedAt); got != time.Hour {
		t.Fatalf("lifetime %v", got)
	}
}

func TestDrainFlashes(t *testing.T) {
	s := New(time.Hour)
	s.AddFlash(FlashError, "bad")
	s.AddFlash(FlashSuccess, "good")

	flashes := s.DrainFlashes()
	if len(flashes) != 2 {
		t.Fatalf("drained %d flashes", len(flashes))
	}
	if flashes[0] != (Flash{Kind: FlashError, Text: "bad"}) {
		t.Fatalf("first flash %+v", flashes[0])
	}
	if len(s.DrainFlashes()) != 0 {
		t.Fatal("second drain was not empty")
	}
}

func TestCheckCSRF(t *testing.T) {
	s := New(time.Hour)
	if !s.CheckCSRF(s.CSRFToken) {
		t.Fatal("own token rejected")
	}
	if s.CheckCSRF("") {
		t.Fatal("empty token accepted")
	}
	if s.CheckCSRF(NewCSRFToken()) {
		t.Fatal("foreign token accepted")
	}
}

func TestEnsureCSRFToken(t *testing.T) {
	s := New(time.Hour)
	token := s.CSRFToken
	s.EnsureCSRFToken()
	if s.CSRFToken != token {
		t.Fatal("existing token was replaced")
	}
	s.CSRFToken = ""
	s.EnsureCSRFToken()
	if s.CSRFToken == "" {
		t.Fatal("missing token was not regenerated")
	}
}
