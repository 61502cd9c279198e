// Package session holds the server-side web session model and its
// durable stores. Sessions are keyed by an opaque id carried in a
// cookie and hold the per-user CSRF secret and one-shot flash messages.
package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when no live session exists for an id.
var ErrNotFound = errors.New("session not found")

// Flash kinds understood by the page templates.
const (
	FlashError   = "error"
	FlashSuccess = "success"
	FlashInfo    = "info"
)

// Flash is a one-shot notification shown on the next rendered page only.
type Flash struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Session is the server-held record for one browser session.
// It is mutated only within a single request's lifetime.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId,omitempty"`
	CSRFToken string    `json:"csrfToken"`
	Flashes   []Flash   `json:"flashes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// New creates an anonymous session with a fresh id and CSRF token.
func New(ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		CSRFToken: NewCSRFToken(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the session is past its TTL.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// LoggedIn reports whether the session is bound to a user.
func (s *Session) LoggedIn() bool {
	return s.UserID != 0
}

// AddFlash enqueues a one-shot notification for the next page render.
func (s *Session) AddFlash(kind, text string) {
	s.Flashes = append(s.Flashes, Flash{Kind: kind, Text: text})
}

// DrainFlashes returns all queued flashes and clears the queue,
// so each message is rendered exactly once.
func (s *Session) DrainFlashes() []Flash {
	flashes := s.Flashes
	s.Flashes = nil
	return flashes
}

// EnsureCSRFToken regenerates the CSRF token if it is absent.
// It returns the current token.
func (s *Session) EnsureCSRFToken() string {
	if s.CSRFToken == "" {
		s.CSRFToken = NewCSRFToken()
	}
	return s.CSRFToken
}

// CheckCSRF compares a submitted token against the session token
// in constant time.
func (s *Session) CheckCSRF(token string) bool {
	if s.CSRFToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.CSRFToken), []byte(token)) == 1
}

// NewCSRFToken returns a new random per-session CSRF secret.
func NewCSRFToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
