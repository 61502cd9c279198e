package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testAdmin = &Identity{ID: 1, Email: "admin@x.test", Name: "Admin", Role: "admin"}

func TestTokenRoundtrip(t *testing.T) {
	manager := NewTokenManager("secret", time.Hour)
	token, err := manager.Issue(testAdmin)
	if err != nil {
		t.Fatal(err)
	}

	id, err := manager.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if id.ID != 1 || id.Email != "admin@x.test" || id.Role != "admin" {
		t.Fatalf("verified identity %+v", id)
	}
}

func TestTokenWrongKeyRejected(t *testing.T) {
	token, err := NewTokenManager("secret", time.Hour).Issue(testAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenManager("other", time.Hour).Verify(token); err != ErrAuthFailed {
		t.Fatalf("error %v, expected ErrAuthFailed", err)
	}
}

func TestTokenExpiredRejected(t *testing.T) {
	manager := NewTokenManager("secret", -time.Minute)
	token, err := manager.Issue(testAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Verify(token); err != ErrAuthFailed {
		t.Fatalf("error %v, expected ErrAuthFailed", err)
	}
}

func TestGuard(t *testing.T) {
	manager := NewTokenManager("secret", time.Hour)
	calls := 0
	handler := manager.Guard(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		id, ok := FromContext(r.Context())
		if !ok || id.Email != "admin@x.test" {
			t.Errorf("identity in context: %+v", id)
		}
	}))

	// no token
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/stats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d without token", rec.Code)
	}

	// garbage token
	req := httptest.NewRequest("GET", "/stats", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d with garbage token", rec.Code)
	}

	// valid token, wrong role
	userToken, err := manager.Issue(&Identity{ID: 2, Email: "user@x.test", Role: "user"})
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest("GET", "/stats", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d with user token on admin route", rec.Code)
	}
	if calls != 0 {
		t.Fatal("handler reached without authorization")
	}

	// valid admin token
	adminToken, err := manager.Issue(testAdmin)
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest("GET", "/stats", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d with admin token", rec.Code)
	}
	if calls != 1 {
		t.Fatalf("handler called %d times", calls)
	}
}
