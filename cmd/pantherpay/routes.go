package main

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	pantherpay "github.com/pantherpay/pantherpay"
	"github.com/pantherpay/pantherpay/identity"
	"github.com/pantherpay/pantherpay/session"
)

// routes holds the business handlers mounted behind the gateway.
// They stand in for the full top-up route surface; the gateway only
// sees them as http.Handlers keyed by prefix.
type routes struct {
	resolver identity.SQLiteResolver
	tokens   *identity.TokenManager
	admin    *identity.Identity
	secrets  Secrets
}

func newRoutes(resolver identity.SQLiteResolver, tokens *identity.TokenManager, admin *identity.Identity, secrets Secrets) *routes {
	return &routes{resolver: resolver, tokens: tokens, admin: admin, secrets: secrets}
}

func (rt *routes) web() map[string]http.Handler {
	login := chi.NewRouter()
	login.Get("/", rt.loginPage)
	login.Post("/", rt.login)

	logout := chi.NewRouter()
	logout.Post("/", rt.logout)

	user := chi.NewRouter()
	user.Get("/dashboard", rt.dashboard)

	return map[string]http.Handler{
		"/login":  login,
		"/logout": logout,
		"/user":   user,
	}
}

func (rt *routes) api() map[string]http.Handler {
	token := chi.NewRouter()
	token.Post("/", rt.issueToken)

	admin := chi.NewRouter()
	admin.Use(rt.tokens.Guard(true))
	admin.Get("/stats", rt.adminStats)

	return map[string]http.Handler{
		"/api/token": token,
		"/api/admin": admin,
	}
}

func (rt *routes) loginPage(w http.ResponseWriter, r *http.Request) {
	locals, _ := pantherpay.LocalsFrom(r.Context())
	flashes := ""
	for _, flash := range locals.Flashes {
		flashes += fmt.Sprintf(`<p class="flash-%s">%s</p>`, flash.Kind, flash.Text)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, loginPage, locals.BrandName, flashes, pantherpay.FormFieldCSRF, locals.CSRFToken)
}

// login delegates credential checking to the verification capability;
// here that capability is environment-seeded admin credentials.
func (rt *routes) login(w http.ResponseWriter, r *http.Request) {
	sess, _ := pantherpay.SessionFrom(r.Context())
	email := r.PostForm.Get("email")
	password := r.PostForm.Get("password")
	if rt.admin == nil || !rt.checkCredentials(email, password) {
		sess.AddFlash(session.FlashError, "Invalid email or password")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	sess.UserID = rt.admin.ID
	sess.AddFlash(session.FlashSuccess, "Welcome back")
	http.Redirect(w, r, "/user/dashboard", http.StatusFound)
}

func (rt *routes) checkCredentials(email, password string) bool {
	emailOk := subtle.ConstantTimeCompare([]byte(email), []byte(rt.secrets.AdminEmail)) == 1
	passwordOk := subtle.ConstantTimeCompare([]byte(password), []byte(rt.secrets.AdminPassword)) == 1
	return emailOk && passwordOk
}

func (rt *routes) logout(w http.ResponseWriter, r *http.Request) {
	pantherpay.DestroySession(r)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (rt *routes) dashboard(w http.ResponseWriter, r *http.Request) {
	locals, _ := pantherpay.LocalsFrom(r.Context())
	if locals.User == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, dashboardPage, locals.BrandName, locals.User.Name, locals.Settings.CurrencySymbol)
}

// issueToken exchanges credentials for the stateless bearer token the
// API branch authenticates with.
func (rt *routes) issueToken(w http.ResponseWriter, r *http.Request) {
	body, ok := pantherpay.JSONBody(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "json body required"})
		return
	}
	email, _ := body["email"].(string)
	password, _ := body["password"].(string)
	if rt.admin == nil || !rt.checkCredentials(email, password) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	token, err := rt.tokens.Issue(rt.admin)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not issue token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (rt *routes) adminStats(w http.ResponseWriter, r *http.Request) {
	user, _ := identity.FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"admin":       user.Email,
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

const loginPage = `<!doctype html>
<html>
<head><title>Login - %s</title></head>
<body>
%s
<form method="post" action="/login">
<input type="hidden" name="%s" value="%s">
<input name="email" type="email" placeholder="Email" required>
<input name="password" type="password" placeholder="Password" required>
<button type="submit">Log in</button>
</form>
</body>
</html>
`

const dashboardPage = `<!doctype html>
<html>
<head><title>Dashboard - %s</title></head>
<body><h1>Welcome, %s</h1><p>Balance currency: %s</p></body>
</html>
`
