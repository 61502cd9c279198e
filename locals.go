package pantherpay

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pantherpay/pantherpay/identity"
	"github.com/pantherpay/pantherpay/session"
	"github.com/pantherpay/pantherpay/settings"
)

// Locals is the per-request bag of derived display values, assembled
// exactly once after session and identity resolution and never
// persisted beyond the request.
type Locals struct {
	BrandName       string
	User            *identity.Identity
	CSRFToken       string
	Flashes         []session.Flash
	Settings        settings.Settings
	ForceDark       bool
	HideThemeToggle bool
	IsUserArea      bool
}

type localsKey struct{}
type flashKey struct{}
type userKey struct{}

// LocalsFrom returns the display locals for the current web request.
func LocalsFrom(ctx context.Context) (Locals, bool) {
	locals, ok := ctx.Value(localsKey{}).(Locals)
	return locals, ok
}

// UserFrom returns the identity resolved for the current web request,
// if the session is authenticated.
func UserFrom(ctx context.Context) (*identity.Identity, bool) {
	user, ok := ctx.Value(userKey{}).(*identity.Identity)
	return user, ok && user != nil
}

// drainFlashes moves queued one-shot notifications from the session
// into the request context, clearing them so each message renders
// exactly once even across reloads.
func (g *Gateway) drainFlashes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFrom(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		flashes := sess.DrainFlashes()
		next.ServeHTTP(w, r.WithContext(contextWith(r.Context(), flashKey{}, flashes)))
	})
}

// resolveIdentity resolves the session into a concrete identity via
// the external capability. It never checks credentials itself.
func (g *Gateway) resolveIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFrom(r.Context())
		if g.identity != nil && sess != nil {
			user, err := g.identity.Resolve(sess)
			if err != nil {
				Abort(fmt.Errorf("resolve identity: %w", err))
			}
			if user != nil {
				r = r.WithContext(contextWith(r.Context(), userKey{}, user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// injectLocals assembles the branding snapshot and display flags into
// the request context, right before dispatch.
func (g *Gateway) injectLocals(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := g.settings.Settings()
		if err != nil {
			Abort(fmt.Errorf("load settings: %w", err))
		}
		locals := Locals{
			BrandName: "Panther Pay",
			Settings:  snapshot,
		}
		if sess, ok := SessionFrom(r.Context()); ok {
			locals.CSRFToken = sess.CSRFToken
		}
		if user, ok := UserFrom(r.Context()); ok {
			locals.User = user
		}
		if flashes, ok := r.Context().Value(flashKey{}).([]session.Flash); ok {
			locals.Flashes = flashes
		}
		locals.IsUserArea = strings.HasPrefix(r.URL.Path, "/user")
		next.ServeHTTP(w, r.WithContext(contextWith(r.Context(), localsKey{}, locals)))
	})
}
