package pantherpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/pantherpay/pantherpay/session"
)

// CookieName is the web session cookie.
const CookieName = "pp_session"

type sessionKey struct{}

// SessionFrom returns the session resolved for the current web request.
func SessionFrom(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*session.Session)
	return s, ok
}

// DestroySession marks the current session for deletion at the end of
// the request. Used by the logout route.
func DestroySession(r *http.Request) {
	if state := stateFrom(r); state != nil {
		state.destroy = true
	}
}

// resolveSession loads or creates the session keyed by the signed
// session cookie and persists any mutation back to the store when the
// request ends, even if a later filter or the handler fails.
func (g *Gateway) resolveSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := g.loadSession(r)
		if sess == nil {
			sess = session.New(g.sessionTTL)
			g.setSessionCookie(w, sess.ID)
		}
		state := stateFrom(r)
		if state != nil {
			state.session = sess
		}
		defer func() {
			if state != nil && state.destroy {
				if err := g.sessions.Delete(sess.ID); err != nil {
					g.log.Error().Err(err).Msg("Could not delete session")
				}
				g.clearSessionCookie(w)
				return
			}
			if err := g.sessions.Save(sess); err != nil {
				// degraded: the user may lose a flash message
				g.log.Error().Err(err).Str("session", sess.ID).Msg("Could not save session")
			}
		}()
		next.ServeHTTP(w, r.WithContext(contextWith(r.Context(), sessionKey{}, sess)))
	})
}

func (g *Gateway) loadSession(r *http.Request) *session.Session {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	id, ok := g.verifyCookie(cookie.Value)
	if !ok {
		return nil
	}
	sess, err := g.sessions.Load(id)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			g.log.Error().Err(err).Msg("Could not load session")
		}
		return nil
	}
	return sess
}

func (g *Gateway) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    g.signCookie(id),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(g.sessionTTL.Seconds()),
	})
}

func (g *Gateway) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// signCookie binds the session id to the gateway secret so a guessed
// id is not enough to adopt a session.
func (g *Gateway) signCookie(id string) string {
	return id + "." + cookieSignature(g.secret, id)
}

func (g *Gateway) verifyCookie(value string) (string, bool) {
	sepIdx := strings.LastIndex(value, ".")
	if sepIdx < 0 {
		return "", false
	}
	id, signature := value[:sepIdx], value[sepIdx+1:]
	if !hmac.Equal([]byte(signature), []byte(cookieSignature(g.secret, id))) {
		return "", false
	}
	return id, true
}

func cookieSignature(secret, id string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
