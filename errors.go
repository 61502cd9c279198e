package pantherpay

import (
	"errors"
	"fmt"
	"net/http"

	tee "github.com/pantherpay/pantherpay/pkg/response-tee"
	"github.com/pantherpay/pantherpay/session"
)

// Request-scoped failure conditions. All of them are recoverable: they
// become a response at the error boundary and never terminate the process.
var (
	ErrMalformedBody = errors.New("malformed request body")
	ErrCSRFMismatch  = errors.New("invalid CSRF token")
	ErrAuthRequired  = errors.New("authentication required")
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, ErrCSRFMismatch):
		return http.StatusForbidden
	case errors.Is(err, ErrAuthRequired):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// abortError rides a panic from a filter or handler to the boundary.
type abortError struct {
	err error
}

// Abort stops the current request and surfaces err at the error
// boundary. Business handlers use it the way filters do.
func Abort(err error) {
	panic(abortError{err: err})
}

// webState is a per-request carrier the boundary shares with the inner
// filters, so errors raised before or after session resolution can
// still reach the session for flash reporting.
type webState struct {
	session *session.Session
	destroy bool
}

type webStateKey struct{}

func stateFrom(r *http.Request) *webState {
	state, _ := r.Context().Value(webStateKey{}).(*webState)
	return state
}

// errorBoundary buffers the downstream response and converts any error
// or panic into a rendered response. It is the single point where
// unrecovered failures become user-visible.
func (g *Gateway) errorBoundary(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := &webState{}
		r = r.WithContext(contextWith(r.Context(), webStateKey{}, state))
		saver := tee.NewResponseSaver(nil)
		err := func() (err error) {
			defer func() {
				if recovered := recover(); recovered != nil {
					if abort, ok := recovered.(abortError); ok {
						err = abort.err
						return
					}
					err = fmt.Errorf("panic: %v", recovered)
				}
			}()
			next.ServeHTTP(saver, r)
			return nil
		}()
		if err == nil {
			if copyErr := saver.CopyTo(w); copyErr != nil {
				g.log.Error().Err(copyErr).Msg("Error writing to client")
			}
			return
		}
		// keep any session cookie issued before the failure
		for _, cookie := range saver.Header().Values("Set-Cookie") {
			w.Header().Add("Set-Cookie", cookie)
		}
		g.renderError(w, r, state, err)
	})
}

func (g *Gateway) renderError(w http.ResponseWriter, r *http.Request, state *webState, err error) {
	status := statusFor(err)
	g.log.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")

	if isAPIPath(r.URL.Path) {
		writeJSONError(w, status, err.Error())
		return
	}
	if state != nil && state.session != nil {
		state.session.AddFlash(session.FlashError, errorMessage(err))
		if saveErr := g.sessions.Save(state.session); saveErr != nil {
			g.log.Error().Err(saveErr).Msg("Could not save session")
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, errorPage, errorMessage(err))
}

// errorMessage keeps internal failure detail off the page.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrMalformedBody),
		errors.Is(err, ErrCSRFMismatch),
		errors.Is(err, ErrAuthRequired):
		return err.Error()
	}
	return "Something went wrong"
}

const errorPage = `<!doctype html>
<html>
<head><title>Error - Panther Pay</title></head>
<body><h1>Error</h1><p>%s</p><p><a href="/">Back to home</a></p></body>
</html>
`
