package pantherpay

import "net/http"

// FormFieldCSRF is the hidden form field carrying the CSRF token.
const FormFieldCSRF = "_csrf"

// HeaderCSRF is the request header alternative for fetch-submitted forms.
const HeaderCSRF = "X-CSRF-Token"

// enforceCSRF validates that state-changing web requests carry a token
// matching the session's CSRF secret. It runs after session resolution
// because the token is session-bound, and guarantees every response has
// a current token available for the next form.
func (g *Gateway) enforceCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFrom(r.Context())
		if !ok {
			Abort(ErrCSRFMismatch)
		}
		sess.EnsureCSRFToken()
		if stateChanging(r.Method) && !sess.CheckCSRF(submittedCSRFToken(r)) {
			Abort(ErrCSRFMismatch)
		}
		next.ServeHTTP(w, r)
	})
}

func stateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func submittedCSRFToken(r *http.Request) string {
	if token := r.PostForm.Get(FormFieldCSRF); token != "" {
		return token
	}
	return r.Header.Get(HeaderCSRF)
}
