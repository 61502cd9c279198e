package pantherpay

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
)

// maximum accepted request body size
const maxBodyBytes = 1 << 20

type jsonBodyKey struct{}

// JSONBody returns the decoded JSON request body, if the request
// carried one.
func JSONBody(r *http.Request) (map[string]any, bool) {
	body, ok := r.Context().Value(jsonBodyKey{}).(map[string]any)
	return body, ok
}

// parseBody decodes URL-encoded and JSON request bodies before
// routing. A decode failure aborts with ErrMalformedBody.
func (g *Gateway) parseBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "application/x-www-form-urlencoded":
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			if err := r.ParseForm(); err != nil {
				Abort(fmt.Errorf("%w: %v", ErrMalformedBody, err))
			}
		case "multipart/form-data":
			if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
				Abort(fmt.Errorf("%w: %v", ErrMalformedBody, err))
			}
		case "application/json":
			var body map[string]any
			decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err := decoder.Decode(&body); err != nil {
				Abort(fmt.Errorf("%w: %v", ErrMalformedBody, err))
			}
			r = r.WithContext(contextWith(r.Context(), jsonBodyKey{}, body))
		}
		next.ServeHTTP(w, r)
	})
}

// methodOverride lets forms express update and delete semantics over
// POST via the hidden _method field, rewriting the effective verb
// before routing.
func methodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			switch override := r.PostForm.Get("_method"); override {
			case "PUT", "PATCH", "DELETE":
				r.Method = override
			}
		}
		next.ServeHTTP(w, r)
	})
}
