package pantherpay

import "net/http"

// hardeningHeaders is the fixed, non-content-derived header set
// attached to every response. No CSP: inline scripts on the payment
// pages still depend on it being absent.
var hardeningHeaders = map[string]string{
	"X-Content-Type-Options":            "nosniff",
	"X-Frame-Options":                   "SAMEORIGIN",
	"X-DNS-Prefetch-Control":            "off",
	"X-Download-Options":                "noopen",
	"X-Permitted-Cross-Domain-Policies": "none",
	"X-XSS-Protection":                  "0",
	"Referrer-Policy":                   "no-referrer",
	"Origin-Agent-Cluster":              "?1",
	"Cross-Origin-Opener-Policy":        "same-origin",
	"Cross-Origin-Resource-Policy":      "same-origin",
	"Strict-Transport-Security":         "max-age=15552000; includeSubDomains",
}

// securityHeaders runs first so the hardening set applies even to
// responses produced by downstream filter failures.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for name, value := range hardeningHeaders {
			w.Header().Set(name, value)
		}
		next.ServeHTTP(w, r)
	})
}
