package pantherpay

import (
	"io/fs"
	"net/http"
	"strings"
)

// serveStatic short-circuits the chain for the static surface: the
// assets prefix plus the two well-known root paths the offline worker
// depends on. Assets never pay the session or CSRF cost.
func (g *Gateway) serveStatic(next http.Handler) http.Handler {
	fileServer := http.FileServer(http.FS(g.static))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/assets/"):
			fileServer.ServeHTTP(w, r)
		case r.URL.Path == "/manifest.webmanifest":
			g.serveFile(w, "manifest.webmanifest", "application/manifest+json")
		case r.URL.Path == "/sw.js":
			g.serveFile(w, "sw.js", "application/javascript")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (g *Gateway) serveFile(w http.ResponseWriter, name, contentType string) {
	data, err := fs.ReadFile(g.static, name)
	if err != nil {
		g.log.Error().Err(err).Str("file", name).Msg("Could not read static file")
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
