// Package pantherpay implements the request admission pipeline fronting
// the Panther Pay top-up service. Every inbound request traverses an
// ordered filter chain which classifies it as API or web traffic and
// applies mutually exclusive session, CSRF and CORS treatment before
// any business handler runs.
package pantherpay

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pantherpay/pantherpay/identity"
	"github.com/pantherpay/pantherpay/session"
	"github.com/pantherpay/pantherpay/settings"
)

const apiPrefix = "/api"

type Config struct {
	// Durable store for web sessions.
	Sessions session.Store
	// Resolves sessions into identities.
	Identity identity.Resolver
	// Branding and display settings, read on every web request.
	Settings settings.Source
	// Read-only store for the static surface: an assets/ directory
	// plus manifest.webmanifest and sw.js at its root.
	Static fs.FS
	// Secret for signing session cookies.
	Secret string
	// Session lifetime. Defaults to 24 hours.
	SessionTTL time.Duration
	// Business route handlers mounted on the web branch by path prefix.
	WebRoutes map[string]http.Handler
	// JSON route handlers mounted under the API prefix by path prefix.
	// They authenticate statelessly and shape their own errors.
	APIRoutes map[string]http.Handler
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Gateway is the assembled filter chain. It implements http.Handler.
type Gateway struct {
	sessions   session.Store
	identity   identity.Resolver
	settings   settings.Source
	static     fs.FS
	secret     string
	sessionTTL time.Duration
	log        zerolog.Logger
	handler    http.Handler
}

// Middleware wraps an HTTP handler.
type Middleware func(http.Handler) http.Handler

// chain applies middleware in declaration order. The chain is the
// single assembly point for filter ordering: CORS/CSRF classification
// happens before any stateful session work, and CSRF enforcement after
// session resolution, because the token is session-bound.
func chain(handler http.Handler, middleware ...Middleware) http.Handler {
	wrapped := handler
	for idx := len(middleware) - 1; idx >= 0; idx-- {
		wrapped = middleware[idx](wrapped)
	}
	return wrapped
}

// CreateGateway assembles the filter chain around the configured
// collaborators and business routes.
func CreateGateway(config Config) *Gateway {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}
	g := &Gateway{
		sessions:   config.Sessions,
		identity:   config.Identity,
		settings:   config.Settings,
		static:     config.Static,
		secret:     config.Secret,
		sessionTTL: config.SessionTTL,
		log:        logger,
	}
	if g.sessionTTL == 0 {
		g.sessionTTL = 24 * time.Hour
	}
	if g.settings == nil {
		g.settings = settings.Static(settings.Defaults())
	}

	web := chain(g.dispatchWeb(config.WebRoutes),
		g.resolveSession,
		g.drainFlashes,
		g.resolveIdentity,
		g.enforceCSRF,
		g.injectLocals,
	)
	api := chain(g.dispatchAPI(config.APIRoutes), corsFilter)

	g.handler = chain(g.split(api, web),
		securityHeaders,
		g.accessLog,
		g.serveStatic,
		g.errorBoundary,
		g.parseBody,
		methodOverride,
	)
	return g
}

// ServeHTTP implements the http.Handler interface.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.handler.ServeHTTP(w, r)
}

// split routes requests under the API prefix to the API branch and
// everything else to the web branch. The two filter sets never overlap.
func (g *Gateway) split(api, web http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAPIPath(r.URL.Path) {
			api.ServeHTTP(w, r)
			return
		}
		web.ServeHTTP(w, r)
	})
}

func isAPIPath(path string) bool {
	return path == apiPrefix || strings.HasPrefix(path, apiPrefix+"/")
}

// dispatchWeb builds the web branch router. The bare root redirects by
// identity presence; business prefixes come from the configuration.
func (g *Gateway) dispatchWeb(routes map[string]http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		if user, _ := UserFrom(req.Context()); user != nil {
			http.Redirect(w, req, "/user/dashboard", http.StatusFound)
			return
		}
		http.Redirect(w, req, "/login", http.StatusFound)
	})
	for _, prefix := range sortedPrefixes(routes) {
		r.Mount(prefix, routes[prefix])
	}
	return r
}

func (g *Gateway) dispatchAPI(routes map[string]http.Handler) http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	for _, prefix := range sortedPrefixes(routes) {
		r.Mount(strings.TrimPrefix(prefix, apiPrefix), routes[prefix])
	}
	return http.StripPrefix(apiPrefix, r)
}

func sortedPrefixes(routes map[string]http.Handler) []string {
	prefixes := make([]string, 0, len(routes))
	for prefix := range routes {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

func contextWith(ctx context.Context, key, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
