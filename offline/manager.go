// Package offline implements the client-side cache lifecycle manager
// as an explicit state machine over a versioned cache namespace. The
// hosting runtime drives Install and Activate to completion in that
// order; HandleFetch is the steady-state interception point and may be
// called concurrently.
package offline

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	snapshot "github.com/pantherpay/pantherpay/pkg/response-snapshot"
)

// State of the manager lifecycle.
type State int

const (
	Installing State = iota
	Installed
	Activating
	Active
)

func (s State) String() string {
	switch s {
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case Activating:
		return "activating"
	case Active:
		return "active"
	}
	return "unknown"
}

// Fetcher performs a network fetch for one resource request.
type Fetcher interface {
	Fetch(r *http.Request) (*snapshot.Snapshot, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(r *http.Request) (*snapshot.Snapshot, error)

func (f FetcherFunc) Fetch(r *http.Request) (*snapshot.Snapshot, error) {
	return f(r)
}

// Clients claims control of open pages after activation.
type Clients interface {
	Claim() error
}

// Config configures a cache manager instance.
type Config struct {
	// Version tag for the cache namespace.
	Version string
	// Paths of the core assets precached at install time.
	// Install fails fatally if any of them cannot be fetched.
	CoreAssets []string
	// Storage for cache namespaces.
	Storage Storage
	// Fetcher used for all network access.
	Fetcher Fetcher
	// Optional controller of open pages, claimed after activation.
	Clients Clients
	// Promote this version immediately after a successful install
	// instead of waiting for the previous instance to wind down.
	SkipWaiting bool
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Manager owns one versioned cache namespace and decides a caching
// strategy per resource class: network-first for documents, cache-first
// for everything else.
type Manager struct {
	version     string
	namespace   string
	coreAssets  []string
	storage     Storage
	fetcher     Fetcher
	clients     Clients
	skipWaiting bool
	log         zerolog.Logger

	mutex sync.Mutex
	state State
}

// NewManager creates a manager in the installing state.
func NewManager(config Config) *Manager {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}
	return &Manager{
		version:     config.Version,
		namespace:   "pantherpay-" + config.Version,
		coreAssets:  config.CoreAssets,
		storage:     config.Storage,
		fetcher:     config.Fetcher,
		clients:     config.Clients,
		skipWaiting: config.SkipWaiting,
		log:         logger.With().Str("cache", "pantherpay-"+config.Version).Logger(),
		state:       Installing,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

// Namespace returns the versioned namespace name owned by this manager.
func (m *Manager) Namespace() string {
	return m.namespace
}

func (m *Manager) transition(from, to State) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.state != from {
		return fmt.Errorf("cannot move to %s from %s", to, m.state)
	}
	m.state = to
	return nil
}

// Install precaches every core asset into this version's namespace.
// If any asset fetch fails, the partially written namespace is removed
// and the version never activates; the previously active version keeps
// serving untouched.
func (m *Manager) Install() error {
	if m.State() != Installing {
		return fmt.Errorf("install in state %s", m.State())
	}
	ns, err := m.storage.Open(m.namespace)
	if err != nil {
		return err
	}
	for _, path := range m.coreAssets {
		req, err := http.NewRequest(http.MethodGet, path, nil)
		if err != nil {
			m.abortInstall(path, err)
			return fmt.Errorf("precache %s: %w", path, err)
		}
		snap, err := m.fetcher.Fetch(req)
		if err == nil && (snap.StatusCode < 200 || snap.StatusCode > 299) {
			err = fmt.Errorf("unexpected status %d", snap.StatusCode)
		}
		if err != nil {
			m.abortInstall(path, err)
			return fmt.Errorf("precache %s: %w", path, err)
		}
		if err := ns.Put(path, snap); err != nil {
			m.abortInstall(path, err)
			return fmt.Errorf("precache %s: %w", path, err)
		}
	}
	if err := m.transition(Installing, Installed); err != nil {
		return err
	}
	m.log.Info().Int("assets", len(m.coreAssets)).Msg("Install complete")
	if m.skipWaiting {
		return m.Activate()
	}
	return nil
}

func (m *Manager) abortInstall(path string, err error) {
	m.log.Error().Err(err).Str("path", path).Msg("Precache failed, install aborted")
	if err := m.storage.Delete(m.namespace); err != nil {
		m.log.Error().Err(err).Msg("Could not remove partial namespace")
	}
}

// Activate purges every namespace of a superseded version and claims
// all open pages, so no stale-version entry is ever served afterwards.
func (m *Manager) Activate() error {
	if err := m.transition(Installed, Activating); err != nil {
		return err
	}
	names, err := m.storage.Keys()
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == m.namespace {
			continue
		}
		m.log.Debug().Str("namespace", name).Msg("Purging superseded namespace")
		if err := m.storage.Delete(name); err != nil {
			return fmt.Errorf("purge %s: %w", name, err)
		}
	}
	if m.clients != nil {
		if err := m.clients.Claim(); err != nil {
			return err
		}
	}
	if err := m.transition(Activating, Active); err != nil {
		return err
	}
	m.log.Info().Msg("Activated")
	return nil
}

// HandleFetch intercepts one resource request. Safe for concurrent use.
// Requests expecting an HTML document are network-first with cache
// fallback; everything else is cache-first with a synthesized offline
// response as the last resort.
func (m *Manager) HandleFetch(r *http.Request) (*snapshot.Snapshot, error) {
	if m.State() != Active {
		return m.fetcher.Fetch(r)
	}
	ns, err := m.storage.Open(m.namespace)
	if err != nil {
		return nil, err
	}
	key := cacheKey(r)
	if expectsDocument(r) {
		return m.fetchDocument(ns, key, r)
	}
	return m.fetchAsset(ns, key, r)
}

// fetchDocument prefers the network so navigations reflect the latest
// deploy, falling back to the cached copy and then the cached root.
func (m *Manager) fetchDocument(ns Namespace, key string, r *http.Request) (*snapshot.Snapshot, error) {
	fresh, err := m.fetcher.Fetch(r)
	if err == nil {
		if r.Method == http.MethodGet {
			if err := ns.Put(key, fresh); err != nil {
				m.log.Warn().Err(err).Str("key", key).Msg("Could not store fresh document")
			}
		}
		return fresh, nil
	}
	m.log.Debug().Err(err).Str("key", key).Msg("Network unavailable, trying cache")
	if cached, ok, _ := ns.Match(key); ok {
		return cached, nil
	}
	if cached, ok, _ := ns.Match("/"); ok {
		return cached, nil
	}
	return nil, fmt.Errorf("document %s unavailable offline: %w", key, err)
}

// fetchAsset prefers the cache: static bundles are content-versioned
// via query strings, so a hit is always correct and skips the network.
func (m *Manager) fetchAsset(ns Namespace, key string, r *http.Request) (*snapshot.Snapshot, error) {
	if cached, ok, _ := ns.Match(key); ok {
		return cached, nil
	}
	fresh, err := m.fetcher.Fetch(r)
	if err != nil {
		m.log.Debug().Err(err).Str("key", key).Msg("Asset unavailable, serving offline response")
		return offlineResponse(), nil
	}
	if r.Method == http.MethodGet {
		if err := ns.Put(key, fresh); err != nil {
			m.log.Warn().Err(err).Str("key", key).Msg("Could not store asset")
		}
	}
	return fresh, nil
}

// cacheKey normalizes the request identity. The query string is part of
// the key because bundles are versioned with it.
func cacheKey(r *http.Request) string {
	return r.URL.RequestURI()
}

func expectsDocument(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func offlineResponse() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		StatusCode: http.StatusGatewayTimeout,
		Header:     http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:       []byte("Offline"),
	}
}

// NetworkFetcher fetches over real HTTP against a base URL.
type NetworkFetcher struct {
	Base   string
	Client *http.Client
}

func (f NetworkFetcher) Fetch(r *http.Request) (*snapshot.Snapshot, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequest(r.Method, f.Base+r.URL.RequestURI(), nil)
	if err != nil {
		return nil, err
	}
	for name, values := range r.Header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	return snapshot.FromResponse(res)
}
