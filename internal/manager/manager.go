// Package manager implements the network manager process: a registry of the
// running equipment services and an HTTP front door that routes remote
// callers to them by service name.
package manager

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MSLNZ/pr-superk-mono/internal/httputil"
)

// Entry is one registered service.
type Entry struct {
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	LinkID       string    `json:"link_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

type registration struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	LinkID  string `json:"link_id"`
}

// Manager is the registry plus the request router.
type Manager struct {
	mu       sync.Mutex
	services map[string]Entry
	client   httputil.HTTPClient
	debug    bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithDebug enables request logging on the HTTP surface.
func WithDebug(debug bool) Option {
	return func(m *Manager) { m.debug = debug }
}

// WithHTTPClient replaces the client used to forward requests to services.
func WithHTTPClient(client httputil.HTTPClient) Option {
	return func(m *Manager) { m.client = client }
}

// New creates an empty manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		services: make(map[string]Entry),
		client:   httputil.NewStandardClient(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler returns the HTTP surface of the manager, wrapped in the logging
// middleware when debug is enabled.
func (m *Manager) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/register", m.handleRegister)
	mux.HandleFunc("/unregister", m.handleUnregister)
	mux.HandleFunc("/services", m.handleServices)
	mux.HandleFunc("/service/", m.handleForward)
	mux.HandleFunc("/healthz", m.handleHealthz)
	if m.debug {
		return LoggingMiddleware(mux)
	}
	return mux
}

// Services returns a snapshot of the registered services keyed by name.
func (m *Manager) Services() map[string]Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Entry, len(m.services))
	for name, entry := range m.services {
		out[name] = entry
	}
	return out
}

func (m *Manager) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var reg registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid registration: %v", err))
		return
	}
	if reg.Name == "" || reg.Address == "" || reg.LinkID == "" {
		httputil.BadRequest(w, "registration requires name, address and link_id")
		return
	}

	m.mu.Lock()
	existing, ok := m.services[reg.Name]
	if ok && existing.LinkID != reg.LinkID {
		m.mu.Unlock()
		httputil.WriteJSONError(w, http.StatusConflict,
			fmt.Sprintf("service %q is already registered", reg.Name))
		return
	}
	m.services[reg.Name] = Entry{
		Name:         reg.Name,
		Address:      reg.Address,
		LinkID:       reg.LinkID,
		RegisteredAt: time.Now(),
	}
	m.mu.Unlock()

	log.Printf("registered service %q at %s", reg.Name, reg.Address)
	httputil.WriteJSONOK(w, map[string]string{"status": "registered"})
}

func (m *Manager) handleUnregister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var reg registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid registration: %v", err))
		return
	}

	m.mu.Lock()
	existing, ok := m.services[reg.Name]
	// a stale link ID must not remove a newer instance of the service
	if !ok || existing.LinkID != reg.LinkID {
		m.mu.Unlock()
		httputil.NotFound(w, fmt.Sprintf("no registration for service %q with that link", reg.Name))
		return
	}
	delete(m.services, reg.Name)
	m.mu.Unlock()

	log.Printf("unregistered service %q", reg.Name)
	httputil.WriteJSONOK(w, map[string]string{"status": "unregistered"})
}

func (m *Manager) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, m.Services())
}

func (m *Manager) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

// handleForward relays /service/<name>/<rest> to the registered address of
// the named service.
func (m *Manager) handleForward(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/service/")
	name, rest, _ := strings.Cut(trimmed, "/")
	if name == "" {
		httputil.NotFound(w, "missing service name")
		return
	}

	m.mu.Lock()
	entry, ok := m.services[name]
	m.mu.Unlock()
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("service %q is not registered", name))
		return
	}

	target := entry.Address + "/" + rest
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to build forward request: %v", err))
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadGateway,
			fmt.Sprintf("failed to reach service %q: %v", name, err))
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("failed to relay response from %q: %v", name, err)
	}
}
