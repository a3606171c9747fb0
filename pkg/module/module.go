package module

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/JaimeStill/covenant/pkg/middleware"
)

// Module serves every request under a single-level path prefix. The prefix is
// stripped before the request reaches the inner router, and the module's own
// middleware stack wraps that router.
type Module struct {
	prefix     string
	router     http.Handler
	middleware middleware.Chain

	mu      sync.Mutex
	handler http.Handler
}

// New creates a Module for prefix (e.g. "/api").
// It panics when the prefix is empty, lacks a leading slash, or is multi-level.
func New(prefix string, router http.Handler) *Module {
	if err := validatePrefix(prefix); err != nil {
		panic(err)
	}
	return &Module{
		prefix: prefix,
		router: router,
	}
}

// Handler returns the inner router wrapped in the middleware stack.
// The composed chain is built once and rebuilt only after Use.
func (m *Module) Handler() http.Handler {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handler == nil {
		m.handler = m.middleware.Then(m.router)
	}
	return m.handler
}

func (m *Module) Prefix() string {
	return m.prefix
}

// Serve strips the prefix from the request path and dispatches to Handler.
func (m *Module) Serve(w http.ResponseWriter, req *http.Request) {
	m.Handler().ServeHTTP(w, stripPrefix(req, m.prefix))
}

// Use appends mw to the middleware stack.
func (m *Module) Use(mw middleware.Func) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.middleware.Use(mw)
	m.handler = nil
}

func stripPrefix(req *http.Request, prefix string) *http.Request {
	path := strings.TrimPrefix(req.URL.Path, prefix)
	if path == "" {
		path = "/"
	}

	r := req.Clone(req.Context())
	r.URL.Path = path
	r.URL.RawPath = ""
	return r
}

func validatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("module prefix cannot be empty")
	case !strings.HasPrefix(prefix, "/"):
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	case strings.Count(prefix, "/") != 1:
		return fmt.Errorf("module prefix must be single-level sub-path: %s", prefix)
	}
	return nil
}
