// Package router maps (path, method) pairs to handler callbacks and
// dispatches requests to them with contained failure handling. Endpoints
// register directly through RegisterHandler or in bulk through modules: a
// module factory recorded with RegisterModuleFactory runs during
// Initialize, where the constructed module attaches its own endpoints.
//
// Matching is exact and case-sensitive. There is no pattern matching, no
// prefix fallback, and no method override; a transport that needs
// grouping (an /admin prefix, say) resolves it before delegating here.
//
// Dispatch failures are in-band values rather than errors: HandleRequest
// reports handled == false together with a response body and HTTP status
// describing the failure. Handler panics are recovered, so a broken
// endpoint never takes the dispatcher down.
package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
)

// HandlerFunc handles one dispatched request. It receives the request
// path, HTTP method, and raw request body, and returns the response body
// together with an HTTP status code.
type HandlerFunc func(path, method, body string) (string, int)

// Bodies returned for dispatch failures. Callers match on handled ==
// false; the strings are part of the wire contract and must not change.
const (
	msgEmptyPath      = "Bad request: empty path"
	msgEmptyMethod    = "Bad request: empty method"
	msgNotInitialized = "Router not initialized"
	msgInternalError  = "Internal server error"
)

type endpointKey struct {
	path   string
	method string
}

func (k endpointKey) String() string { return k.path + ":" + k.method }

// Router is an endpoint registry and dispatcher. All methods are safe for
// concurrent use; create one with New or use the process-wide Default.
type Router struct {
	log *slog.Logger

	initMu sync.Mutex // serializes Initialize and Reset

	mu          sync.RWMutex
	endpoints   map[endpointKey]HandlerFunc
	factories   []ModuleFactory
	modules     []Module
	initialized bool
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used for skipped modules and recovered
// handler panics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// New returns an empty, uninitialized router.
func New(opts ...Option) *Router {
	r := &Router{
		endpoints: make(map[endpointKey]HandlerFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// logger resolves the log destination at call time, so a router built
// before the process logger is configured still logs through it.
func (r *Router) logger() *slog.Logger {
	if r.log != nil {
		return r.log
	}
	return slog.Default()
}

var (
	defaultOnce sync.Once
	defaultR    *Router
)

// Default returns the process-wide router, building it on first use.
func Default() *Router {
	defaultOnce.Do(func() { defaultR = New() })
	return defaultR
}

// RegisterHandler maps (path, method) to h, replacing any existing
// handler for the same pair. Registration is legal before and after
// Initialize and concurrently with dispatch.
//
// Empty path, empty method, and nil handler are programmer errors and
// panic, as http.ServeMux does for bad patterns. A panic raised while a
// module registers is contained by Initialize and skips that module.
func (r *Router) RegisterHandler(path, method string, h HandlerFunc) {
	if path == "" {
		panic("router: register with empty path")
	}
	if method == "" {
		panic("router: register with empty method")
	}
	if h == nil {
		panic("router: register with nil handler")
	}

	r.mu.Lock()
	r.endpoints[endpointKey{path: path, method: method}] = h
	r.mu.Unlock()
}

// HandleRequest dispatches a request to the handler registered for the
// exact (path, method) pair and returns the handler's body and status
// with handled == true. Failures come back in-band with handled == false:
//
//	empty path              400 "Bad request: empty path"
//	empty method            400 "Bad request: empty method"
//	before Initialize       500 "Router not initialized"
//	no matching endpoint    404 "Not found: {method} {path} is not registered"
//	handler panic           500 "Internal server error"
//
// HandleRequest never panics and never returns a Go error.
func (r *Router) HandleRequest(path, method, body string) (string, int, bool) {
	if path == "" {
		return msgEmptyPath, http.StatusBadRequest, false
	}
	if method == "" {
		return msgEmptyMethod, http.StatusBadRequest, false
	}

	r.mu.RLock()
	initialized := r.initialized
	h := r.endpoints[endpointKey{path: path, method: method}]
	r.mu.RUnlock()

	if !initialized {
		return msgNotInitialized, http.StatusInternalServerError, false
	}
	if h == nil {
		return fmt.Sprintf("Not found: %s %s is not registered", method, path),
			http.StatusNotFound, false
	}
	return r.invoke(h, path, method, body)
}

// invoke runs the handler outside the registry lock, so handlers may
// re-enter RegisterHandler.
func (r *Router) invoke(h HandlerFunc, path, method, body string) (respBody string, status int, handled bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger().Error("recovered handler panic",
				"path", path, "method", method, "panic", rec)
			respBody, status, handled = msgInternalError, http.StatusInternalServerError, false
		}
	}()

	respBody, status = h(path, method, body)
	return respBody, status, true
}

// EndpointCount reports the number of registered endpoints.
func (r *Router) EndpointCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.endpoints)
}

// Endpoints returns the registered endpoints as sorted "path:method"
// strings.
func (r *Router) Endpoints() []string {
	r.mu.RLock()
	eps := make([]string, 0, len(r.endpoints))
	for k := range r.endpoints {
		eps = append(eps, k.String())
	}
	r.mu.RUnlock()

	sort.Strings(eps)
	return eps
}

// Initialized reports whether Initialize has completed.
func (r *Router) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.initialized
}

// Reset returns the router to its pristine uninitialized state, dropping
// endpoints, factories, and retained modules. It exists for tests;
// production routers initialize once and stay up.
func (r *Router) Reset() {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	r.mu.Lock()
	r.endpoints = make(map[endpointKey]HandlerFunc)
	r.factories = nil
	r.modules = nil
	r.initialized = false
	r.mu.Unlock()
}
