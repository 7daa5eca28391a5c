package router

import (
	"errors"
	"fmt"
)

// Module is a unit of endpoint registration. RegisterEndpoints is called
// once during Initialize with the registrar to attach handlers to. An
// error return (or a panic) skips the module without failing
// initialization; endpoints the module registered before failing remain.
type Module interface {
	RegisterEndpoints(reg Registrar) error
}

// Registrar is the registration surface handed to modules. *Router
// implements it.
type Registrar interface {
	RegisterHandler(path, method string, h HandlerFunc)
}

// ModuleFunc adapts a plain registration function to the Module
// interface, for modules with no state of their own.
type ModuleFunc func(reg Registrar) error

func (f ModuleFunc) RegisterEndpoints(reg Registrar) error { return f(reg) }

// ModuleFactory constructs a Module. Factories run during Initialize in
// unspecified order; a factory that returns an error, panics, or yields a
// nil module is logged and skipped.
type ModuleFactory func() (Module, error)

// RegisterModuleFactory records f for instantiation by Initialize.
// Factories registered after initialization stay inert: Initialize does
// not re-run after success, so they are never instantiated.
func (r *Router) RegisterModuleFactory(f ModuleFactory) {
	if f == nil {
		panic("router: register nil module factory")
	}

	r.mu.Lock()
	r.factories = append(r.factories, f)
	late := r.initialized
	r.mu.Unlock()

	if late {
		r.logger().Warn("module factory registered after initialization; it will not be instantiated")
	}
}

// Initialize instantiates every registered module factory and lets each
// module register its endpoints. The transition to the initialized state
// is one-way and idempotent: once a call succeeds, later calls are no-ops
// returning nil, and concurrent callers observe the flip atomically
// because it happens only after all registration has completed.
//
// Initialization is fail-soft. A broken factory or module is logged and
// skipped; the remaining modules still come up, and Initialize returns
// nil even when every module fails. Modules that registered successfully
// are retained for the router's lifetime.
func (r *Router) Initialize() error {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	r.mu.RLock()
	done := r.initialized
	factories := append([]ModuleFactory(nil), r.factories...)
	r.mu.RUnlock()
	if done {
		return nil
	}

	var ready []Module
	for i, factory := range factories {
		m, err := buildModule(factory)
		if err != nil {
			r.logger().Warn("skipping module", "index", i, "err", err)
			continue
		}
		if err := attachModule(m, r); err != nil {
			r.logger().Warn("skipping module", "module", fmt.Sprintf("%T", m), "err", err)
			continue
		}
		ready = append(ready, m)
	}

	r.mu.Lock()
	r.modules = append(r.modules, ready...)
	r.initialized = true
	r.mu.Unlock()

	r.logger().Info("router initialized",
		"modules", len(ready), "endpoints", r.EndpointCount())
	return nil
}

// ModuleCount reports the number of registered module factories.
func (r *Router) ModuleCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.factories)
}

// ActiveModules reports how many modules Initialize constructed and
// registered successfully.
func (r *Router) ActiveModules() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.modules)
}

// CreateAllModules instantiates every registered factory without touching
// the endpoint registry and without retaining the instances. Failing
// factories are logged and skipped. This is an inspection affordance; it
// works in either lifecycle state.
func (r *Router) CreateAllModules() []Module {
	r.mu.RLock()
	factories := append([]ModuleFactory(nil), r.factories...)
	r.mu.RUnlock()

	modules := make([]Module, 0, len(factories))
	for i, factory := range factories {
		m, err := buildModule(factory)
		if err != nil {
			r.logger().Warn("skipping module", "index", i, "err", err)
			continue
		}
		modules = append(modules, m)
	}
	return modules
}

func buildModule(factory ModuleFactory) (m Module, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			m, err = nil, fmt.Errorf("module factory panic: %v", rec)
		}
	}()

	m, err = factory()
	if err != nil {
		return nil, fmt.Errorf("module factory: %w", err)
	}
	if m == nil {
		return nil, errors.New("module factory returned nil")
	}
	return m, nil
}

// attachModule lets m register its endpoints, containing panics so one
// broken module cannot take initialization down with it.
func attachModule(m Module, reg Registrar) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("register endpoints panic: %v", rec)
		}
	}()

	return m.RegisterEndpoints(reg)
}
