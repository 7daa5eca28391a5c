// Package container is a typed service locator. Services register under
// their Go type, either as ready instances or as factories that run on
// first resolution; a successfully constructed instance is cached and
// returned to every later resolver. All operations are safe for
// concurrent use.
//
// Registration and resolution are package functions rather than methods
// because Go methods cannot introduce type parameters:
//
//	container.Register(c, svc)
//	svc, err := container.Resolve[*UserService](c)
package container

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// ErrNotRegistered is wrapped by Resolve when no registration exists for
// the requested type. Test with errors.Is.
var ErrNotRegistered = errors.New("service not registered")

type entry struct {
	mu       sync.Mutex
	factory  func() (any, error)
	instance any
	built    bool
}

// Container holds service registrations keyed by type. The zero value is
// not usable; create one with New or use the process-wide Default.
type Container struct {
	mu      sync.RWMutex
	entries map[reflect.Type]*entry
}

// New returns an empty container.
func New() *Container {
	return &Container{entries: make(map[reflect.Type]*entry)}
}

var (
	defaultOnce sync.Once
	defaultC    *Container
)

// Default returns the process-wide container, building it on first use.
func Default() *Container {
	defaultOnce.Do(func() { defaultC = New() })
	return defaultC
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register stores an existing instance under T, replacing any previous
// registration for the same type.
func Register[T any](c *Container, instance T) {
	c.put(typeOf[T](), &entry{instance: instance, built: true})
}

// RegisterFactory stores a deferred constructor for T, replacing any
// previous registration for the same type. The factory runs on the first
// Resolve; on success the instance is cached and the factory never runs
// again. On error the entry stays unbuilt and the next Resolve retries.
func RegisterFactory[T any](c *Container, factory func() (T, error)) {
	if factory == nil {
		panic("container: nil factory")
	}
	c.put(typeOf[T](), &entry{factory: func() (any, error) { return factory() }})
}

func (c *Container) put(t reflect.Type, e *entry) {
	c.mu.Lock()
	c.entries[t] = e
	c.mu.Unlock()
}

// Resolve returns the instance registered under T, constructing and
// caching it first when T was registered through RegisterFactory.
// Construction is single-flight per type: concurrent resolvers of an
// unbuilt entry block on one factory run and share its result. The
// container lock is not held during construction, so a slow factory never
// blocks resolution of other types.
//
// An unregistered T yields an error wrapping ErrNotRegistered; a factory
// failure propagates as a distinct construction error.
func Resolve[T any](c *Container) (T, error) {
	var zero T
	t := typeOf[T]()

	c.mu.RLock()
	e, ok := c.entries[t]
	c.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNotRegistered, t)
	}

	v, err := e.resolve(t)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("container: value registered for %s is %T", t, v)
	}
	return out, nil
}

// MustResolve is Resolve that panics on error, for wiring code where a
// missing service is a programming bug.
func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(fmt.Sprintf("container: %v", err))
	}
	return v
}

// IsRegistered reports whether T has a registration. It never panics and
// does not trigger factory construction.
func IsRegistered[T any](c *Container) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.entries[typeOf[T]()]
	return ok
}

func (e *entry) resolve(t reflect.Type) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.built {
		return e.instance, nil
	}

	v, err := runFactory(e.factory)
	if err != nil {
		return nil, fmt.Errorf("container: construct %s: %w", t, err)
	}
	e.instance = v
	e.built = true
	return v, nil
}

func runFactory(factory func() (any, error)) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			v, err = nil, fmt.Errorf("factory panic: %v", rec)
		}
	}()
	return factory()
}

// Count reports the number of registered types.
func (c *Container) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// TypeNames returns the names of all registered types, sorted.
func (c *Container) TypeNames() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.entries))
	for t := range c.entries {
		names = append(names, t.String())
	}
	c.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Info returns a one-line human-readable summary of the registered
// services.
func (c *Container) Info() string {
	names := c.TypeNames()
	if len(names) == 0 {
		return "service container: no services registered"
	}
	return fmt.Sprintf("service container: %d service(s) registered - %s",
		len(names), strings.Join(names, ", "))
}

// Clear drops every registration by swapping in a fresh map. Resolutions
// already in flight complete against the old entries.
func (c *Container) Clear() {
	c.mu.Lock()
	c.entries = make(map[reflect.Type]*entry)
	c.mu.Unlock()
}
