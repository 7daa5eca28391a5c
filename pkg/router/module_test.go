package router_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/setulabs/setu/pkg/router"
)

// quietRouter suppresses the skip/panic log lines the failure tests
// provoke on purpose.
func quietRouter() *router.Router {
	return router.New(router.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func staticModule(path, method, body string) router.ModuleFactory {
	return func() (router.Module, error) {
		return router.ModuleFunc(func(reg router.Registrar) error {
			reg.RegisterHandler(path, method, func(p, m, b string) (string, int) {
				return body, http.StatusOK
			})
			return nil
		}), nil
	}
}

func TestInitializeRunsModuleFactories(t *testing.T) {
	r := router.New()
	r.RegisterModuleFactory(staticModule("/alpha", http.MethodGet, "alpha"))
	r.RegisterModuleFactory(staticModule("/beta", http.MethodGet, "beta"))

	if n := r.ModuleCount(); n != 2 {
		t.Fatalf("module count before init = %d", n)
	}
	if n := r.EndpointCount(); n != 0 {
		t.Fatalf("factories must not register before Initialize, got %d endpoints", n)
	}

	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if n := r.EndpointCount(); n != 2 {
		t.Fatalf("endpoint count = %d", n)
	}
	if n := r.ActiveModules(); n != 2 {
		t.Fatalf("active modules = %d", n)
	}
	for path, want := range map[string]string{"/alpha": "alpha", "/beta": "beta"} {
		body, status, handled := r.HandleRequest(path, http.MethodGet, "")
		if !handled || status != http.StatusOK || body != want {
			t.Fatalf("%s -> (%q, %d, %v)", path, body, status, handled)
		}
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	r := router.New()
	var builds int32
	r.RegisterModuleFactory(func() (router.Module, error) {
		atomic.AddInt32(&builds, 1)
		return router.ModuleFunc(func(reg router.Registrar) error {
			reg.RegisterHandler("/once", http.MethodGet, func(p, m, b string) (string, int) {
				return "once", http.StatusOK
			})
			return nil
		}), nil
	})

	if err := r.Initialize(); err != nil {
		t.Fatalf("first initialize: %v", err)
	}
	if err := r.Initialize(); err != nil {
		t.Fatalf("repeat initialize: %v", err)
	}

	if n := atomic.LoadInt32(&builds); n != 1 {
		t.Fatalf("factory ran %d times", n)
	}
	if n := r.EndpointCount(); n != 1 {
		t.Fatalf("endpoint count = %d", n)
	}
}

func TestInitializeConcurrentCallers(t *testing.T) {
	const callers = 16

	r := router.New()
	var builds int32
	r.RegisterModuleFactory(func() (router.Module, error) {
		atomic.AddInt32(&builds, 1)
		return router.ModuleFunc(func(reg router.Registrar) error {
			reg.RegisterHandler("/racy", http.MethodGet, func(p, m, b string) (string, int) {
				return "racy", http.StatusOK
			})
			return nil
		}), nil
	})

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = r.Initialize()
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&builds); n != 1 {
		t.Fatalf("factory ran %d times under concurrent Initialize", n)
	}
	if !r.Initialized() {
		t.Fatal("router not initialized")
	}
}

func TestFailingFactoriesAreSkipped(t *testing.T) {
	r := quietRouter()
	r.RegisterModuleFactory(func() (router.Module, error) {
		return nil, errors.New("construction failed")
	})
	r.RegisterModuleFactory(func() (router.Module, error) {
		panic("factory exploded")
	})
	r.RegisterModuleFactory(func() (router.Module, error) {
		return nil, nil // nil module, nil error
	})
	r.RegisterModuleFactory(staticModule("/survivor", http.MethodGet, "alive"))

	if err := r.Initialize(); err != nil {
		t.Fatalf("fail-soft initialize returned %v", err)
	}

	if n := r.ActiveModules(); n != 1 {
		t.Fatalf("active modules = %d", n)
	}
	body, status, handled := r.HandleRequest("/survivor", http.MethodGet, "")
	if !handled || status != http.StatusOK || body != "alive" {
		t.Fatalf("surviving module unreachable: (%q, %d, %v)", body, status, handled)
	}
}

func TestRegisterEndpointsErrorKeepsPartialRegistrations(t *testing.T) {
	r := quietRouter()
	r.RegisterModuleFactory(func() (router.Module, error) {
		return router.ModuleFunc(func(reg router.Registrar) error {
			reg.RegisterHandler("/partial", http.MethodGet, func(p, m, b string) (string, int) {
				return "partial", http.StatusOK
			})
			return errors.New("gave up halfway")
		}), nil
	})
	r.RegisterModuleFactory(staticModule("/whole", http.MethodGet, "whole"))

	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// Registration is not transactional. The endpoint stays even though
	// its module was skipped.
	if _, _, handled := r.HandleRequest("/partial", http.MethodGet, ""); !handled {
		t.Fatal("endpoint registered before the failure should remain")
	}
	if n := r.ActiveModules(); n != 1 {
		t.Fatalf("failed module counted as active: %d", n)
	}
	if _, _, handled := r.HandleRequest("/whole", http.MethodGet, ""); !handled {
		t.Fatal("later module was not initialized")
	}
}

func TestRegisterEndpointsPanicIsContained(t *testing.T) {
	r := quietRouter()
	r.RegisterModuleFactory(func() (router.Module, error) {
		return router.ModuleFunc(func(reg router.Registrar) error {
			reg.RegisterHandler("/good", http.MethodGet, func(p, m, b string) (string, int) {
				return "good", http.StatusOK
			})
			// Invalid registration panics; Initialize contains it and
			// skips only this module.
			reg.RegisterHandler("", http.MethodGet, func(p, m, b string) (string, int) {
				return "", http.StatusOK
			})
			return nil
		}), nil
	})
	r.RegisterModuleFactory(staticModule("/other", http.MethodGet, "other"))

	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if _, _, handled := r.HandleRequest("/good", http.MethodGet, ""); !handled {
		t.Fatal("pre-panic registration should remain")
	}
	if _, _, handled := r.HandleRequest("/other", http.MethodGet, ""); !handled {
		t.Fatal("other module should be unaffected")
	}
	if n := r.ActiveModules(); n != 1 {
		t.Fatalf("active modules = %d", n)
	}
}

func TestLateFactoryStaysInert(t *testing.T) {
	r := quietRouter()
	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	var built int32
	r.RegisterModuleFactory(func() (router.Module, error) {
		atomic.AddInt32(&built, 1)
		return router.ModuleFunc(func(reg router.Registrar) error { return nil }), nil
	})

	if err := r.Initialize(); err != nil {
		t.Fatalf("repeat initialize: %v", err)
	}

	if n := atomic.LoadInt32(&built); n != 0 {
		t.Fatalf("late factory ran %d times", n)
	}
	// It still shows up in the factory count for introspection.
	if n := r.ModuleCount(); n != 1 {
		t.Fatalf("module count = %d", n)
	}
}

func TestCreateAllModules(t *testing.T) {
	r := quietRouter()
	r.RegisterModuleFactory(staticModule("/one", http.MethodGet, "one"))
	r.RegisterModuleFactory(func() (router.Module, error) {
		return nil, errors.New("broken")
	})
	r.RegisterModuleFactory(staticModule("/two", http.MethodGet, "two"))

	modules := r.CreateAllModules()
	if len(modules) != 2 {
		t.Fatalf("expected 2 constructible modules, got %d", len(modules))
	}

	// Inspection only: nothing registered, lifecycle untouched.
	if n := r.EndpointCount(); n != 0 {
		t.Fatalf("CreateAllModules registered %d endpoints", n)
	}
	if r.Initialized() {
		t.Fatal("CreateAllModules must not initialize the router")
	}
}
