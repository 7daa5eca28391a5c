package router_test

import (
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/setulabs/setu/pkg/router"
	"github.com/setulabs/setu/pkg/testkit"
)

func helloHandler(path, method, body string) (string, int) {
	return "Hello, World!", http.StatusOK
}

func TestRegisterInitializeDispatch(t *testing.T) {
	r := router.New()
	r.RegisterHandler("/hello", http.MethodGet, helloHandler)

	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	body, status, handled := r.HandleRequest("/hello", http.MethodGet, "")
	if !handled {
		t.Fatalf("expected the request to be handled, got %d %q", status, body)
	}
	if body != "Hello, World!" {
		t.Fatalf("body = %q", body)
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
}

func TestHandlerReceivesRequestValues(t *testing.T) {
	r := router.New()

	var gotPath, gotMethod, gotBody string
	r.RegisterHandler("/echo", http.MethodPost, func(path, method, body string) (string, int) {
		gotPath, gotMethod, gotBody = path, method, body
		return body, http.StatusOK
	})
	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	body, status, handled := r.HandleRequest("/echo", http.MethodPost, `{"ping":true}`)
	if !handled || status != http.StatusOK {
		t.Fatalf("dispatch failed: %d %q", status, body)
	}
	if gotPath != "/echo" || gotMethod != http.MethodPost || gotBody != `{"ping":true}` {
		t.Fatalf("handler saw (%q, %q, %q)", gotPath, gotMethod, gotBody)
	}
	if body != `{"ping":true}` {
		t.Fatalf("echoed body = %q", body)
	}
}

func TestDispatchBeforeInitialize(t *testing.T) {
	r := router.New()
	r.RegisterHandler("/hello", http.MethodGet, helloHandler)

	body, status, handled := r.HandleRequest("/hello", http.MethodGet, "")
	if handled {
		t.Fatal("uninitialized router must not dispatch")
	}
	if body != "Router not initialized" {
		t.Fatalf("body = %q", body)
	}
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d", status)
	}
}

func TestDispatchUnknownEndpoint(t *testing.T) {
	r := router.New()
	r.RegisterHandler("/hello", http.MethodGet, helloHandler)
	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	body, status, handled := r.HandleRequest("/missing", http.MethodGet, "")
	if handled {
		t.Fatal("unknown endpoint must not be handled")
	}
	if body != "Not found: GET /missing is not registered" {
		t.Fatalf("body = %q", body)
	}
	if status != http.StatusNotFound {
		t.Fatalf("status = %d", status)
	}
}

func TestDispatchEmptyPathAndMethod(t *testing.T) {
	r := router.New()
	r.RegisterHandler("/hello", http.MethodGet, helloHandler)

	// The argument checks run first, in both lifecycle states.
	for _, initialized := range []bool{false, true} {
		if initialized {
			if err := r.Initialize(); err != nil {
				t.Fatalf("initialize: %v", err)
			}
		}

		body, status, handled := r.HandleRequest("", http.MethodGet, "")
		if handled || status != http.StatusBadRequest || body != "Bad request: empty path" {
			t.Fatalf("initialized=%v empty path -> (%q, %d, %v)", initialized, body, status, handled)
		}

		body, status, handled = r.HandleRequest("/hello", "", "")
		if handled || status != http.StatusBadRequest || body != "Bad request: empty method" {
			t.Fatalf("initialized=%v empty method -> (%q, %d, %v)", initialized, body, status, handled)
		}
	}
}

func TestDispatchIsExactAndCaseSensitive(t *testing.T) {
	r := router.New()
	r.RegisterHandler("/users", http.MethodGet, func(path, method, body string) (string, int) {
		return "list", http.StatusOK
	})
	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	misses := []struct {
		path, method string
	}{
		{"/users", http.MethodPost},
		{"/users/", http.MethodGet},
		{"/Users", http.MethodGet},
		{"/users", "get"},
		{"/users/42", http.MethodGet},
	}
	for _, miss := range misses {
		body, status, handled := r.HandleRequest(miss.path, miss.method, "")
		if handled {
			t.Fatalf("(%q, %q) unexpectedly handled: %q", miss.path, miss.method, body)
		}
		want := fmt.Sprintf("Not found: %s %s is not registered", miss.method, miss.path)
		if body != want || status != http.StatusNotFound {
			t.Fatalf("(%q, %q) -> (%q, %d)", miss.path, miss.method, body, status)
		}
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	r := quietRouter()
	r.RegisterHandler("/boom", http.MethodGet, func(path, method, body string) (string, int) {
		panic("kaboom")
	})
	r.RegisterHandler("/ok", http.MethodGet, func(path, method, body string) (string, int) {
		return "still here", http.StatusOK
	})
	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	body, status, handled := r.HandleRequest("/boom", http.MethodGet, "")
	if handled {
		t.Fatal("panicking handler must not count as handled")
	}
	if body != "Internal server error" || status != http.StatusInternalServerError {
		t.Fatalf("panic mapped to (%q, %d)", body, status)
	}

	// The dispatcher survives and other endpoints still work.
	body, status, handled = r.HandleRequest("/ok", http.MethodGet, "")
	if !handled || body != "still here" || status != http.StatusOK {
		t.Fatalf("dispatcher did not survive the panic: (%q, %d, %v)", body, status, handled)
	}

	// So does the broken endpoint, reporting the same failure each time.
	body, _, handled = r.HandleRequest("/boom", http.MethodGet, "")
	if handled || body != "Internal server error" {
		t.Fatalf("second panic dispatch -> (%q, %v)", body, handled)
	}
}

func TestHandlerStatusPassesThrough(t *testing.T) {
	r := router.New()
	r.RegisterHandler("/teapot", http.MethodGet, func(path, method, body string) (string, int) {
		return "short and stout", http.StatusTeapot
	})
	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	body, status, handled := r.HandleRequest("/teapot", http.MethodGet, "")
	if !handled {
		t.Fatal("handler result must count as handled regardless of status")
	}
	if status != http.StatusTeapot || body != "short and stout" {
		t.Fatalf("got (%q, %d)", body, status)
	}
}

func TestDuplicateRegistrationLastWins(t *testing.T) {
	r := router.New()
	r.RegisterHandler("/v", http.MethodGet, func(path, method, body string) (string, int) {
		return "first", http.StatusOK
	})
	r.RegisterHandler("/v", http.MethodGet, func(path, method, body string) (string, int) {
		return "second", http.StatusOK
	})
	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if n := r.EndpointCount(); n != 1 {
		t.Fatalf("expected 1 endpoint after overwrite, got %d", n)
	}
	body, _, _ := r.HandleRequest("/v", http.MethodGet, "")
	if body != "second" {
		t.Fatalf("expected the later handler to win, got %q", body)
	}
}

func TestRegisterHandlerValidation(t *testing.T) {
	r := router.New()

	cases := []struct {
		name string
		fn   func()
	}{
		{"empty path", func() { r.RegisterHandler("", http.MethodGet, helloHandler) }},
		{"empty method", func() { r.RegisterHandler("/x", "", helloHandler) }},
		{"nil handler", func() { r.RegisterHandler("/x", http.MethodGet, nil) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("%s: expected panic", tc.name)
				}
			}()
			tc.fn()
		})
	}

	if n := r.EndpointCount(); n != 0 {
		t.Fatalf("rejected registrations must not land, got %d endpoints", n)
	}
}

func TestRegisterAfterInitialize(t *testing.T) {
	r := router.New()
	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	r.RegisterHandler("/late", http.MethodGet, func(path, method, body string) (string, int) {
		return "late but live", http.StatusOK
	})

	body, status, handled := r.HandleRequest("/late", http.MethodGet, "")
	if !handled || status != http.StatusOK || body != "late but live" {
		t.Fatalf("late registration not dispatchable: (%q, %d, %v)", body, status, handled)
	}
}

func TestHandlerMayRegisterDuringDispatch(t *testing.T) {
	r := router.New()
	r.RegisterHandler("/spawn", http.MethodPost, func(path, method, body string) (string, int) {
		r.RegisterHandler("/spawned", http.MethodGet, func(path, method, body string) (string, int) {
			return "child", http.StatusOK
		})
		return "parent", http.StatusCreated
	})
	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if _, _, handled := r.HandleRequest("/spawn", http.MethodPost, ""); !handled {
		t.Fatal("spawning dispatch failed")
	}
	body, _, handled := r.HandleRequest("/spawned", http.MethodGet, "")
	if !handled || body != "child" {
		t.Fatalf("endpoint registered mid-dispatch not reachable: (%q, %v)", body, handled)
	}
}

func TestEndpointsSortedListing(t *testing.T) {
	r := router.New()
	r.RegisterHandler("/zebra", http.MethodGet, helloHandler)
	r.RegisterHandler("/alpha", http.MethodPost, helloHandler)
	r.RegisterHandler("/alpha", http.MethodGet, helloHandler)

	if n := r.EndpointCount(); n != 3 {
		t.Fatalf("endpoint count = %d", n)
	}

	eps := r.Endpoints()
	want := []string{"/alpha:GET", "/alpha:POST", "/zebra:GET"}
	if len(eps) != len(want) {
		t.Fatalf("endpoints = %v", eps)
	}
	for i := range want {
		if eps[i] != want[i] {
			t.Fatalf("endpoints[%d] = %q, want %q (full: %v)", i, eps[i], want[i], eps)
		}
	}
	if !sort.StringsAreSorted(eps) {
		t.Fatalf("listing not sorted: %v", eps)
	}
}

func TestConcurrentRegistrationAndDispatch(t *testing.T) {
	const (
		registrars = 8
		perWorker  = 50
		dispatches = 400
	)

	r := router.New()
	r.RegisterHandler("/steady", http.MethodGet, func(path, method, body string) (string, int) {
		return "steady", http.StatusOK
	})
	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	var wg sync.WaitGroup
	for w := 0; w < registrars; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				path := fmt.Sprintf("/load/%d/%d", w, i)
				r.RegisterHandler(path, http.MethodGet, func(path, method, body string) (string, int) {
					return "ok", http.StatusOK
				})
			}
		}(w)
	}
	for d := 0; d < 4; d++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < dispatches; i++ {
				body, status, handled := r.HandleRequest("/steady", http.MethodGet, "")
				if !handled || status != http.StatusOK || body != "steady" {
					t.Errorf("steady dispatch failed: (%q, %d, %v)", body, status, handled)
					return
				}
				// Racing endpoints are either registered or not yet; both
				// outcomes are fine, a crash or torn read is not.
				r.HandleRequest(fmt.Sprintf("/load/%d/%d", i%registrars, i%perWorker), http.MethodGet, "")
			}
		}()
	}
	wg.Wait()

	if n := r.EndpointCount(); n != registrars*perWorker+1 {
		t.Fatalf("endpoint count = %d, want %d", n, registrars*perWorker+1)
	}
}

func TestResetReturnsToUninitialized(t *testing.T) {
	r := router.New()
	r.RegisterModuleFactory(func() (router.Module, error) {
		return router.ModuleFunc(func(reg router.Registrar) error {
			reg.RegisterHandler("/m", http.MethodGet, helloHandler)
			return nil
		}), nil
	})
	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !r.Initialized() {
		t.Fatal("router should report initialized")
	}

	r.Reset()

	if r.Initialized() {
		t.Fatal("router still initialized after Reset")
	}
	if n := r.EndpointCount(); n != 0 {
		t.Fatalf("endpoints survived Reset: %d", n)
	}
	if n := r.ModuleCount(); n != 0 {
		t.Fatalf("factories survived Reset: %d", n)
	}
	if body, status, handled := r.HandleRequest("/m", http.MethodGet, ""); handled ||
		status != http.StatusInternalServerError || body != "Router not initialized" {
		t.Fatalf("post-Reset dispatch -> (%q, %d, %v)", body, status, handled)
	}
}

func TestDefaultReturnsOneRouter(t *testing.T) {
	const callers = 32

	var wg sync.WaitGroup
	got := make([]*router.Router, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = router.Default()
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if got[i] != got[0] {
			t.Fatal("Default returned different routers")
		}
	}
}

// TestDispatchScenarios drives the dispatch contract from a JSON
// scenario file, the same way application modules exercise theirs.
func TestDispatchScenarios(t *testing.T) {
	r := quietRouter()
	r.RegisterHandler("/status", http.MethodGet, func(path, method, body string) (string, int) {
		return `{"ok":true,"service":"registry"}`, http.StatusOK
	})
	r.RegisterHandler("/echo", http.MethodPost, func(path, method, body string) (string, int) {
		return body, http.StatusOK
	})
	r.RegisterHandler("/boom", http.MethodGet, func(path, method, body string) (string, int) {
		panic("scenario probe")
	})
	if err := r.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	testkit.Run(t, r, filepath.Join("testdata", "dispatch.json"))
}
