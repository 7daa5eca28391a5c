// Package testkit_test demonstrates how to use testkit.RunDir() to drive
// dispatch tests entirely from JSON scenario files.
//
// Usage in YOUR project:
//
//  1. Copy your scenario JSON files into a testdata/ (or fixtures/) directory.
//  2. Call testkit.RunDir(t, yourRouter, "testdata")
//  3. go test ./... — each scenario becomes a named subtest.
//
// Advanced: assert on individual handlers with HandlerMock
//
//	func TestPingDispatched(t *testing.T) {
//	    hm := testkit.NewHandlerMock(`{"status":"ok"}`, 200)
//	    rt.RegisterHandler("/ping", "GET", hm.Func())
//
//	    testkit.Run(t, rt, "fixtures/ping.json")
//
//	    hm.Mock().AssertNumberOfCalls(t, "Handle", 1)
//	}
package testkit_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/setulabs/setu/pkg/router"
	"github.com/setulabs/setu/pkg/testkit"
)

// ─── Minimal test dispatcher ──────────────────────────────────────────────────

// newTestRouter builds the tiny router that powers the testkit self-tests.
// In real projects, replace with your fully assembled application router.
func newTestRouter(t *testing.T) *router.Router {
	t.Helper()

	rt := router.New(router.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	rt.RegisterHandler("/health", "GET", func(path, method, body string) (string, int) {
		return `{"status":"ok"}`, 200
	})
	rt.RegisterHandler("/echo", "POST", func(path, method, body string) (string, int) {
		return body, 200
	})
	if err := rt.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return rt
}

// ─── RunDir: run ALL fixtures/*.json as subtests ──────────────────────────────

// TestRunDir_Fixtures demonstrates RunDir — one test function drives all
// JSON scenarios found in the fixtures directory.
func TestRunDir_Fixtures(t *testing.T) {
	testkit.RunDir(t, newTestRouter(t), "fixtures")
}

// ─── Scenario loading ─────────────────────────────────────────────────────────

// TestScenario_Load shows the loaded schema and defaulting behaviour.
func TestScenario_Load(t *testing.T) {
	s, err := testkit.LoadScenario("fixtures/dispatch_failures.json")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	testkit.DumpScenario(s)

	assert.Equal(t, "Dispatch failures", s.Name)
	assert.Len(t, s.Steps, 3)

	first := s.Steps[0]
	assert.Equal(t, "/missing", first.Path)
	assert.Equal(t, "GET", first.Method)
	assert.Equal(t, 404, first.ExpectedStatus)
	assert.False(t, first.Handled(), "failure steps expect handled=false")

	// expectedHandled defaults to true when the JSON leaves it out.
	happy, err := testkit.LoadScenario("fixtures/health_echo.json")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	assert.True(t, happy.Steps[0].Handled())
}

// TestScenario_Invalid verifies validation of malformed scenario files.
func TestScenario_Invalid(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		return path
	}

	cases := []struct {
		name    string
		content string
	}{
		{"missing_name.json", `{"steps":[{"path":"/x","method":"GET","expectedStatus":200}]}`},
		{"no_steps.json", `{"name":"empty"}`},
		{"no_status.json", `{"name":"bad","steps":[{"path":"/x","method":"GET"}]}`},
		{"both_bodies.json", `{"name":"bad","steps":[{"path":"/x","method":"POST","body":"a","bodyFileName":"b.json","expectedStatus":200}]}`},
	}
	for _, tc := range cases {
		if _, err := testkit.LoadScenario(write(tc.name, tc.content)); err == nil {
			t.Errorf("%s: expected a validation error", tc.name)
		}
	}
}

// ─── HandlerMock ──────────────────────────────────────────────────────────────

// TestHandlerMock verifies the testify-backed dispatch spy records calls.
func TestHandlerMock(t *testing.T) {
	rt := router.New(router.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	hm := testkit.NewHandlerMock(`{"status":"ok"}`, 200)
	rt.RegisterHandler("/ping", "GET", hm.Func())
	if err := rt.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	body, status, handled := rt.HandleRequest("/ping", "GET", "")
	assert.True(t, handled)
	assert.Equal(t, 200, status)
	assert.Equal(t, `{"status":"ok"}`, body)

	rt.HandleRequest("/ping", "GET", "again")

	assert.Equal(t, 2, hm.Calls())
	hm.Mock().AssertNumberOfCalls(t, "Handle", 2)
	hm.Mock().AssertCalled(t, "Handle", "/ping", "GET", "again")

	hm.Reset()
	assert.Equal(t, 0, hm.Calls())
}

// ─── JSON assertion unit test ─────────────────────────────────────────────────

// TestAssertJSONBody verifies the JSON deep-diff assertion.
func TestAssertJSONBody(t *testing.T) {
	// Matching JSON (different whitespace / key order) — should pass.
	expected := []byte(`{"name":"Asha","age":30}`)
	actual := []byte(`{"age":  30, "name": "Asha"}`)
	testkit.AssertJSONBody(t, "[json assert test]", expected, actual)
}
