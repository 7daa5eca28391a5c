// Package testkit — runner.go
//
// Run() executes a single scenario against a Dispatcher.
// RunDir() discovers all *.json files in a directory and runs them as subtests.
package testkit

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Dispatcher is the surface a scenario runs against. *router.Router
// satisfies it, as does anything else that answers (body, status,
// handled) for a request.
type Dispatcher interface {
	HandleRequest(path, method, body string) (string, int, bool)
}

// ─── Public API ───────────────────────────────────────────────────────────────

// Run executes a single scenario from a JSON file against the provided
// dispatcher.
//
// Lifecycle per scenario:
//  1. Load the scenario JSON file.
//  2. For each step, read the request body from bodyFileName (if set).
//  3. Dispatch the step.
//  4. Assert status code and handled flag.
//  5. Assert the response body (exact, substring, or JSON diff).
func Run(t *testing.T, d Dispatcher, scenarioPath string) {
	t.Helper()

	s, err := LoadScenario(scenarioPath)
	if err != nil {
		t.Fatalf("testkit: load scenario %q: %v", scenarioPath, err)
	}

	t.Run(s.Name, func(t *testing.T) {
		runScenario(t, d, s)
	})
}

// RunDir discovers every *.json file in dir and runs each as a t.Run subtest.
// Scenario files that fail to parse are reported as test failures (not fatal).
func RunDir(t *testing.T, d Dispatcher, dir string) {
	t.Helper()

	pattern := filepath.Join(dir, "*.json")
	entries, err := filepath.Glob(pattern)
	if err != nil || len(entries) == 0 {
		t.Fatalf("testkit: no scenario files found in %q", dir)
	}

	for _, path := range entries {
		s, err := LoadScenario(path)
		if err != nil {
			t.Errorf("testkit: load %q: %v", path, err)
			continue
		}

		t.Run(s.Name, func(t *testing.T) {
			runScenario(t, d, s)
		})
	}
}

// ─── Internal execution ───────────────────────────────────────────────────────

func runScenario(t *testing.T, d Dispatcher, s *Scenario) {
	t.Helper()

	for i, step := range s.Steps {

		// ── 1. Build request body ─────────────────────────────────────

		body := step.Body
		if p := s.BodyPath(step); p != "" {
			data, err := os.ReadFile(p)
			if err != nil {
				t.Fatalf("[%s] step %d: read body file %q: %v", s.Name, i, p, err)
			}
			body = string(data)
		}

		// ── 2. Dispatch ───────────────────────────────────────────────

		respBody, status, handled := d.HandleRequest(step.Path, step.Method, body)

		// ── 3. Assert ─────────────────────────────────────────────────

		AssertStep(t, s, i, step, respBody, status, handled)
	}
}

// ─── Debug helpers ────────────────────────────────────────────────────────────

// DumpScenario prints a human-readable summary of the scenario to stdout.
// Useful during test development to inspect what was loaded.
func DumpScenario(s *Scenario) {
	fmt.Printf("Scenario: %s\n", s.Name)
	if s.Description != "" {
		fmt.Printf("  %s\n", s.Description)
	}
	for i, step := range s.Steps {
		fmt.Printf("  step[%d]: %s %s → %d (handled=%v)\n",
			i, step.Method, step.Path, step.ExpectedStatus, step.Handled())
		if step.BodyFileName != "" {
			fmt.Printf("    bodyFile: %s\n", step.BodyFileName)
		}
	}
}
