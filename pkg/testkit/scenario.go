// Package testkit provides a JSON-scenario-driven dispatch testing
// framework.
//
// Each scenario is a JSON file that describes a sequence of requests to
// dispatch and the response each one must produce:
//   - The request to fire (path, method, body or body file)
//   - Expected status code and handled flag
//   - Expected response body (exact, substring, or structural JSON)
//
// Scenario files live next to your *_test.go files:
//
//	testdata/
//	  hello.json             ← scenario
//	  create_user_req.json   ← request body referenced by a step
//
// Example _test.go:
//
//	func TestDispatch(t *testing.T) {
//	    rt := router.New()
//	    rt.RegisterModuleFactory(hello.New)
//	    rt.Initialize()
//	    testkit.RunDir(t, rt, "testdata")
//	}
package testkit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ─── Schema ───────────────────────────────────────────────────────────────────

// Scenario describes a single dispatch test case loaded from a JSON file.
// Steps run in order against one dispatcher, so later steps observe the
// effects of earlier ones.
type Scenario struct {
	// Meta
	Name        string `json:"name"`
	Description string `json:"description"`

	// Steps — dispatched in definition order.
	Steps []Step `json:"steps"`

	// resolved at load time — not in JSON
	dir string // directory of the scenario file
}

// Step describes one dispatched request and its expected response.
//
// Path and method are passed to the dispatcher verbatim, with no
// defaulting or case folding, so validation failures (empty path, empty
// method) are expressible as steps.
type Step struct {
	// Request
	Path         string `json:"path"`
	Method       string `json:"method"`
	Body         string `json:"body"`
	BodyFileName string `json:"bodyFileName"` // request body file (relative to scenario dir), overrides body

	// Response assertions
	ExpectedStatus  int             `json:"expectedStatus"`  // required
	ExpectedHandled *bool           `json:"expectedHandled"` // defaults to true
	ExpectedBody    string          `json:"expectedBody"`    // exact match when set
	BodyContains    string          `json:"bodyContains"`    // substring match when set
	ExpectedJSON    json.RawMessage `json:"expectedJson"`    // structural JSON match when set
}

// Handled returns the expected handled flag, defaulting to true when the
// scenario leaves it unset.
func (st Step) Handled() bool {
	if st.ExpectedHandled == nil {
		return true
	}
	return *st.ExpectedHandled
}

// ─── Loading ──────────────────────────────────────────────────────────────────

// LoadScenario reads and validates a scenario from a JSON file.
func LoadScenario(path string) (*Scenario, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: resolve path %q: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", abs, err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", abs, err)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("testkit: invalid scenario %q: %w", abs, err)
	}

	s.dir = filepath.Dir(abs)
	return &s, nil
}

// validate performs basic sanity checks on the loaded scenario.
func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, st := range s.Steps {
		if st.ExpectedStatus == 0 {
			return fmt.Errorf("steps[%d].expectedStatus is required", i)
		}
		if st.Body != "" && st.BodyFileName != "" {
			return fmt.Errorf("steps[%d]: body and bodyFileName are mutually exclusive", i)
		}
		if len(st.ExpectedJSON) > 0 && !json.Valid(st.ExpectedJSON) {
			return fmt.Errorf("steps[%d].expectedJson is not valid JSON", i)
		}
	}
	return nil
}

// BodyPath returns the absolute path to the step's request body file,
// resolved relative to the scenario file's directory.
// Returns "" when BodyFileName is not set.
func (s *Scenario) BodyPath(st Step) string {
	if st.BodyFileName == "" {
		return ""
	}
	if filepath.IsAbs(st.BodyFileName) {
		return st.BodyFileName
	}
	return filepath.Join(s.dir, st.BodyFileName)
}

// LoadAllFromDir loads every *.json file in dir as a Scenario.
// Files that fail to parse are collected as errors, not panicked.
func LoadAllFromDir(dir string) ([]*Scenario, []error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(entries) == 0 {
		return nil, []error{fmt.Errorf("testkit: no scenario files found in %q", dir)}
	}

	var (
		scenarios []*Scenario
		errs      []error
	)
	for _, path := range entries {
		s, err := LoadScenario(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, errs
}
