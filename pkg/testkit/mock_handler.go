package testkit

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

// ─── HandlerMock — testify-backed dispatch spy ────────────────────────────────

// HandlerMock is a testify/mock-backed dispatch handler. Register its
// Func() on a router under test, then assert on calls afterwards:
//
//	hm := testkit.NewHandlerMock(`{"status":"ok"}`, 200)
//	rt.RegisterHandler("/ping", "GET", hm.Func())
//	...
//	hm.Mock().AssertNumberOfCalls(t, "Handle", 1)
type HandlerMock struct {
	m      mock.Mock
	mu     sync.Mutex
	calls  int
	body   string
	status int
}

// NewHandlerMock creates a HandlerMock that answers every dispatch with
// the given body and status.
func NewHandlerMock(body string, status int) *HandlerMock {
	hm := &HandlerMock{body: body, status: status}
	// Default: accept any call and return the configured response.
	hm.m.On("Handle", mock.Anything, mock.Anything, mock.Anything).Return(body, status)
	return hm
}

// Func returns the handler to register. Its signature matches the
// router's HandlerFunc, so the value assigns directly.
func (hm *HandlerMock) Func() func(path, method, body string) (string, int) {
	return func(path, method, body string) (string, int) {
		hm.mu.Lock()
		hm.calls++
		hm.mu.Unlock()

		// MethodCalled, not Called: Called infers the method name from the
		// calling function, which inside this closure would be "func1", not
		// the "Handle" name the expectations are registered under.
		args := hm.m.MethodCalled("Handle", path, method, body)
		return args.String(0), args.Int(1)
	}
}

// Calls returns how many times the handler ran since the last Reset.
func (hm *HandlerMock) Calls() int {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return hm.calls
}

// Reset clears testify call records and resets the call counter.
func (hm *HandlerMock) Reset() {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.calls = 0
	hm.m.Calls = nil // clear testify history
	// Re-register the default expectation after reset.
	hm.m.ExpectedCalls = nil
	hm.m.On("Handle", mock.Anything, mock.Anything, mock.Anything).Return(hm.body, hm.status)
}

// Mock exposes the underlying testify mock for advanced expectations.
func (hm *HandlerMock) Mock() *mock.Mock { return &hm.m }
