package hello_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/setulabs/setu/app/modules/hello"
	"github.com/setulabs/setu/pkg/router"
	"github.com/setulabs/setu/pkg/testkit"
)

func newRouter(t *testing.T) *router.Router {
	t.Helper()

	rt := router.New(router.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	rt.RegisterModuleFactory(hello.New)
	if err := rt.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return rt
}

func TestHelloScenarios(t *testing.T) {
	testkit.RunDir(t, newRouter(t), "testdata")
}

func TestEchoReturnsBodyVerbatim(t *testing.T) {
	rt := newRouter(t)

	body, status, handled := rt.HandleRequest("/echo", "POST", "plain text, not JSON")
	if !handled || status != 200 {
		t.Fatalf("echo: handled=%v status=%d", handled, status)
	}
	if body != "plain text, not JSON" {
		t.Errorf("echo body = %q", body)
	}
}
