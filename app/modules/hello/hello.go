// Package hello is the smallest possible module: a greeting and an
// echo. It exists so a fresh checkout has something to dispatch to.
package hello

import (
	"net/http"

	"github.com/setulabs/setu/pkg/router"
)

// Module owns the hello endpoints.
type Module struct{}

// New is a router.ModuleFactory.
func New() (router.Module, error) {
	return &Module{}, nil
}

// RegisterEndpoints attaches GET /hello and POST /echo.
func (m *Module) RegisterEndpoints(reg router.Registrar) error {
	reg.RegisterHandler("/hello", "GET", m.hello)
	reg.RegisterHandler("/echo", "POST", m.echo)
	return nil
}

func (m *Module) hello(path, method, body string) (string, int) {
	return "Hello, World!", http.StatusOK
}

func (m *Module) echo(path, method, body string) (string, int) {
	return body, http.StatusOK
}
