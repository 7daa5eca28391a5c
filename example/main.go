// Package main is a minimal project built on the setu framework. It runs
// entirely in memory: no database, no Redis, no env file required.
//
// To run this example:
//
//	DB_DRIVER=none go run . serve
//	# Then: curl http://localhost:8080/ping
//	#       curl http://localhost:8080/users
package main

import (
	"github.com/setulabs/setu/app/modules/hello"
	"github.com/setulabs/setu/app/modules/users"
	"github.com/setulabs/setu/app/repositories"
	"github.com/setulabs/setu/app/services"
	"github.com/setulabs/setu/pkg/app"
	"github.com/setulabs/setu/pkg/cache"
	"github.com/setulabs/setu/pkg/container"
	"github.com/setulabs/setu/pkg/router"
)

func main() {
	a := app.New()

	a.Modules(
		hello.New,
		users.New(a.Container()),
		pingModule,
	).
		Services(func(c *container.Container) {
			// An in-memory repository and cache keep the example self
			// contained. Swap in repositories.NewGorm for persistence.
			container.Register(c, services.NewUserService(
				repositories.NewMemory(), cache.NewMemory(),
			))
		}).
		Run()
}

// pingModule shows the lightweight path: a bare function instead of a
// module struct.
func pingModule() (router.Module, error) {
	return router.ModuleFunc(func(reg router.Registrar) error {
		reg.RegisterHandler("/ping", "GET", func(path, method, body string) (string, int) {
			return `{"pong":true}`, 200
		})
		return nil
	}), nil
}
