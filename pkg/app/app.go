// Package app assembles and runs a setu application: a router fed by
// module factories, a service container, and the HTTP bridge that
// carries requests into the dispatcher.
//
// # Minimal usage (any Go project)
//
//	package main
//
//	import (
//	    "github.com/setulabs/setu/app/modules/hello"
//	    "github.com/setulabs/setu/pkg/app"
//	)
//
//	func main() {
//	    app.New().
//	        Modules(hello.New).
//	        Run()
//	}
//
// Then:
//
//	go run . serve
//	go run . routes
//	go run . token --role admin
package app

import (
	"fmt"
	"os"
	"sync"

	"github.com/setulabs/setu/pkg/container"
	"github.com/setulabs/setu/pkg/database"
	"github.com/setulabs/setu/pkg/event"
	"github.com/setulabs/setu/pkg/logger"
	"github.com/setulabs/setu/pkg/migration"
	"github.com/setulabs/setu/pkg/queue"
	"github.com/setulabs/setu/pkg/router"
	"github.com/setulabs/setu/pkg/schedule"
	"github.com/setulabs/setu/pkg/sse"
)

// ─── Application Builder ──────────────────────────────────────────────────────

// Application is the central configuration object for a setu project.
// Build one with New(), attach modules and services, then call Run().
type Application struct {
	rt *router.Router
	c  *container.Container

	serviceFns []func(*container.Container)
	eventFns   []func(*event.Bus)
	jobFns     []func(*queue.Queue)
	schedFns   []func(*schedule.Scheduler)
	models     []interface{}
	migrations []migration.Migration
	seeders    []database.Seeder

	bootOnce sync.Once
	bootErr  error

	sinks *logger.Fanout
	bus   *event.Bus
	feed  *sse.Feed
	queue *queue.Queue
	sched *schedule.Scheduler
}

// New creates an Application around a fresh router and container.
func New() *Application {
	return &Application{
		rt: router.New(),
		c:  container.New(),
	}
}

// Router exposes the application's router so consumers can hand it to
// module constructors that need it (the admin and gql modules do).
func (a *Application) Router() *router.Router { return a.rt }

// Container exposes the application's service container for module
// constructors and service registration outside the builder flow.
func (a *Application) Container() *container.Container { return a.c }

// Modules records module factories with the router. They are
// instantiated when the kernel initializes the router during boot. You
// may call Modules() multiple times; factories accumulate in order.
func (a *Application) Modules(factories ...router.ModuleFactory) *Application {
	for _, f := range factories {
		a.rt.RegisterModuleFactory(f)
	}
	return a
}

// Services registers a callback that populates the container at boot,
// after the database, cache, event bus, and queue registrations are in
// place. Callbacks run in registration order.
func (a *Application) Services(fn func(*container.Container)) *Application {
	a.serviceFns = append(a.serviceFns, fn)
	return a
}

// Events registers a callback that subscribes listeners on the event
// bus at boot, before any request can publish.
func (a *Application) Events(fn func(*event.Bus)) *Application {
	a.eventFns = append(a.eventFns, fn)
	return a
}

// Jobs registers a callback that attaches job factories to the queue
// at boot. It is skipped when QUEUE_DRIVER=none.
func (a *Application) Jobs(fn func(*queue.Queue)) *Application {
	a.jobFns = append(a.jobFns, fn)
	return a
}

// Schedule registers a callback that adds recurring tasks to the
// scheduler at boot. The scheduler only ticks while serving.
func (a *Application) Schedule(fn func(*schedule.Scheduler)) *Application {
	a.schedFns = append(a.schedFns, fn)
	return a
}

// AutoMigrate adds GORM models migrated at boot when a database is
// configured. Pass model pointers: app.New().AutoMigrate(&User{}).
func (a *Application) AutoMigrate(models ...interface{}) *Application {
	a.models = append(a.models, models...)
	return a
}

// Migrations records versioned migrations for the `db migrate`,
// `db rollback`, and `db status` commands. Unlike AutoMigrate these
// never run implicitly at boot.
func (a *Application) Migrations(ms ...migration.Migration) *Application {
	a.migrations = append(a.migrations, ms...)
	return a
}

// Seeders records the seeders `db seed` runs, in order.
func (a *Application) Seeders(ss ...database.Seeder) *Application {
	a.seeders = append(a.seeders, ss...)
	return a
}

// Run executes the CLI. With no arguments it serves; otherwise the
// subcommand decides (routes, modules, services, schedule, token, db,
// queue). This is the only call a main() needs.
func (a *Application) Run() {
	if err := Execute(a); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
