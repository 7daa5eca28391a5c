// Command setu boots the full demo application: the hello, users,
// admin, and gql modules assembled over the framework kernel.
//
//	setu                      # serve on APP_PORT
//	setu routes               # print the endpoint table
//	setu db migrate           # apply versioned migrations
//	setu db seed              # create the admin account
//	setu token --role admin   # mint a token for /admin
package main

import (
	"context"

	"gorm.io/gorm"

	"github.com/setulabs/setu/app/jobs"
	"github.com/setulabs/setu/app/models"
	"github.com/setulabs/setu/app/modules/admin"
	"github.com/setulabs/setu/app/modules/gql"
	"github.com/setulabs/setu/app/modules/hello"
	"github.com/setulabs/setu/app/modules/users"
	"github.com/setulabs/setu/app/repositories"
	"github.com/setulabs/setu/app/services"
	"github.com/setulabs/setu/database/migrations"
	"github.com/setulabs/setu/database/seeders"
	"github.com/setulabs/setu/pkg/app"
	"github.com/setulabs/setu/pkg/cache"
	"github.com/setulabs/setu/pkg/container"
	"github.com/setulabs/setu/pkg/event"
	"github.com/setulabs/setu/pkg/logger"
	"github.com/setulabs/setu/pkg/queue"
	"github.com/setulabs/setu/pkg/schedule"
)

func main() {
	a := app.New()

	a.Modules(
		hello.New,
		users.New(a.Container()),
		admin.New(a.Router(), a.Container()),
		gql.New(a.Router(), a.Container()),
	).
		Services(registerServices).
		Events(registerListeners(a)).
		Jobs(registerJobs).
		Schedule(registerTasks(a)).
		Migrations(migrations.All()...).
		Seeders(seeders.All()...).
		AutoMigrate(&models.User{}).
		Run()
}

// registerServices wires the user service chain into the container. The
// factories resolve their own dependencies, so construction stays lazy:
// nothing touches the database until the first request needs it.
func registerServices(c *container.Container) {
	container.RegisterFactory(c, func() (repositories.UserRepository, error) {
		db, err := container.Resolve[*gorm.DB](c)
		if err != nil {
			return nil, err
		}
		return repositories.NewGorm(db), nil
	})

	container.RegisterFactory(c, func() (*services.UserService, error) {
		repo, err := container.Resolve[repositories.UserRepository](c)
		if err != nil {
			return nil, err
		}
		store, err := container.Resolve[cache.Store](c)
		if err != nil {
			return nil, err
		}
		bus, err := container.Resolve[*event.Bus](c)
		if err != nil {
			return nil, err
		}
		return services.NewUserService(repo, store, services.WithEvents(bus)), nil
	})
}

// registerListeners fans domain events out to background work. The
// queue is resolved per event because QUEUE_DRIVER=none leaves it out
// of the container entirely.
func registerListeners(a *app.Application) func(*event.Bus) {
	return func(bus *event.Bus) {
		bus.Subscribe(services.EventUserCreated, func(payload any) {
			user, ok := payload.(models.User)
			if !ok {
				return
			}
			q, err := container.Resolve[*queue.Queue](a.Container())
			if err != nil {
				return // background processing disabled
			}
			job := jobs.WelcomeEmail{Email: user.Email, UserName: user.Name}
			if err := q.Dispatch(context.Background(), job); err != nil {
				logger.Warn("welcome mail dispatch failed", "err", err)
			}
		})
	}
}

// registerJobs attaches a factory for every job this app handles.
func registerJobs(q *queue.Queue) {
	q.Register(jobs.WelcomeEmailName, func() queue.Job { return &jobs.WelcomeEmail{} })
}

// registerTasks adds the recurring ops tasks.
func registerTasks(a *app.Application) func(*schedule.Scheduler) {
	return func(s *schedule.Scheduler) {
		s.Daily().Name("jobs.failed.report").Run(func() {
			q, err := container.Resolve[*queue.Queue](a.Container())
			if err != nil {
				return
			}
			if n := q.FailedCount(); n > 0 {
				logger.Warn("failed jobs retained", "count", n)
			}
		})
	}
}
