// Package users exposes the user service over dispatch endpoints.
//
// The service is resolved from the container on every request rather
// than captured at registration time, so a registration swapped in
// after Initialize takes effect on the next dispatch.
package users

import (
	"errors"
	"net/http"

	"github.com/setulabs/setu/app/repositories"
	"github.com/setulabs/setu/app/services"
	"github.com/setulabs/setu/pkg/bind"
	"github.com/setulabs/setu/pkg/container"
	"github.com/setulabs/setu/pkg/respond"
	"github.com/setulabs/setu/pkg/router"
)

// Module serves the users endpoints out of services resolved from c.
type Module struct {
	c *container.Container
}

// New returns a router.ModuleFactory bound to the given container.
func New(c *container.Container) router.ModuleFactory {
	return func() (router.Module, error) {
		if c == nil {
			return nil, errors.New("users: nil container")
		}
		return &Module{c: c}, nil
	}
}

// RegisterEndpoints attaches the users endpoints.
func (m *Module) RegisterEndpoints(reg router.Registrar) error {
	reg.RegisterHandler("/users", "GET", m.list)
	reg.RegisterHandler("/users", "POST", m.create)
	reg.RegisterHandler("/users/find", "POST", m.find)
	return nil
}

func (m *Module) service() (*services.UserService, error) {
	return container.Resolve[*services.UserService](m.c)
}

func (m *Module) list(path, method, body string) (string, int) {
	svc, err := m.service()
	if err != nil {
		return respond.Error(http.StatusInternalServerError, "User service unavailable")
	}

	users, err := svc.List(0, 0)
	if err != nil {
		return respond.Error(http.StatusInternalServerError, "Could not list users")
	}
	return respond.OK(users)
}

func (m *Module) create(path, method, body string) (string, int) {
	svc, err := m.service()
	if err != nil {
		return respond.Error(http.StatusInternalServerError, "User service unavailable")
	}

	var in services.CreateInput
	if errs, err := bind.JSON(body, &in); err != nil {
		return respond.BadRequest(err.Error())
	} else if len(errs) > 0 {
		return respond.ValidationError(errs)
	}

	user, err := svc.Create(in)
	if err != nil {
		if errors.Is(err, repositories.ErrEmailTaken) {
			return respond.Error(http.StatusConflict, "Email already taken")
		}
		return respond.Error(http.StatusInternalServerError, "Could not create user")
	}
	return respond.Created(user)
}

type findInput struct {
	ID uint `json:"id" validate:"required"`
}

func (m *Module) find(path, method, body string) (string, int) {
	svc, err := m.service()
	if err != nil {
		return respond.Error(http.StatusInternalServerError, "User service unavailable")
	}

	var in findInput
	if errs, err := bind.JSON(body, &in); err != nil {
		return respond.BadRequest(err.Error())
	} else if len(errs) > 0 {
		return respond.ValidationError(errs)
	}

	user, err := svc.Get(in.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return respond.NotFound("User not found")
		}
		return respond.Error(http.StatusInternalServerError, "Could not look up user")
	}
	return respond.OK(user)
}
