// Package admin surfaces the registry's introspection over /admin
// endpoints: the route table, module counts, and container contents.
//
// The transport bridge guards the /admin prefix with token auth; the
// module itself only reads state and stays transport-agnostic.
package admin

import (
	"errors"
	"strings"

	"github.com/setulabs/setu/pkg/collection"
	"github.com/setulabs/setu/pkg/container"
	"github.com/setulabs/setu/pkg/queue"
	"github.com/setulabs/setu/pkg/respond"
	"github.com/setulabs/setu/pkg/router"
)

// Module reads introspection state from the router and container it was
// built around.
type Module struct {
	rt *router.Router
	c  *container.Container
}

// New returns a router.ModuleFactory bound to the given router and
// container.
func New(rt *router.Router, c *container.Container) router.ModuleFactory {
	return func() (router.Module, error) {
		if rt == nil || c == nil {
			return nil, errors.New("admin: nil router or container")
		}
		return &Module{rt: rt, c: c}, nil
	}
}

// RegisterEndpoints attaches the introspection endpoints.
func (m *Module) RegisterEndpoints(reg router.Registrar) error {
	reg.RegisterHandler("/admin/routes", "GET", m.routes)
	reg.RegisterHandler("/admin/modules", "GET", m.modules)
	reg.RegisterHandler("/admin/services", "GET", m.services)
	reg.RegisterHandler("/admin/jobs", "GET", m.jobs)
	return nil
}

func (m *Module) routes(path, method, body string) (string, int) {
	endpoints := m.rt.Endpoints()
	byMethod := collection.GroupBy(endpoints, func(ep string) string {
		return ep[strings.LastIndex(ep, ":")+1:]
	})
	return respond.OK(map[string]interface{}{
		"count":     m.rt.EndpointCount(),
		"endpoints": endpoints,
		"by_method": byMethod,
	})
}

func (m *Module) modules(path, method, body string) (string, int) {
	return respond.OK(map[string]interface{}{
		"registered":  m.rt.ModuleCount(),
		"active":      m.rt.ActiveModules(),
		"initialized": m.rt.Initialized(),
	})
}

func (m *Module) services(path, method, body string) (string, int) {
	return respond.OK(map[string]interface{}{
		"count":    m.c.Count(),
		"services": m.c.TypeNames(),
		"summary":  m.c.Info(),
	})
}

// jobs reports the queue's retained failures. With QUEUE_DRIVER=none
// there is no queue in the container and the endpoint says so.
func (m *Module) jobs(path, method, body string) (string, int) {
	q, err := container.Resolve[*queue.Queue](m.c)
	if err != nil {
		return respond.OK(map[string]interface{}{"enabled": false})
	}
	return respond.OK(map[string]interface{}{
		"enabled":      true,
		"failed_count": q.FailedCount(),
		"failed":       q.FailedJobs(),
	})
}
