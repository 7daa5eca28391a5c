// Package gql serves the introspection schema over POST /graphql.
package gql

import (
	"encoding/json"
	"fmt"
	"net/http"

	graphqlgo "github.com/graphql-go/graphql"

	"github.com/setulabs/setu/pkg/bind"
	"github.com/setulabs/setu/pkg/container"
	"github.com/setulabs/setu/pkg/graphql"
	"github.com/setulabs/setu/pkg/respond"
	"github.com/setulabs/setu/pkg/router"
)

// Module executes queries against the schema built at Initialize time.
// The schema's resolvers read live registry state, so the snapshot is of
// the schema shape only.
type Module struct {
	schema graphqlgo.Schema
}

// New returns a router.ModuleFactory bound to the given router and
// container.
func New(rt *router.Router, c *container.Container) router.ModuleFactory {
	return func() (router.Module, error) {
		schema, err := graphql.Schema(rt, c)
		if err != nil {
			return nil, fmt.Errorf("gql: build schema: %w", err)
		}
		return &Module{schema: schema}, nil
	}
}

// RegisterEndpoints attaches POST /graphql.
func (m *Module) RegisterEndpoints(reg router.Registrar) error {
	reg.RegisterHandler("/graphql", "POST", m.query)
	return nil
}

type queryInput struct {
	Query         string                 `json:"query" validate:"required"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// query runs one GraphQL request. Per convention the response is always
// a 200 with any field errors inside the result body.
func (m *Module) query(path, method, body string) (string, int) {
	var in queryInput
	if errs, err := bind.JSON(body, &in); err != nil {
		return respond.BadRequest(err.Error())
	} else if len(errs) > 0 {
		return respond.ValidationError(errs)
	}

	result := graphqlgo.Do(graphqlgo.Params{
		Schema:         m.schema,
		RequestString:  in.Query,
		VariableValues: in.Variables,
		OperationName:  in.OperationName,
	})

	out, err := json.Marshal(result)
	if err != nil {
		return respond.Error(http.StatusInternalServerError, "Could not encode result")
	}
	return string(out), http.StatusOK
}
