// Package graphql exposes the registry's introspection surface as a
// GraphQL schema: registered endpoints, module counts, and container
// services. The gql module serves it over POST /graphql.
package graphql

import (
	"strings"

	"github.com/graphql-go/graphql"

	"github.com/setulabs/setu/pkg/collection"
	"github.com/setulabs/setu/pkg/container"
	"github.com/setulabs/setu/pkg/router"
)

// Schema builds the introspection schema over rt and c. Resolvers read
// live state, so a query always reflects the current registry.
func Schema(rt *router.Router, c *container.Container) (graphql.Schema, error) {
	endpointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Endpoint",
		Fields: graphql.Fields{
			"path":   &graphql.Field{Type: graphql.String},
			"method": &graphql.Field{Type: graphql.String},
		},
	})

	moduleStatsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ModuleStats",
		Fields: graphql.Fields{
			"registered": &graphql.Field{Type: graphql.Int},
			"active":     &graphql.Field{Type: graphql.Int},
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"initialized": &graphql.Field{
				Type: graphql.Boolean,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return rt.Initialized(), nil
				},
			},
			"endpointCount": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return rt.EndpointCount(), nil
				},
			},
			"endpoints": &graphql.Field{
				Type: graphql.NewList(endpointType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return splitEndpoints(rt.Endpoints()), nil
				},
			},
			"modules": &graphql.Field{
				Type: moduleStatsType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return map[string]interface{}{
						"registered": rt.ModuleCount(),
						"active":     rt.ActiveModules(),
					}, nil
				},
			},
			"services": &graphql.Field{
				Type: graphql.NewList(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return c.TypeNames(), nil
				},
			},
			"servicesInfo": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return c.Info(), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

// splitEndpoints turns the router's "path:method" listing into the field
// maps the default resolver reads (it resolves map[string]interface{}
// sources only). The method never contains a colon, so the split is on
// the last one.
func splitEndpoints(eps []string) []map[string]interface{} {
	return collection.Map(eps, func(ep string) map[string]interface{} {
		idx := strings.LastIndex(ep, ":")
		if idx < 0 {
			return map[string]interface{}{"path": ep, "method": ""}
		}
		return map[string]interface{}{"path": ep[:idx], "method": ep[idx+1:]}
	})
}
