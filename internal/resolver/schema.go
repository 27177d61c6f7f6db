package resolver

import (
	"graphql-app-example/internal/cursor"
	"graphql-app-example/internal/store"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// cursorScalar carries page cursors as strings.
var cursorScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "Cursor",
	Description: "Page-number cursor, serialized as a decimal string.",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case cursor.Cursor:
			return string(v)
		case *cursor.Cursor:
			if v == nil {
				return nil
			}
			return string(*v)
		case string:
			return v
		default:
			return nil
		}
	},
	ParseValue: func(value interface{}) interface{} {
		switch v := value.(type) {
		case string:
			return cursor.Cursor(v)
		case *string:
			if v == nil {
				return nil
			}
			return cursor.Cursor(*v)
		default:
			return nil
		}
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		if v, ok := valueAST.(*ast.StringValue); ok {
			return cursor.Cursor(v.Value)
		}
		return nil
	},
})

// BuildGraphQLSchema constructs the executable schema.
func (r *Resolver) BuildGraphQLSchema() (graphql.Schema, error) {
	countryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Country",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.ID),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return formatID(p.Source.(store.Country).ID), nil
				},
			},
			"name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(store.Country).Name, nil
				},
			},
		},
	})

	userType := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.ID),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return formatID(p.Source.(*userNode).ID), nil
				},
			},
			"name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*userNode).Name, nil
				},
			},
			"country": &graphql.Field{
				Type:    graphql.NewNonNull(countryType),
				Resolve: r.resolveUserCountry,
			},
		},
	})

	pageInfoType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PageInfo",
		Fields: graphql.Fields{
			"startCursor": &graphql.Field{
				Type: cursorScalar,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return optionalCursor(p.Source.(*pageInfo).startCursor), nil
				},
			},
			"endCursor": &graphql.Field{
				Type: cursorScalar,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return optionalCursor(p.Source.(*pageInfo).endCursor), nil
				},
			},
			"hasNextPage": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*pageInfo).hasNextPage, nil
				},
			},
		},
	})

	userEdgeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "UserEdge",
		Fields: graphql.Fields{
			"node": &graphql.Field{
				Type: graphql.NewNonNull(userType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*userEdge).node, nil
				},
			},
			"cursor": &graphql.Field{
				Type: graphql.NewNonNull(cursorScalar),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*userEdge).cursor, nil
				},
			},
		},
	})

	userConnectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "UserConnection",
		Fields: graphql.Fields{
			"edges": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(userEdgeType))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*userConnection).edges, nil
				},
			},
			"pageInfo": &graphql.Field{
				Type: graphql.NewNonNull(pageInfoType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*userConnection).pageInfo, nil
				},
			},
			"totalCount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*userConnection).totalCount, nil
				},
			},
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"users": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(userType))),
				Resolve: r.resolveUsers,
			},
			"userConnections": &graphql.Field{
				Type: graphql.NewNonNull(userConnectionType),
				Args: graphql.FieldConfigArgument{
					"after": &graphql.ArgumentConfig{Type: cursorScalar},
					"first": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: r.resolveUserConnections,
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"noop": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Resolve: func(graphql.ResolveParams) (interface{}, error) {
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
}

func optionalCursor(c *cursor.Cursor) interface{} {
	if c == nil {
		return nil
	}
	return *c
}
