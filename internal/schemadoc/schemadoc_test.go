package schemadoc

import (
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	doc, err := Parse()
	require.NoError(t, err)

	for _, name := range []string{"Query", "Mutation", "User", "Country", "UserConnection", "UserEdge", "PageInfo", "Cursor"} {
		assert.Contains(t, doc.Types, name)
	}
	field := doc.Types["Query"].Fields.ForName("userConnections")
	require.NotNil(t, field)
	assert.Equal(t, "UserConnection!", field.Type.String())
	assert.Equal(t, "Int!", field.Arguments.ForName("first").Type.String())
	assert.Equal(t, "Cursor", field.Arguments.ForName("after").Type.String())
}

func TestDDL(t *testing.T) {
	statements := DDL()
	require.Len(t, statements, 3)
	assert.Contains(t, statements[0], "CREATE TABLE countries")
	assert.Contains(t, statements[1], "CREATE TABLE users")
}

func TestVerify_ReportsDrift(t *testing.T) {
	country := graphql.NewObject(graphql.ObjectConfig{
		Name: "Country",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name": &graphql.Field{Type: graphql.String},
			"code": &graphql.Field{Type: graphql.String},
		},
	})
	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name: "Query",
			Fields: graphql.Fields{
				"country": &graphql.Field{Type: country},
			},
		}),
	})
	require.NoError(t, err)

	err = Verify(schema)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "Country.name has type String, want String!")
	assert.Contains(t, msg, "Country.code is not in schema.graphql")
	assert.Contains(t, msg, "Query.country is not in schema.graphql")
	assert.Contains(t, msg, "Query.users is not defined")
	assert.Contains(t, msg, "type User is not defined")
	assert.Contains(t, msg, "scalar Cursor is not defined")
}
