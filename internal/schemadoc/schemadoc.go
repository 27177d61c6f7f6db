// Package schemadoc holds the published GraphQL and SQL schema documents and
// checks the executable schema against the GraphQL one.
package schemadoc

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/vektah/gqlparser/v2"
	gqlast "github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphql
var sdl string

//go:embed schema.sql
var ddl string

// SDL returns the GraphQL schema document.
func SDL() string {
	return sdl
}

// DDL returns the table definitions backing the schema, one statement per
// semicolon.
func DDL() []string {
	var statements []string
	for _, stmt := range strings.Split(ddl, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			statements = append(statements, s)
		}
	}
	return statements
}

// Parse loads the GraphQL schema document.
func Parse() (*gqlast.Schema, error) {
	schema, err := gqlparser.LoadSchema(&gqlast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("parse schema.graphql: %w", err)
	}
	return schema, nil
}

// Verify checks that every object type, field, argument, and scalar in the
// schema document exists in the executable schema with the same type, and
// that the executable schema declares nothing beyond the document.
func Verify(executable graphql.Schema) error {
	doc, err := Parse()
	if err != nil {
		return err
	}
	return verify(doc, executable)
}

func verify(doc *gqlast.Schema, executable graphql.Schema) error {
	var problems []string
	typeMap := executable.TypeMap()

	for _, name := range sortedTypeNames(doc) {
		def := doc.Types[name]
		if def.BuiltIn {
			continue
		}
		switch def.Kind {
		case gqlast.Scalar:
			if _, ok := typeMap[name].(*graphql.Scalar); !ok {
				problems = append(problems, fmt.Sprintf("scalar %s is not defined", name))
			}
		case gqlast.Object:
			obj, ok := typeMap[name].(*graphql.Object)
			if !ok {
				problems = append(problems, fmt.Sprintf("type %s is not defined", name))
				continue
			}
			problems = append(problems, compareObject(def, obj)...)
		}
	}

	for name, typ := range typeMap {
		if _, ok := typ.(*graphql.Object); !ok || strings.HasPrefix(name, "__") {
			continue
		}
		if _, ok := doc.Types[name]; !ok {
			problems = append(problems, fmt.Sprintf("type %s is not in schema.graphql", name))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.New("schema mismatch: " + strings.Join(problems, "; "))
}

func compareObject(def *gqlast.Definition, obj *graphql.Object) []string {
	var problems []string
	fields := obj.Fields()

	for _, field := range def.Fields {
		if strings.HasPrefix(field.Name, "__") {
			continue
		}
		got, ok := fields[field.Name]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s.%s is not defined", def.Name, field.Name))
			continue
		}
		if want, have := field.Type.String(), got.Type.String(); want != have {
			problems = append(problems, fmt.Sprintf("%s.%s has type %s, want %s", def.Name, field.Name, have, want))
		}
		problems = append(problems, compareArgs(def.Name+"."+field.Name, field.Arguments, got.Args)...)
	}

	for name := range fields {
		if def.Fields.ForName(name) == nil {
			problems = append(problems, fmt.Sprintf("%s.%s is not in schema.graphql", def.Name, name))
		}
	}
	return problems
}

func compareArgs(path string, want gqlast.ArgumentDefinitionList, have []*graphql.Argument) []string {
	var problems []string
	byName := make(map[string]*graphql.Argument, len(have))
	for _, arg := range have {
		byName[arg.Name()] = arg
	}
	for _, arg := range want {
		got, ok := byName[arg.Name]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s(%s) is not defined", path, arg.Name))
			continue
		}
		if w, h := arg.Type.String(), got.Type.String(); w != h {
			problems = append(problems, fmt.Sprintf("%s(%s) has type %s, want %s", path, arg.Name, h, w))
		}
		delete(byName, arg.Name)
	}
	for name := range byName {
		problems = append(problems, fmt.Sprintf("%s(%s) is not in schema.graphql", path, name))
	}
	return problems
}

func sortedTypeNames(doc *gqlast.Schema) []string {
	names := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
