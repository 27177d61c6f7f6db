// Package gqlrequest parses incoming GraphQL requests once so middleware can
// make decisions about them before execution.
package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/printer"
	"github.com/graphql-go/graphql/language/source"
)

// AnonymousOperation names operations without a name.
const AnonymousOperation = "<anonymous>"

// Analysis is what the server knows about a request before executing it.
type Analysis struct {
	Envelope Envelope

	Document  *ast.Document
	Operation *ast.OperationDefinition
	Fragments map[string]*ast.FragmentDefinition

	OperationName string
	OperationType string
	// RootFields are the distinct top-level field names the operation selects,
	// including those reached through fragments.
	RootFields []string

	FieldCount     int
	SelectionDepth int
	VariableCount  int

	// Fingerprint identifies the selected operation independent of
	// whitespace, comments, and unrelated operations in the document.
	Fingerprint string

	// Err is the first decode, parse, or operation selection failure.
	Err error
}

// Parsed reports whether an operation was selected.
func (a *Analysis) Parsed() bool {
	return a != nil && a.Operation != nil
}

// OnlyTouches reports whether every root field is in allowed. Requests that
// could not be analyzed never qualify.
func (a *Analysis) OnlyTouches(allowed map[string]bool) bool {
	if !a.Parsed() || len(a.RootFields) == 0 {
		return false
	}
	for _, name := range a.RootFields {
		if !allowed[name] {
			return false
		}
	}
	return true
}

// AnalyzeRequest decodes r and analyzes its payload.
func AnalyzeRequest(r *http.Request, maxBody int64) *Analysis {
	env, err := DecodeEnvelope(r, maxBody)
	if err != nil {
		return &Analysis{Envelope: env, Err: err}
	}
	return AnalyzeEnvelope(env)
}

// AnalyzeEnvelope parses env and selects the operation to run.
func AnalyzeEnvelope(env Envelope) *Analysis {
	a := &Analysis{Envelope: env, Fragments: map[string]*ast.FragmentDefinition{}}
	if strings.TrimSpace(env.Query) == "" {
		return a
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(env.Query), Name: "GraphQL request"}),
	})
	if err != nil {
		a.Err = err
		return a
	}
	a.Document = doc

	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.OperationDefinition:
			operations = append(operations, d)
		case *ast.FragmentDefinition:
			if d.Name != nil && d.Name.Value != "" {
				a.Fragments[d.Name.Value] = d
			}
		}
	}

	op, err := pickOperation(operations, env.OperationName)
	if err != nil {
		a.Err = err
		return a
	}
	a.Operation = op
	a.OperationName = operationName(op)
	a.OperationType = string(op.Operation)
	a.VariableCount = len(op.VariableDefinitions)

	w := &walker{fragments: a.Fragments, roots: map[string]bool{}}
	a.FieldCount, a.SelectionDepth = w.walk(op.SelectionSet, 1, true, map[string]bool{})
	a.RootFields = sortedKeys(w.roots)

	a.Fingerprint, err = fingerprint(op, a.Fragments, w.used)
	if err != nil {
		a.Err = err
	}
	return a
}

func pickOperation(operations []*ast.OperationDefinition, name string) (*ast.OperationDefinition, error) {
	if name != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == name {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", name)
	}
	switch len(operations) {
	case 0:
		return nil, errors.New("request does not include an operation")
	case 1:
		return operations[0], nil
	default:
		return nil, errors.New("operationName is required when request has multiple operations")
	}
}

func operationName(op *ast.OperationDefinition) string {
	if op.Name == nil || op.Name.Value == "" {
		return AnonymousOperation
	}
	return op.Name.Value
}

// walker counts fields and depth while recording root fields and the
// fragments the operation uses.
type walker struct {
	fragments map[string]*ast.FragmentDefinition
	roots     map[string]bool
	used      []string
	seen      map[string]bool
}

func (w *walker) walk(set *ast.SelectionSet, depth int, root bool, inFlight map[string]bool) (fields, maxDepth int) {
	if set == nil {
		return 0, depth - 1
	}
	maxDepth = depth
	merge := func(n, d int) {
		fields += n
		if d > maxDepth {
			maxDepth = d
		}
	}

	for _, sel := range set.Selections {
		switch s := sel.(type) {
		case *ast.Field:
			fields++
			if root && s.Name != nil {
				w.roots[s.Name.Value] = true
			}
			if s.SelectionSet != nil {
				merge(w.walk(s.SelectionSet, depth+1, false, inFlight))
			}
		case *ast.InlineFragment:
			merge(w.walk(s.SelectionSet, depth, root, inFlight))
		case *ast.FragmentSpread:
			if s.Name == nil || inFlight[s.Name.Value] {
				continue
			}
			name := s.Name.Value
			fragment, ok := w.fragments[name]
			if !ok {
				continue
			}
			w.markUsed(name)
			inFlight[name] = true
			merge(w.walk(fragment.SelectionSet, depth, root, inFlight))
			delete(inFlight, name)
		}
	}
	return fields, maxDepth
}

func (w *walker) markUsed(name string) {
	if w.seen == nil {
		w.seen = map[string]bool{}
	}
	if !w.seen[name] {
		w.seen[name] = true
		w.used = append(w.used, name)
	}
}

// fingerprint hashes the printed operation and the fragments it uses.
func fingerprint(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition, used []string) (string, error) {
	names := append([]string(nil), used...)
	sort.Strings(names)

	defs := []ast.Node{op}
	for _, name := range names {
		defs = append(defs, fragments[name])
	}
	printed, ok := printer.Print(ast.NewDocument(&ast.Document{Definitions: defs})).(string)
	if !ok {
		return "", errors.New("could not print operation")
	}

	h := sha256.New()
	for _, part := range []string{printed, operationName(op)} {
		// Length-prefix each part so boundaries cannot shift between them.
		_, _ = fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
