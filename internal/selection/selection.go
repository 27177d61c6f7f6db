// Package selection turns a GraphQL field's selection set into a tree of
// requested field names.
package selection

import (
	"sort"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// Tree is the set of fields requested beneath one field. Aliases are
// resolved to field names and repeated selections are merged.
type Tree struct {
	children map[string]*Tree
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{children: map[string]*Tree{}}
}

// FromResolveInfo builds the tree for the field being resolved.
func FromResolveInfo(info graphql.ResolveInfo) *Tree {
	return FromFields(info.FieldASTs, info.Fragments)
}

// FromFields builds a tree from the field ASTs of one response key,
// expanding inline fragments and named fragment spreads.
func FromFields(fields []*ast.Field, fragments map[string]ast.Definition) *Tree {
	tree := New()
	for _, field := range fields {
		if field != nil && field.SelectionSet != nil {
			tree.visit(field.SelectionSet.Selections, fragments, map[string]bool{})
		}
	}
	return tree
}

func (t *Tree) visit(selections []ast.Selection, fragments map[string]ast.Definition, seen map[string]bool) {
	for _, selection := range selections {
		switch sel := selection.(type) {
		case *ast.Field:
			if sel.Name == nil || sel.Name.Value == "__typename" {
				continue
			}
			child := t.add(sel.Name.Value)
			if sel.SelectionSet != nil {
				child.visit(sel.SelectionSet.Selections, fragments, map[string]bool{})
			}
		case *ast.InlineFragment:
			if sel.SelectionSet != nil {
				t.visit(sel.SelectionSet.Selections, fragments, seen)
			}
		case *ast.FragmentSpread:
			if sel.Name == nil || seen[sel.Name.Value] {
				continue
			}
			fragment, ok := fragments[sel.Name.Value].(*ast.FragmentDefinition)
			if !ok || fragment.SelectionSet == nil {
				continue
			}
			seen[sel.Name.Value] = true
			t.visit(fragment.SelectionSet.Selections, fragments, seen)
		}
	}
}

func (t *Tree) add(name string) *Tree {
	if child, ok := t.children[name]; ok {
		return child
	}
	child := New()
	t.children[name] = child
	return child
}

// Has reports whether name is selected directly beneath this node.
func (t *Tree) Has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.children[name]
	return ok
}

// Child walks path and returns the subtree, or an empty tree when any
// step is not selected.
func (t *Tree) Child(path ...string) *Tree {
	node := t
	for _, name := range path {
		if node == nil {
			break
		}
		node = node.children[name]
	}
	if node == nil {
		return New()
	}
	return node
}

// Fields returns the selected field names in sorted order.
func (t *Tree) Fields() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.children))
	for name := range t.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Empty reports whether nothing is selected beneath this node.
func (t *Tree) Empty() bool {
	return t == nil || len(t.children) == 0
}
