// Package eager batch-loads many-to-one relations for a set of parent rows.
//
// Loading is two steps: convert rows into node shells, then run each
// requested relation once for all shells. A relation collects the distinct
// keys of its parents, loads the children with as few IN queries as the
// clause limit allows, and attaches each child to its parents by key.
package eager

import (
	"context"
	"fmt"

	"graphql-app-example/internal/observability"
	"graphql-app-example/internal/selection"
)

// MaxInClause caps the number of keys bound into a single IN query.
var MaxInClause = 1000

// Shells converts raw rows into node shells whose associations start unloaded.
func Shells[R any, N any](rows []R, toNode func(R) N) []N {
	nodes := make([]N, len(rows))
	for i, row := range rows {
		nodes[i] = toNode(row)
	}
	return nodes
}

// Runner is a relation that can load itself for parents of type P.
type Runner[P any] interface {
	RelationName() string
	run(ctx context.Context, parents []P) error
}

// Relation declares a many-to-one relation from parents P to children C,
// joined on key K.
type Relation[P any, K comparable, C any] struct {
	// Name is the selection field that requests the relation.
	Name string
	// Key extracts the foreign key from a parent.
	Key func(P) K
	// Load fetches the children for a set of keys.
	Load func(ctx context.Context, keys []K) (map[K]C, error)
	// Attach stores the child on the parent. found is false when no child
	// matched the key.
	Attach func(parent P, child C, found bool)
}

// RelationName returns the selection field name.
func (r Relation[P, K, C]) RelationName() string {
	return r.Name
}

func (r Relation[P, K, C]) run(ctx context.Context, parents []P) error {
	keys := distinctKeys(parents, r.Key)
	children := make(map[K]C, len(keys))

	chunks := chunk(keys, MaxInClause)
	saved := int64(len(parents) - len(chunks))
	if saved < 0 {
		saved = 0
	}
	stats, _ := StatsFromContext(ctx)
	metrics := observability.GraphQLMetricsFromContext(ctx)

	for i, part := range chunks {
		loaded, err := r.Load(ctx, part)
		if err != nil {
			return fmt.Errorf("load %s: %w", r.Name, err)
		}
		for k, v := range loaded {
			children[k] = v
		}

		// Savings are attributed to the first query of the relation.
		batchSaved := int64(0)
		if i == 0 {
			batchSaved = saved
		}
		if stats != nil {
			stats.addBatch(len(part), batchSaved)
		}
		if metrics != nil {
			metrics.RecordEagerBatch(ctx, r.Name, len(part), batchSaved)
		}
	}
	if stats != nil {
		stats.addParents(len(parents))
	}

	for _, parent := range parents {
		child, found := children[r.Key(parent)]
		r.Attach(parent, child, found)
	}
	return nil
}

// Load runs every relation whose name is selected in tree against parents.
// Relations that are not selected leave their associations unloaded.
func Load[P any](ctx context.Context, tree *selection.Tree, parents []P, relations ...Runner[P]) error {
	if len(parents) == 0 || tree.Empty() {
		return nil
	}
	for _, rel := range relations {
		if !tree.Has(rel.RelationName()) {
			continue
		}
		if err := rel.run(ctx, parents); err != nil {
			return err
		}
	}
	return nil
}

func distinctKeys[P any, K comparable](parents []P, key func(P) K) []K {
	seen := make(map[K]struct{}, len(parents))
	keys := make([]K, 0, len(parents))
	for _, parent := range parents {
		k := key(parent)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

func chunk[K any](values []K, max int) [][]K {
	if len(values) == 0 {
		return nil
	}
	if max <= 0 || len(values) <= max {
		return [][]K{values}
	}
	chunks := make([][]K, 0, (len(values)+max-1)/max)
	for start := 0; start < len(values); start += max {
		end := start + max
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
