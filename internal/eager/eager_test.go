package eager

import (
	"context"
	"errors"
	"testing"

	"graphql-app-example/internal/selection"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userRow struct {
	ID        int64
	CountryID int64
}

type userNode struct {
	ID        int64
	CountryID int64
	Country   Association[string]
}

func toNode(row userRow) *userNode {
	return &userNode{ID: row.ID, CountryID: row.CountryID}
}

func treeSelecting(names ...string) *selection.Tree {
	selections := make([]ast.Selection, 0, len(names))
	for _, name := range names {
		selections = append(selections, &ast.Field{Name: &ast.Name{Value: name}})
	}
	return selection.FromFields([]*ast.Field{{
		Name:         &ast.Name{Value: "users"},
		SelectionSet: &ast.SelectionSet{Selections: selections},
	}}, nil)
}

type recordingLoader struct {
	calls [][]int64
	rows  map[int64]string
	err   error
}

func (l *recordingLoader) load(_ context.Context, keys []int64) (map[int64]string, error) {
	l.calls = append(l.calls, append([]int64(nil), keys...))
	if l.err != nil {
		return nil, l.err
	}
	out := make(map[int64]string, len(keys))
	for _, k := range keys {
		if name, ok := l.rows[k]; ok {
			out[k] = name
		}
	}
	return out, nil
}

func countryRelation(loader *recordingLoader) Relation[*userNode, int64, string] {
	return Relation[*userNode, int64, string]{
		Name: RelationName("country_id"),
		Key:  func(u *userNode) int64 { return u.CountryID },
		Load: loader.load,
		Attach: func(u *userNode, name string, found bool) {
			if found {
				u.Country.Set(name)
			} else {
				u.Country.SetMissing()
			}
		},
	}
}

func TestLoad_BatchesDistinctKeysInFirstSeenOrder(t *testing.T) {
	loader := &recordingLoader{rows: map[int64]string{10: "Chile", 20: "Kenya"}}
	users := Shells([]userRow{{1, 20}, {2, 10}, {3, 20}, {4, 99}}, toNode)

	ctx := WithStats(context.Background())
	err := Load(ctx, treeSelecting("id", "country"), users, Runner[*userNode](countryRelation(loader)))
	require.NoError(t, err)

	require.Len(t, loader.calls, 1)
	assert.Equal(t, []int64{20, 10, 99}, loader.calls[0])

	name, err := users[0].Country.Get()
	require.NoError(t, err)
	assert.Equal(t, "Kenya", name)
	name, err = users[1].Country.Get()
	require.NoError(t, err)
	assert.Equal(t, "Chile", name)

	_, err = users[3].Country.Get()
	assert.ErrorIs(t, err, ErrMissing)
	assert.True(t, users[3].Country.Loaded())

	stats, ok := StatsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, StatsSnapshot{Batches: 1, Keys: 3, Parents: 4, QueriesSaved: 3}, stats.Snapshot())
}

func TestLoad_UnselectedRelationStaysUnloaded(t *testing.T) {
	loader := &recordingLoader{}
	users := Shells([]userRow{{1, 10}}, toNode)

	err := Load(context.Background(), treeSelecting("id", "name"), users, Runner[*userNode](countryRelation(loader)))
	require.NoError(t, err)
	assert.Empty(t, loader.calls)

	_, err = users[0].Country.Get()
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.False(t, users[0].Country.Loaded())
}

func TestLoad_NoParentsIssuesNoQuery(t *testing.T) {
	loader := &recordingLoader{}
	err := Load(context.Background(), treeSelecting("country"), []*userNode{}, Runner[*userNode](countryRelation(loader)))
	require.NoError(t, err)
	assert.Empty(t, loader.calls)
}

func TestLoad_EmptySelectionIssuesNoQuery(t *testing.T) {
	loader := &recordingLoader{}
	users := Shells([]userRow{{1, 10}}, toNode)

	for _, tree := range []*selection.Tree{selection.New(), nil, treeSelecting("country").Child("country")} {
		require.NoError(t, Load(context.Background(), tree, users, Runner[*userNode](countryRelation(loader))))
	}
	assert.Empty(t, loader.calls)
	assert.False(t, users[0].Country.Loaded())
}

func TestLoad_ChunksLargeKeySets(t *testing.T) {
	previous := MaxInClause
	MaxInClause = 2
	t.Cleanup(func() { MaxInClause = previous })

	loader := &recordingLoader{rows: map[int64]string{1: "a", 2: "b", 3: "c", 4: "d", 5: "e"}}
	rows := []userRow{{1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}}
	users := Shells(rows, toNode)

	require.NoError(t, Load(context.Background(), treeSelecting("country"), users, Runner[*userNode](countryRelation(loader))))
	assert.Equal(t, [][]int64{{1, 2}, {3, 4}, {5}}, loader.calls)
	for i, u := range users {
		name, err := u.Country.Get()
		require.NoError(t, err, "user %d", i)
		assert.NotEmpty(t, name)
	}
}

func TestLoad_PropagatesLoaderError(t *testing.T) {
	boom := errors.New("boom")
	loader := &recordingLoader{err: boom}
	users := Shells([]userRow{{1, 10}}, toNode)

	err := Load(context.Background(), treeSelecting("country"), users, Runner[*userNode](countryRelation(loader)))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "load country")
	_, getErr := users[0].Country.Get()
	assert.ErrorIs(t, getErr, ErrNotLoaded)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk([]int{}, 2))
	assert.Equal(t, [][]int{{1, 2, 3}}, chunk([]int{1, 2, 3}, 0))
	assert.Equal(t, [][]int{{1, 2}, {3}}, chunk([]int{1, 2, 3}, 2))
}

func TestNaming(t *testing.T) {
	assert.Equal(t, "country", RelationName("country_id"))
	assert.Equal(t, "homeCountry", RelationName("home_country_id"))
	assert.Equal(t, "owner", RelationName("owner_fk"))
	assert.Equal(t, "countries", TableName("country"))
	assert.Equal(t, "home_countries", TableName("homeCountry"))
	assert.Equal(t, "country_id", ForeignKey("countries"))
	assert.Equal(t, "user_id", ForeignKey("users"))
}
