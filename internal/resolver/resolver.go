// Package resolver builds the executable GraphQL schema for users and their
// countries and resolves it against the request's database connection.
//
// Two loading strategies are supported. per_field resolves User.country with
// one point lookup per user. eager inspects the selection set up front and
// loads every requested country for a list of users with batched IN queries.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"graphql-app-example/internal/dbexec"
	"graphql-app-example/internal/eager"
	"graphql-app-example/internal/store"
)

// Loading strategies.
const (
	StrategyEager    = "eager"
	StrategyPerField = "per_field"
)

// errNoExecutor means the request reached a resolver without a connection.
var errNoExecutor = errors.New("no database connection in request context")

// Config configures a Resolver.
type Config struct {
	Store           *store.Store
	LoadingStrategy string
	// MaxPageSize bounds the first argument; 0 disables the bound.
	MaxPageSize int
}

// Resolver resolves the GraphQL schema's fields.
type Resolver struct {
	store       *store.Store
	strategy    string
	maxPageSize int
}

// New creates a resolver. An empty strategy selects eager loading.
func New(cfg Config) (*Resolver, error) {
	if cfg.Store == nil {
		return nil, errors.New("resolver requires a store")
	}
	strategy := strings.TrimSpace(cfg.LoadingStrategy)
	switch strategy {
	case "":
		strategy = StrategyEager
	case StrategyEager, StrategyPerField:
	default:
		return nil, fmt.Errorf("unknown loading strategy %q", cfg.LoadingStrategy)
	}
	if cfg.MaxPageSize < 0 {
		return nil, fmt.Errorf("max page size cannot be negative: %d", cfg.MaxPageSize)
	}
	return &Resolver{
		store:       cfg.Store,
		strategy:    strategy,
		maxPageSize: cfg.MaxPageSize,
	}, nil
}

// Strategy returns the active loading strategy.
func (r *Resolver) Strategy() string {
	return r.strategy
}

func (r *Resolver) loadsEagerly() bool {
	return r.strategy == StrategyEager
}

func executorFromContext(ctx context.Context) (dbexec.QueryExecutor, error) {
	q, ok := dbexec.ExecutorFromContext(ctx)
	if !ok {
		return nil, &fieldError{message: "internal server error", code: CodeInternal, cause: errNoExecutor}
	}
	return q, nil
}

// userNode is a User with its preloadable associations.
type userNode struct {
	ID        int64
	Name      string
	CountryID int64
	Country   eager.Association[store.Country]
}

func newUserNode(u store.User) *userNode {
	return &userNode{ID: u.ID, Name: u.Name, CountryID: u.CountryID}
}

// userRelations declares the relations of User that eager loading can fill.
func (r *Resolver) userRelations(q dbexec.QueryExecutor) []eager.Runner[*userNode] {
	country := eager.Relation[*userNode, int64, store.Country]{
		Name: eager.RelationName(store.UserCountryColumn),
		Key:  func(u *userNode) int64 { return u.CountryID },
		Load: func(ctx context.Context, ids []int64) (map[int64]store.Country, error) {
			countries, err := r.store.CountriesByIDs(ctx, q, ids)
			if err != nil {
				return nil, err
			}
			byID := make(map[int64]store.Country, len(countries))
			for _, c := range countries {
				byID[c.ID] = c
			}
			return byID, nil
		},
		Attach: func(u *userNode, c store.Country, found bool) {
			if found {
				u.Country.Set(c)
			} else {
				u.Country.SetMissing()
			}
		},
	}
	return []eager.Runner[*userNode]{country}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
