package resolver

import (
	"errors"

	"graphql-app-example/internal/cursor"
	"graphql-app-example/internal/eager"
	"graphql-app-example/internal/observability"
	"graphql-app-example/internal/pagination"
	"graphql-app-example/internal/selection"
	"graphql-app-example/internal/store"

	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"
)

type userConnection struct {
	edges      []*userEdge
	pageInfo   *pageInfo
	totalCount int
}

type userEdge struct {
	node   *userNode
	cursor cursor.Cursor
}

type pageInfo struct {
	startCursor *cursor.Cursor
	endCursor   *cursor.Cursor
	hasNextPage bool
}

func (r *Resolver) resolveUsers(p graphql.ResolveParams) (result interface{}, err error) {
	ctx, span := startResolverSpan(p.Context, "graphql.resolve.users",
		attribute.String("graphql.loading_strategy", r.strategy),
	)
	defer func() { finishResolverSpan(span, err) }()

	q, err := executorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	users, err := r.store.AllUsers(ctx, q, r.loadsEagerly())
	if err != nil {
		return nil, queryError(ctx, "users", err)
	}
	nodes := eager.Shells(users, newUserNode)
	span.SetAttributes(attribute.Int("graphql.result.count", len(nodes)))

	if r.loadsEagerly() {
		tree := selection.FromResolveInfo(p.Info)
		span.SetAttributes(attribute.StringSlice("graphql.selection.fields", tree.Fields()))
		if err := eager.Load(ctx, tree, nodes, r.userRelations(q)...); err != nil {
			return nil, queryError(ctx, "users.country", err)
		}
	}
	return nodes, nil
}

func (r *Resolver) resolveUserConnections(p graphql.ResolveParams) (result interface{}, err error) {
	ctx, span := startResolverSpan(p.Context, "graphql.resolve.user_connections",
		attribute.String("graphql.loading_strategy", r.strategy),
	)
	defer func() { finishResolverSpan(span, err) }()

	var after *cursor.Cursor
	if c, ok := p.Args["after"].(cursor.Cursor); ok {
		after = &c
	}
	first, _ := p.Args["first"].(int)

	req, err := pagination.NewRequest(after, first, r.maxPageSize)
	if err != nil {
		return nil, inputError(err)
	}
	span.SetAttributes(
		attribute.Int("pagination.page", req.Page),
		attribute.Int("pagination.size", req.Size),
	)

	q, err := executorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	page, err := pagination.Paginate[store.User](ctx, r.store.UserPages(q), req)
	if err != nil {
		return nil, queryError(ctx, "userConnections", err)
	}

	nodes := eager.Shells(page.Nodes(), newUserNode)
	if r.loadsEagerly() {
		tree := selection.FromResolveInfo(p.Info).Child("edges", "node")
		span.SetAttributes(attribute.StringSlice("graphql.selection.fields", tree.Fields()))
		if err := eager.Load(ctx, tree, nodes, r.userRelations(q)...); err != nil {
			return nil, queryError(ctx, "userConnections.country", err)
		}
	}

	edges := make([]*userEdge, len(page.Edges))
	for i, edge := range page.Edges {
		edges[i] = &userEdge{node: nodes[i], cursor: edge.Cursor}
	}

	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordPage(ctx, "userConnections", page.PageInfo.HasNextPage)
	}
	span.SetAttributes(
		attribute.Int("graphql.result.count", len(edges)),
		attribute.Bool("pagination.has_next_page", page.PageInfo.HasNextPage),
	)

	return &userConnection{
		edges: edges,
		pageInfo: &pageInfo{
			startCursor: page.PageInfo.StartCursor,
			endCursor:   page.PageInfo.EndCursor,
			hasNextPage: page.PageInfo.HasNextPage,
		},
		totalCount: page.TotalCount,
	}, nil
}

func (r *Resolver) resolveUserCountry(p graphql.ResolveParams) (interface{}, error) {
	user, ok := p.Source.(*userNode)
	if !ok {
		return nil, newFieldError(CodeInternal, nil, "unexpected source %T for User.country", p.Source)
	}

	if r.loadsEagerly() || user.Country.Loaded() {
		country, err := user.Country.Get()
		switch {
		case errors.Is(err, eager.ErrMissing):
			return nil, newFieldError(CodeNotFound, err, "country %d not found", user.CountryID)
		case err != nil:
			return nil, newFieldError(CodeInternal, err, "internal server error: %v", err)
		}
		return country, nil
	}

	q, err := executorFromContext(p.Context)
	if err != nil {
		return nil, err
	}
	country, found, err := r.store.CountryByID(p.Context, q, user.CountryID)
	if err != nil {
		return nil, queryError(p.Context, "User.country", err)
	}
	if !found {
		return nil, newFieldError(CodeNotFound, nil, "country %d not found", user.CountryID)
	}
	return country, nil
}
