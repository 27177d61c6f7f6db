// Package pagination serves page-number connections over an ordered source.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"math"

	"graphql-app-example/internal/cursor"
)

// ErrInvalidPageSize reports a page size outside 1..max.
var ErrInvalidPageSize = errors.New("invalid page size")

// Source is an ordered row set that can be sliced into pages.
type Source[T any] interface {
	// LoadAndCount returns rows [offset, offset+limit) and the total row count.
	LoadAndCount(ctx context.Context, limit, offset uint64) ([]T, int, error)
	// ExistsAt reports whether a row exists at offset.
	ExistsAt(ctx context.Context, offset uint64) (bool, error)
}

// Request selects one page.
type Request struct {
	Page int
	Size int
}

// NewRequest validates the connection arguments. after may be nil for the
// first page; maxSize of 0 disables the upper bound.
func NewRequest(after *cursor.Cursor, first, maxSize int) (Request, error) {
	if first < 1 {
		return Request{}, fmt.Errorf("%w: first must be a positive integer", ErrInvalidPageSize)
	}
	if maxSize > 0 && first > maxSize {
		return Request{}, fmt.Errorf("%w: first must not exceed %d", ErrInvalidPageSize, maxSize)
	}
	page, err := cursor.PageOf(after)
	if err != nil {
		return Request{}, err
	}
	if page > lastPage(first) {
		return Request{}, fmt.Errorf("%w: page %d is out of range for page size %d", cursor.ErrInvalidCursor, page, first)
	}
	return Request{Page: page, Size: first}, nil
}

// lastPage is the highest page whose lookahead offset and next cursor still
// fit in an int.
func lastPage(size int) int {
	last := math.MaxInt / size
	if last == math.MaxInt {
		last--
	}
	return last
}

func (r Request) offset() uint64 {
	return uint64(r.Page-1) * uint64(r.Size)
}

// lookaheadOffset is the first row of the following page.
func (r Request) lookaheadOffset() uint64 {
	return uint64(r.Page) * uint64(r.Size)
}

// Edge pairs a row with its cursor.
type Edge[T any] struct {
	Node   T
	Cursor cursor.Cursor
}

// PageInfo describes the served page.
type PageInfo struct {
	StartCursor *cursor.Cursor
	EndCursor   *cursor.Cursor
	HasNextPage bool
}

// Connection is one served page.
type Connection[T any] struct {
	Edges      []Edge[T]
	PageInfo   PageInfo
	TotalCount int
}

// Nodes returns the edge nodes in order.
func (c *Connection[T]) Nodes() []T {
	nodes := make([]T, len(c.Edges))
	for i, edge := range c.Edges {
		nodes[i] = edge.Node
	}
	return nodes
}

// Paginate loads the requested page, the total count, and the lookahead row.
// Every edge carries the cursor of the next page.
func Paginate[T any](ctx context.Context, src Source[T], req Request) (*Connection[T], error) {
	if req.Size < 1 {
		return nil, fmt.Errorf("%w: first must be a positive integer", ErrInvalidPageSize)
	}
	if req.Page < cursor.FirstPage || req.Page > lastPage(req.Size) {
		return nil, fmt.Errorf("%w: page %d", cursor.ErrInvalidCursor, req.Page)
	}

	rows, total, err := src.LoadAndCount(ctx, uint64(req.Size), req.offset())
	if err != nil {
		return nil, fmt.Errorf("load page %d: %w", req.Page, err)
	}

	hasNext, err := src.ExistsAt(ctx, req.lookaheadOffset())
	if err != nil {
		return nil, fmt.Errorf("lookahead for page %d: %w", req.Page, err)
	}

	next := cursor.Next(req.Page)
	edges := make([]Edge[T], len(rows))
	for i, row := range rows {
		edges[i] = Edge[T]{Node: row, Cursor: next}
	}

	conn := &Connection[T]{
		Edges:      edges,
		TotalCount: total,
		PageInfo:   PageInfo{HasNextPage: hasNext},
	}
	if len(edges) > 0 {
		start := edges[0].Cursor
		end := edges[len(edges)-1].Cursor
		conn.PageInfo.StartCursor = &start
		conn.PageInfo.EndCursor = &end
	}
	return conn, nil
}
