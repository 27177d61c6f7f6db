package store

import (
	"context"

	"graphql-app-example/internal/dbexec"
)

// UserPages exposes the id-ordered users query as a page source.
type UserPages struct {
	store *Store
	q     dbexec.QueryExecutor
}

// UserPages binds the users page source to an executor.
func (s *Store) UserPages(q dbexec.QueryExecutor) *UserPages {
	return &UserPages{store: s, q: q}
}

// LoadAndCount loads one page of users and the total user count.
func (p *UserPages) LoadAndCount(ctx context.Context, limit, offset uint64) ([]User, int, error) {
	users, err := p.store.UsersPage(ctx, p.q, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := p.store.CountUsers(ctx, p.q)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ExistsAt reports whether the ordering has a row at offset.
func (p *UserPages) ExistsAt(ctx context.Context, offset uint64) (bool, error) {
	users, err := p.store.UsersPage(ctx, p.q, 1, offset)
	if err != nil {
		return false, err
	}
	return len(users) > 0, nil
}
