// Package store issues the SQL for users and countries.
package store

import (
	"context"
	"fmt"

	"graphql-app-example/internal/dbexec"
	"graphql-app-example/internal/eager"
	"graphql-app-example/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

const (
	// UsersTable holds User rows.
	UsersTable = "users"
	// CountryRelation is the User field that points at a Country.
	CountryRelation = "country"
)

var (
	// CountriesTable holds Country rows.
	CountriesTable = eager.TableName(CountryRelation)
	// UserCountryColumn is the users column that references CountriesTable.
	UserCountryColumn = eager.ForeignKey(CountriesTable)
)

// User is a row of the users table.
type User struct {
	ID        int64
	Name      string
	CountryID int64
}

// Country is a row of the countries table.
type Country struct {
	ID   int64
	Name string
}

// Store builds and runs queries in one SQL dialect.
type Store struct {
	dialect sqlutil.Dialect
}

// New returns a Store for the given dialect.
func New(dialect sqlutil.Dialect) *Store {
	return &Store{dialect: dialect}
}

// Dialect returns the store's SQL dialect.
func (s *Store) Dialect() sqlutil.Dialect {
	return s.dialect
}

func (s *Store) quote(name string) string {
	return s.dialect.QuoteIdentifier(name)
}

func (s *Store) usersSelect() sq.SelectBuilder {
	return sq.Select(s.quote("id"), s.quote("name"), s.quote(UserCountryColumn)).
		From(s.quote(UsersTable)).
		PlaceholderFormat(s.dialect.Placeholder)
}

func (s *Store) countriesSelect() sq.SelectBuilder {
	return sq.Select(s.quote("id"), s.quote("name")).
		From(s.quote(CountriesTable)).
		PlaceholderFormat(s.dialect.Placeholder)
}

// UsersQuery is the base query for user listings, ordered by id.
func (s *Store) UsersQuery() sq.SelectBuilder {
	return s.usersSelect().OrderBy(s.quote("id"))
}

// AllUsers loads every user. Unordered returns rows in storage order.
func (s *Store) AllUsers(ctx context.Context, q dbexec.QueryExecutor, ordered bool) ([]User, error) {
	builder := s.usersSelect()
	if ordered {
		builder = s.UsersQuery()
	}
	return s.queryUsers(ctx, q, builder)
}

// UsersPage loads at most limit users starting at offset of the id ordering.
func (s *Store) UsersPage(ctx context.Context, q dbexec.QueryExecutor, limit, offset uint64) ([]User, error) {
	return s.queryUsers(ctx, q, s.UsersQuery().Limit(limit).Offset(offset))
}

// CountUsers returns the cardinality of the users table.
func (s *Store) CountUsers(ctx context.Context, q dbexec.QueryExecutor) (int, error) {
	query, args, err := sq.Select("COUNT(*)").
		From(s.quote(UsersTable)).
		PlaceholderFormat(s.dialect.Placeholder).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, rows.Err()
}

// CountryByID loads one country. The bool is false when no row matches.
func (s *Store) CountryByID(ctx context.Context, q dbexec.QueryExecutor, id int64) (Country, bool, error) {
	countries, err := s.queryCountries(ctx, q, s.countriesSelect().Where(sq.Eq{s.quote("id"): id}))
	if err != nil {
		return Country{}, false, err
	}
	if len(countries) == 0 {
		return Country{}, false, nil
	}
	return countries[0], true, nil
}

// CountriesByIDs loads the countries whose id is in ids with one IN query.
func (s *Store) CountriesByIDs(ctx context.Context, q dbexec.QueryExecutor, ids []int64) ([]Country, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryCountries(ctx, q, s.countriesSelect().Where(sq.Eq{s.quote("id"): ids}))
}

func (s *Store) queryUsers(ctx context.Context, q dbexec.QueryExecutor, builder sq.SelectBuilder) ([]User, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build users query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.CountryID); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) queryCountries(ctx context.Context, q dbexec.QueryExecutor, builder sq.SelectBuilder) ([]Country, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build countries query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	countries := []Country{}
	for rows.Next() {
		var c Country
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		countries = append(countries, c)
	}
	return countries, rows.Err()
}
