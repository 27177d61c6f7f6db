// Package sqlutil provides SQL dialect helpers shared by query builders.
package sqlutil

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect captures the per-driver differences in generated SQL.
type Dialect struct {
	Name        string
	quote       string
	Placeholder sq.PlaceholderFormat
}

var (
	// MySQL quotes with backticks and binds with '?'.
	MySQL = Dialect{Name: "mysql", quote: "`", Placeholder: sq.Question}
	// Postgres quotes with double quotes and binds with '$n'.
	Postgres = Dialect{Name: "postgres", quote: `"`, Placeholder: sq.Dollar}
)

// DialectFor returns the dialect for a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "mysql":
		return MySQL, nil
	case "postgres", "postgresql":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported SQL dialect %q", driver)
	}
}

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// and escapes any embedded quote characters by doubling them.
func (d Dialect) QuoteIdentifier(name string) string {
	q := d.quote
	if q == "" {
		q = "`"
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// QuoteIdentifier quotes with the MySQL dialect.
func QuoteIdentifier(name string) string {
	return MySQL.QuoteIdentifier(name)
}
