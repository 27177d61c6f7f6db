package eager

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// RelationName derives the field name of a many-to-one relation from its
// foreign key column. Example: "country_id" -> "country",
// "home_country_id" -> "homeCountry".
func RelationName(fkColumn string) string {
	name := fkColumn
	for _, suffix := range []string{"_id", "_fk"} {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return toCamelCase(name)
}

// TableName returns the table a relation points at. Example: "country" -> "countries".
func TableName(relation string) string {
	return inflection.Plural(toSnakeCase(relation))
}

// ForeignKey returns the conventional foreign key column for a table.
// Example: "countries" -> "country_id".
func ForeignKey(table string) string {
	return inflection.Singular(table) + "_id"
}

func toCamelCase(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
