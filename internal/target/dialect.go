package target

import (
	"strconv"
	"strings"
)

// Dialect adapts query placeholders to the driver in use.
type Dialect int

const (
	// Postgres uses $n placeholders (pgx).
	Postgres Dialect = iota
	// SQLite uses ? placeholders. Used for fixtures.
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// Rebind rewrites ? placeholders for the dialect. Queries in this package
// never contain a literal question mark.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
