package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect captures the few places where SQLite and Postgres differ.
type dialect struct {
	name   string
	driver string
	schema string
	// numbered placeholders ($1, $2...) instead of ?
	numbered bool
	// row locks are available when loading an order for update
	forUpdate bool
	// serial sequences must be realigned after explicit-id inserts
	sequences bool
}

var (
	sqliteDialect = dialect{name: "sqlite", driver: "sqlite", schema: schemaSQLite}
	pgDialect     = dialect{name: "postgres", driver: "pgx", schema: schemaPostgres, numbered: true, forUpdate: true, sequences: true}
)

func dialectFor(name string) (dialect, error) {
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "postgres", "postgresql", "pgx":
		return pgDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported sql dialect %q", name)
	}
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// statements splits a schema into individual statements. The pgx driver
// rejects multi-statement Exec calls with arguments, and SQLite is happy
// either way.
func statements(schema string) []string {
	var out []string
	for _, s := range strings.Split(schema, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// sqliteDSN enables foreign keys and a busy timeout unless the caller set
// pragmas already.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
