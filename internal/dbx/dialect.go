package dbx

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect names the SQL backend a repository talks to. Queries are written
// with PostgreSQL placeholders ($1, $2, ...) and rebound per dialect.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// sqliteTimeLayout is fixed width so that lexical order equals time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// ParseDialect maps a configured driver name onto a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported storage driver %q", name)
	}
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite"
	}
	return "pgx"
}

// GooseDialect is the goose dialect name for the backend.
func (d Dialect) GooseDialect() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "pgx"
}

// Rebind rewrites $n placeholders into ?n for SQLite. Postgres queries are
// returned unchanged.
func (d Dialect) Rebind(query string) string {
	if d != SQLite {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// TimeArg converts t into a query argument for the dialect.
func (d Dialect) TimeArg(t time.Time) any {
	if d == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// Timestamp scans time columns from either backend. Postgres yields
// time.Time, SQLite may yield the stored text.
type Timestamp struct {
	Time time.Time
}

var timestampLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case int64:
		t.Time = time.Unix(v, 0).UTC()
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
}

func (t *Timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.Unix(unix, 0).UTC()
		return nil
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}
