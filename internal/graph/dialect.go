package graph

import (
	"fmt"
	"strings"
)

// Dialect abstracts the SQL differences between the supported backends.
type Dialect int

const (
	// DialectSQLite targets mattn/go-sqlite3 (default, embedded)
	DialectSQLite Dialect = iota
	// DialectPostgres targets jackc/pgx through database/sql
	DialectPostgres
)

// String returns the driver name registered for the dialect
func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	default:
		return "sqlite3"
	}
}

// ParseDialect maps a configured driver name to a Dialect
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "sqlite3", "":
		return DialectSQLite, nil
	case "postgres", "pgx":
		return DialectPostgres, nil
	default:
		return DialectSQLite, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Rebind rewrites ? placeholders into the dialect's positional style.
// Queries throughout the package are written with ? and rebound once,
// right before execution.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// schemaStatements returns the DDL for the graph tables. The layout is the
// same on both backends except for the id column type.
func (d Dialect) schemaStatements() []string {
	idCol := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d == DialectPostgres {
		idCol = "BIGSERIAL PRIMARY KEY"
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS nodes (
			id %s,
			label TEXT NOT NULL
		)`, idCol),
		`CREATE INDEX IF NOT EXISTS nodes_by_label ON nodes(label)`,
		`CREATE TABLE IF NOT EXISTS node_props (
			node_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			num DOUBLE PRECISION,
			PRIMARY KEY (node_id, name)
		)`,
		`CREATE INDEX IF NOT EXISTS node_props_by_value ON node_props(name, value)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS edges (
			id %s,
			type TEXT NOT NULL,
			start_id BIGINT NOT NULL,
			end_id BIGINT NOT NULL,
			name TEXT NOT NULL DEFAULT ''
		)`, idCol),
		`CREATE INDEX IF NOT EXISTS edges_by_start ON edges(start_id, type)`,
		`CREATE INDEX IF NOT EXISTS edges_by_end ON edges(end_id, type)`,
		`CREATE TABLE IF NOT EXISTS idx_entries (
			label TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			node_id BIGINT NOT NULL,
			PRIMARY KEY (label, key, value)
		)`,
	}
}
