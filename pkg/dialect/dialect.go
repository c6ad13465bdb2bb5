// Package dialect holds the SQL differences between the engines a table can
// be imported into. Column types are inferred in PostgreSQL spelling and
// translated here.
package dialect

import (
	"fmt"
	"strings"

	"github.com/JayJamieson/csv-sql/pkg/ident"
	"github.com/JayJamieson/csv-sql/pkg/infer"
)

// Dialect abstracts statement text for one backing engine.
type Dialect interface {
	// Name returns a human-readable name ("PostgreSQL", "DuckDB", "SQLite").
	Name() string

	// DriverName is the database/sql driver registered for the engine.
	DriverName() string

	// Placeholder returns the bind marker for the n-th (1-based) parameter.
	Placeholder(n int) string

	// ColumnType maps an inferred type to the engine's column type.
	ColumnType(pgType string) string

	// SyntheticKeyType is the column type of a generated primary key.
	SyntheticKeyType() string

	// GeneratesKeys reports whether the synthetic key is filled in by the engine.
	// When false, the loader supplies 1-based key values itself.
	GeneratesKeys() bool

	// DropTable returns a DROP TABLE IF EXISTS statement for an unquoted name.
	DropTable(name string) string

	// ListTablesQuery lists user tables in the default schema.
	ListTablesQuery() string

	// SchemaQuery returns a query yielding (name, data_type, max_length,
	// is_nullable 'YES'/'NO', default, is_pk 0/1) ordered by ordinal position.
	SchemaQuery(table string) (string, []any)
}

// Postgres is the canonical dialect; inferred types are used as-is.
type Postgres struct{}

func (Postgres) Name() string       { return "PostgreSQL" }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) ColumnType(pgType string) string { return pgType }

func (Postgres) SyntheticKeyType() string { return infer.TypeSerial }
func (Postgres) GeneratesKeys() bool      { return true }

func (Postgres) DropTable(name string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", ident.Quote(name))
}

func (Postgres) ListTablesQuery() string {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'`
}

func (Postgres) SchemaQuery(table string) (string, []any) {
	return `
		SELECT c.column_name,
			c.data_type,
			c.character_maximum_length,
			c.is_nullable,
			c.column_default,
			CASE WHEN EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
					AND tc.table_name = kcu.table_name
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = c.table_schema
					AND tc.table_name = c.table_name
					AND kcu.column_name = c.column_name
			) THEN 1 ELSE 0 END AS is_pk
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position`, []any{table}
}

// DuckDB has no serial types; integer keys are declared with their plain
// width and synthetic keys are numbered by the loader.
type DuckDB struct{}

func (DuckDB) Name() string       { return "DuckDB" }
func (DuckDB) DriverName() string { return "duckdb" }

func (DuckDB) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (DuckDB) ColumnType(pgType string) string {
	switch pgType {
	case infer.TypeSmallserial:
		return infer.TypeSmallint
	case infer.TypeSerial:
		return infer.TypeInteger
	case infer.TypeBigserial:
		return infer.TypeBigint
	case infer.TypeNumeric:
		// bare NUMERIC is DECIMAL(18,3) in DuckDB
		return "double"
	}
	return pgType
}

func (DuckDB) SyntheticKeyType() string { return infer.TypeInteger }
func (DuckDB) GeneratesKeys() bool      { return false }

func (DuckDB) DropTable(name string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", ident.Quote(name))
}

func (DuckDB) ListTablesQuery() string {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'`
}

func (DuckDB) SchemaQuery(table string) (string, []any) {
	return pragmaSchemaQuery(table), nil
}

// SQLite covers both local SQLite files and remote libSQL databases.
type SQLite struct {
	// Driver is "sqlite" for modernc.org/sqlite or "libsql" for libSQL servers.
	Driver string
}

func (SQLite) Name() string { return "SQLite" }

func (s SQLite) DriverName() string {
	if s.Driver == "" {
		return "sqlite"
	}
	return s.Driver
}

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) ColumnType(pgType string) string {
	switch {
	case infer.IsIntegerType(pgType):
		return "INTEGER"
	case pgType == infer.TypeUUID:
		return "TEXT"
	}
	return pgType
}

// SyntheticKeyType is INTEGER so that "INTEGER PRIMARY KEY" aliases the rowid.
func (SQLite) SyntheticKeyType() string { return "INTEGER" }
func (SQLite) GeneratesKeys() bool      { return true }

func (SQLite) DropTable(name string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", ident.Quote(name))
}

func (SQLite) ListTablesQuery() string {
	return `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'`
}

func (SQLite) SchemaQuery(table string) (string, []any) {
	return pragmaSchemaQuery(table), nil
}

func pragmaSchemaQuery(table string) string {
	return fmt.Sprintf(`
		SELECT name,
			type,
			NULL,
			CASE WHEN "notnull" THEN 'NO' ELSE 'YES' END,
			dflt_value,
			CASE WHEN pk THEN 1 ELSE 0 END
		FROM pragma_table_info(%s)
		ORDER BY cid`, literal(table))
}

func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ForURL picks a dialect from a connection URL's scheme.
func ForURL(url string) (Dialect, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return Postgres{}, nil
	case strings.HasPrefix(url, "duckdb:"):
		return DuckDB{}, nil
	case strings.HasPrefix(url, "libsql://"),
		strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"),
		strings.HasPrefix(url, "ws://"), strings.HasPrefix(url, "wss://"):
		return SQLite{Driver: "libsql"}, nil
	case strings.HasPrefix(url, "file:"), strings.HasPrefix(url, "sqlite:"), url == ":memory:":
		return SQLite{Driver: "sqlite"}, nil
	default:
		return nil, fmt.Errorf("unsupported database url %q (expected postgres://, duckdb:, libsql://, file: or sqlite:)", url)
	}
}
