// Package ddl renders CREATE TABLE statements for schema.Table values in
// the dialect of each supported backend.
package ddl

import (
	"fmt"
	"strings"

	"salesetl/internal/schema"
)

// Dialect names accepted by BuildCreateTableSQL and MapType.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
	MSSQL    = "mssql"
	MySQL    = "mysql"
)

// MapType maps a logical column type to the backend SQL type. Unknown kinds
// fall back to the dialect's text type.
func MapType(dialect, kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch dialect {
	case SQLite:
		switch kind {
		case schema.BigInt:
			return "INTEGER"
		case schema.Double:
			return "REAL"
		case schema.Date:
			// Declared DATE so the driver scans values back as time.Time.
			return "DATE"
		default:
			return "TEXT"
		}
	case MSSQL:
		switch kind {
		case schema.BigInt:
			return "BIGINT"
		case schema.Double:
			return "FLOAT"
		case schema.Date:
			return "DATE"
		default:
			return "NVARCHAR(MAX)"
		}
	case MySQL:
		switch kind {
		case schema.BigInt:
			return "BIGINT"
		case schema.Double:
			return "DOUBLE"
		case schema.Date:
			return "DATE"
		default:
			return "TEXT"
		}
	default:
		switch kind {
		case schema.BigInt:
			return "BIGINT"
		case schema.Double:
			return "DOUBLE PRECISION"
		case schema.Date:
			return "DATE"
		default:
			return "TEXT"
		}
	}
}

// QuoteIdent quotes one identifier for dialect, doubling any embedded
// closing quote.
func QuoteIdent(dialect, s string) string {
	switch dialect {
	case MSSQL:
		return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
	case MySQL:
		return "`" + strings.ReplaceAll(s, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
}

// QuoteFQN quotes a dotted schema.table name part by part.
func QuoteFQN(dialect, fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = QuoteIdent(dialect, p)
	}
	return strings.Join(parts, ".")
}

// BuildCreateTableSQL renders an idempotent CREATE TABLE for t:
//
//	postgres, sqlite, mysql: CREATE TABLE IF NOT EXISTS ...
//	mssql:                   IF OBJECT_ID(N'...', N'U') IS NULL CREATE TABLE ...
func BuildCreateTableSQL(dialect string, t schema.Table) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("ddl: missing table name")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: table %s has no columns", t.FQN())
	}
	switch dialect {
	case Postgres, SQLite, MSSQL, MySQL:
	default:
		return "", fmt.Errorf("ddl: unsupported dialect %q", dialect)
	}

	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", t.FQN())
		}
		def := QuoteIdent(dialect, c.Name) + " " + MapType(dialect, c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	name := QuoteFQN(dialect, t.FQN())
	body := "(\n  " + strings.Join(defs, ",\n  ") + "\n)"
	if dialect == MSSQL {
		lit := strings.ReplaceAll(t.FQN(), "'", "''")
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s %s;", lit, name, body), nil
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s;", name, body), nil
}
