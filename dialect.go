package main

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect selects the naming and type rules of a source database engine.
// It is a plain value passed explicitly to every core function.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "pgsql"
	DialectSQLite   Dialect = "sqlite"
)

func parseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "pgsql", "postgres", "postgresql":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported source type %q (must be mysql, pgsql or sqlite)", s)
	}
}

func (d Dialect) displayName() string {
	switch d {
	case DialectMySQL:
		return "MySQL"
	case DialectPostgres:
		return "PostgreSQL"
	case DialectSQLite:
		return "SQLite"
	default:
		return string(d)
	}
}

// defaultPrimaryKeyName is the name the engine gives a primary key created
// without an explicit name.
func (d Dialect) defaultPrimaryKeyName(table string) string {
	switch d {
	case DialectMySQL:
		return "PRIMARY"
	case DialectPostgres:
		return table + "_pkey"
	default:
		return ""
	}
}

// namesEqual compares identifiers with the engine's case rules.
func (d Dialect) namesEqual(a, b string) bool {
	if d == DialectPostgres {
		return a == b
	}
	return strings.EqualFold(a, b)
}

func (d Dialect) supportsPrefixIndex() bool {
	return d == DialectMySQL
}

func (d Dialect) quoteIdentifier(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var currentTimestampPattern = regexp.MustCompile(`^(current_timestamp|now|localtimestamp|localtime)(\s*\(\s*\d*\s*\))?$`)

// isCurrentTimestamp reports whether a column default is the engine's
// current-time function, in any of the spellings the engines report.
func (d Dialect) isCurrentTimestamp(expr string) bool {
	e := strings.ToLower(strings.TrimSpace(expr))
	if d == DialectPostgres {
		e = strings.TrimSuffix(e, "::timestamp without time zone")
		e = strings.TrimSuffix(e, "::timestamp with time zone")
		if strings.HasPrefix(e, "(") && strings.HasSuffix(e, ")") {
			e = e[1 : len(e)-1]
		}
	}
	return currentTimestampPattern.MatchString(e)
}
