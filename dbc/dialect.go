package dbc

import (
	"strings"

	arm "github.com/lokhman/silex-arm"
)

// sqliteDialect quotes with ANSI double quotes.
type sqliteDialect struct{}

func (sqliteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqliteDialect) QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// mysqlDialect quotes identifiers with backticks.
type mysqlDialect struct{}

func (mysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) QuoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// DialectFor returns the dialect for a driver name ("sqlite3" or "mysql").
func DialectFor(driver string) arm.Dialect {
	if driver == "mysql" {
		return mysqlDialect{}
	}
	return sqliteDialect{}
}
