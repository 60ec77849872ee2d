// Package builder provides a small fluent SELECT builder implementing
// arm.QueryBuilder. Table references are plain table names (optionally
// profile-prefixed); WHERE conditions are raw SQL with ? placeholders and
// may contain {alias.column} tokens for the repository rewriter.
package builder

import (
	"strconv"
	"strings"

	arm "github.com/lokhman/silex-arm"
)

// Query is a mutable SELECT query. The zero value is not usable; construct
// with New.
type Query struct {
	dialect arm.Dialect
	raw     string // non-empty for raw (non-SELECT) statements
	selects []string
	from    []arm.TableRef
	joins   []arm.JoinRef
	wheres  []string
	params  []any
	types   []arm.Type
	groupBy []string
	having  []string
	orderBy []string
	limit   int
	offset  int
}

// New starts a SELECT query for the given dialect.
func New(d arm.Dialect) *Query {
	return &Query{dialect: d, limit: -1, offset: -1}
}

// NewRaw wraps an arbitrary SQL statement. Raw queries cannot be hydrated by
// a repository fetch.
func NewRaw(d arm.Dialect, sql string, params ...any) *Query {
	q := New(d)
	q.raw = sql
	q.bind(params)
	return q
}

// Select appends entries to the SELECT list: "*", "alias.*", "alias.column",
// a bare column, or an opaque expression containing a space.
func (q *Query) Select(parts ...string) *Query {
	q.selects = append(q.selects, parts...)
	return q
}

// From adds a FROM table reference. alias may be empty.
func (q *Query) From(table, alias string) *Query {
	q.from = append(q.from, arm.TableRef{Table: table, Alias: alias})
	return q
}

// Join adds an INNER JOIN.
func (q *Query) Join(fromAlias, table, alias, condition string) *Query {
	return q.join("JOIN", fromAlias, table, alias, condition)
}

// LeftJoin adds a LEFT JOIN.
func (q *Query) LeftJoin(fromAlias, table, alias, condition string) {
	q.join("LEFT JOIN", fromAlias, table, alias, condition)
}

func (q *Query) join(kind, fromAlias, table, alias, condition string) *Query {
	q.joins = append(q.joins, arm.JoinRef{
		TableRef:  arm.TableRef{Table: table, Alias: alias},
		FromAlias: fromAlias,
		Kind:      kind,
		Condition: condition,
	})
	return q
}

// Where appends an AND-joined condition with its bound parameters. Wrap a
// parameter in arm.TypedParam to route it through the type converter.
func (q *Query) Where(condition string, params ...any) *Query {
	q.wheres = append(q.wheres, condition)
	q.bind(params)
	return q
}

// GroupBy appends GROUP BY expressions.
func (q *Query) GroupBy(exprs ...string) *Query {
	q.groupBy = append(q.groupBy, exprs...)
	return q
}

// Having appends an AND-joined HAVING condition with its bound parameters.
func (q *Query) Having(condition string, params ...any) *Query {
	q.having = append(q.having, condition)
	q.bind(params)
	return q
}

// OrderBy appends ORDER BY expressions.
func (q *Query) OrderBy(exprs ...string) *Query {
	q.orderBy = append(q.orderBy, exprs...)
	return q
}

// Limit caps the result set size.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

func (q *Query) bind(params []any) {
	for _, p := range params {
		if tp, ok := p.(arm.TypedParam); ok {
			q.params = append(q.params, tp.Value)
			q.types = append(q.types, tp.Type)
			continue
		}
		q.params = append(q.params, p)
		q.types = append(q.types, "")
	}
}

// arm.QueryBuilder implementation.

func (q *Query) Dialect() arm.Dialect          { return q.dialect }
func (q *Query) IsSelect() bool                { return q.raw == "" }
func (q *Query) SelectParts() []string         { return q.selects }
func (q *Query) SetSelectParts(parts []string) { q.selects = parts }
func (q *Query) FromParts() []arm.TableRef     { return q.from }
func (q *Query) JoinParts() []arm.JoinRef      { return q.joins }
func (q *Query) Params() []any                 { return q.params }
func (q *Query) ParamTypes() []arm.Type        { return q.types }

// SQL assembles the final query text. Profile prefixes are resolution-only
// and never reach the SQL: all references must live on one connection.
func (q *Query) SQL() string {
	if q.raw != "" {
		return q.raw
	}
	d := q.dialect
	var b strings.Builder

	b.WriteString("SELECT ")
	if len(q.selects) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(q.selects, ", "))
	}

	b.WriteString(" FROM ")
	for i, t := range q.from {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.QuoteIdent(bare(t.Table)))
		b.WriteString(" ")
		b.WriteString(d.QuoteIdent(t.AliasOrTable()))
	}

	for _, j := range q.joins {
		b.WriteString(" ")
		b.WriteString(j.Kind)
		b.WriteString(" ")
		b.WriteString(d.QuoteIdent(bare(j.Table)))
		b.WriteString(" ")
		b.WriteString(d.QuoteIdent(j.AliasOrTable()))
		b.WriteString(" ON ")
		b.WriteString(j.Condition)
	}

	writeConds(&b, " WHERE ", q.wheres)
	if len(q.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(q.groupBy, ", "))
	}
	writeConds(&b, " HAVING ", q.having)
	if len(q.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.orderBy, ", "))
	}
	if q.limit >= 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.limit))
	}
	if q.offset >= 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(q.offset))
	}
	return b.String()
}

func writeConds(b *strings.Builder, keyword string, conds []string) {
	if len(conds) == 0 {
		return
	}
	b.WriteString(keyword)
	for i, c := range conds {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("(")
		b.WriteString(c)
		b.WriteString(")")
	}
}

func bare(table string) string {
	if i := strings.IndexByte(table, ':'); i >= 0 {
		return table[i+1:]
	}
	return table
}

var _ arm.QueryBuilder = (*Query)(nil)
