package arm

import (
	"context"
	"fmt"
	"strings"
)

// aliasSep is the reserved separator encoding "<table><sep><column>" into one
// flat result alias during cross-table hydration. Six ASCII unit-separator
// bytes cannot occur in a real table or column name; the hydrator strips it
// when decoding rows.
const aliasSep = "\x1f\x1f\x1f\x1f\x1f\x1f"

// queryRef is one resolved FROM/JOIN reference.
type queryRef struct {
	alias string
	repo  *Repository
}

// resolveRefs maps every FROM and JOIN table reference of the query to its
// registered repository. An unresolved reference is a configuration error
// naming the missing table.
func (r *Repository) resolveRefs(qb QueryBuilder) ([]queryRef, map[string]queryRef, error) {
	var refs []queryRef
	byAlias := make(map[string]queryRef)

	add := func(tr TableRef) error {
		profile := refProfile(tr.Table)
		if profile == "" {
			profile = r.profile
		}
		repo, err := r.registry.repositoryFor(profile, bareTable(tr.Table))
		if err != nil {
			return err
		}
		ref := queryRef{alias: tr.AliasOrTable(), repo: repo}
		refs = append(refs, ref)
		byAlias[ref.alias] = ref
		return nil
	}
	for _, tr := range qb.FromParts() {
		if err := add(tr); err != nil {
			return nil, nil, err
		}
	}
	for _, jr := range qb.JoinParts() {
		if bareTable(jr.Table) == TranslationsTable {
			// A translation join appended by an earlier rewrite of the same
			// builder. It is not a registered table and carries no
			// hydratable columns.
			continue
		}
		if err := add(jr.TableRef); err != nil {
			return nil, nil, err
		}
	}
	if len(refs) == 0 {
		return nil, nil, configErrorf("table %s: query has no FROM clause", r.table)
	}
	return refs, byAlias, nil
}

// expandSelect rewrites the SELECT list into one fully-qualified,
// translation-aware expression per physical column, each aliased to a
// collision-free synthetic name. Repeated references collapse to one entry,
// first occurrence winning; opaque expressions (containing a space) pass
// through unmodified.
func (r *Repository) expandSelect(qb QueryBuilder, refs []queryRef, byAlias map[string]queryRef) error {
	d := qb.Dialect()
	parts := qb.SelectParts()
	if len(parts) == 0 {
		parts = []string{"*"}
	}

	var out []string
	seen := make(map[string]bool)
	transN := 0

	addColumn := func(ref queryRef, col string) {
		synth := ref.repo.table + aliasSep + col
		if seen[synth] {
			return
		}
		seen[synth] = true
		expr := r.columnExpr(d, qb, ref, col, &transN)
		out = append(out, expr+" AS "+d.QuoteIdent(synth))
	}

	for _, part := range parts {
		switch {
		case part == "*":
			for _, ref := range refs {
				for _, col := range ref.repo.meta.columns {
					addColumn(ref, col)
				}
			}
		case strings.ContainsAny(part, " ("):
			// Opaque expression: passed through unmodified.
			if !seen[part] {
				seen[part] = true
				out = append(out, part)
			}
		case strings.HasSuffix(part, ".*"):
			alias := strings.TrimSuffix(part, ".*")
			ref, ok := byAlias[alias]
			if !ok {
				return configErrorf("no repository registered for table %q", alias)
			}
			for _, col := range ref.repo.meta.columns {
				addColumn(ref, col)
			}
		case strings.Contains(part, "."):
			alias, col, _ := strings.Cut(part, ".")
			ref, ok := byAlias[alias]
			if !ok {
				return configErrorf("no repository registered for table %q", alias)
			}
			addColumn(ref, col)
		default:
			// Bare column: resolved against the invoking repository.
			ref, ok := r.ownRef(refs)
			if !ok {
				return configErrorf("table %s: bare column %q but the table is not referenced by the query", r.table, part)
			}
			addColumn(ref, part)
		}
	}
	qb.SetSelectParts(out)
	return nil
}

// ownRef finds the query reference pointing at the invoking repository.
func (r *Repository) ownRef(refs []queryRef) (queryRef, bool) {
	for _, ref := range refs {
		if ref.repo == r {
			return ref, true
		}
	}
	return queryRef{}, false
}

// columnExpr renders one column reference. When translation is active for
// the caller's locale and the column is translatable in its owning entity's
// metadata, the plain reference becomes a COALESCE over a uniquely-aliased
// LEFT JOIN against the translations table; otherwise the column is
// referenced directly.
func (r *Repository) columnExpr(d Dialect, qb QueryBuilder, ref queryRef, col string, transN *int) string {
	qAlias := d.QuoteIdent(ref.alias)
	qCol := d.QuoteIdent(col)
	if !r.foreign || !ref.repo.meta.IsTranslatable(col) {
		return qAlias + "." + qCol
	}
	ta := fmt.Sprintf("_t%d", *transN)
	*transN++
	cond := fmt.Sprintf("%s.%s = %s AND %s.%s = %s.%s AND %s.%s = %s AND %s.%s = %s",
		ta, d.QuoteIdent(transTableCol), d.QuoteLiteral(ref.repo.table),
		ta, d.QuoteIdent(transKeyCol), qAlias, d.QuoteIdent(ref.repo.meta.Primary()),
		ta, d.QuoteIdent(transColumnCol), d.QuoteLiteral(col),
		ta, d.QuoteIdent(transLocaleCol), d.QuoteLiteral(r.locale),
	)
	qb.LeftJoin(ref.alias, TranslationsTable, ta, cond)
	return fmt.Sprintf("COALESCE(%s.%s, %s.%s)", ta, d.QuoteIdent(transContentCol), qAlias, qCol)
}

// rewriteTokens substitutes {alias.column} and {column} placeholder tokens in
// raw SQL text with the corresponding synthetic aliases, skipping quoted
// string literals verbatim. A token whose alias is registered substitutes to
// the quoted synthetic name; a bare token matching the invoking repository's
// own schema does the same; any other token is emitted with the braces
// stripped and its content untouched.
func (r *Repository) rewriteTokens(sqlText string, byAlias map[string]queryRef) (string, error) {
	d := r.conn.Dialect()
	var b strings.Builder
	i := 0
	for i < len(sqlText) {
		switch c := sqlText[i]; c {
		case '\'', '"', '`':
			end, err := scanQuoted(sqlText, i)
			if err != nil {
				return "", err
			}
			b.WriteString(sqlText[i:end])
			i = end
		case '{':
			end, err := scanBraced(sqlText, i)
			if err != nil {
				return "", err
			}
			repl, err := r.substituteToken(d, sqlText[i+1:end-1], byAlias)
			if err != nil {
				return "", err
			}
			b.WriteString(repl)
			i = end
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

func (r *Repository) substituteToken(d Dialect, inner string, byAlias map[string]queryRef) (string, error) {
	// Nested tokens rewrite first, innermost out.
	inner, err := r.rewriteTokens(inner, byAlias)
	if err != nil {
		return "", err
	}
	if alias, col, ok := strings.Cut(inner, "."); ok && isIdent(alias) && isIdent(col) {
		ref, ok := byAlias[alias]
		if !ok {
			return "", configErrorf("no repository registered for table %q", alias)
		}
		return d.QuoteIdent(ref.repo.table + aliasSep + col), nil
	}
	if isIdent(inner) && r.meta.Has(inner) {
		return d.QuoteIdent(r.table + aliasSep + inner), nil
	}
	return inner, nil
}

// scanQuoted returns the index just past a quoted literal starting at i,
// honouring doubled-quote and backslash escapes.
func scanQuoted(s string, i int) (int, error) {
	quote := s[i]
	j := i + 1
	for j < len(s) {
		switch s[j] {
		case quote:
			if j+1 < len(s) && s[j+1] == quote {
				j += 2
				continue
			}
			return j + 1, nil
		case '\\':
			if quote != '`' && j+1 < len(s) {
				j += 2
				continue
			}
			j++
		default:
			j++
		}
	}
	return 0, fmt.Errorf("unterminated string literal at offset %d", i)
}

// scanBraced returns the index just past a balanced {...} token starting at
// i, skipping quoted substrings inside the token.
func scanBraced(s string, i int) (int, error) {
	depth := 0
	j := i
	for j < len(s) {
		switch s[j] {
		case '{':
			depth++
			j++
		case '}':
			depth--
			j++
			if depth == 0 {
				return j, nil
			}
		case '\'', '"', '`':
			end, err := scanQuoted(s, j)
			if err != nil {
				return 0, err
			}
			j = end
		default:
			j++
		}
	}
	return 0, fmt.Errorf("unbalanced braces at offset %d", i)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// convertParams routes typed parameters through the converter before binding.
func (r *Repository) convertParams(params []any, types []Type) ([]any, error) {
	if len(types) == 0 {
		return params, nil
	}
	out := make([]any, len(params))
	for i, p := range params {
		if i < len(types) && types[i] != "" {
			conv, err := r.converter.ToDatabase(types[i], p)
			if err != nil {
				return nil, fmt.Errorf("converting parameter %d: %w", i, err)
			}
			out[i] = conv
			continue
		}
		out[i] = p
	}
	return out, nil
}

// rewrite runs the full pipeline: resolve references, expand the SELECT
// list, rewrite placeholder tokens and convert typed parameters. Returns the
// executable SQL, its parameters and the table->repository map the hydrator
// needs for joined sub-entities. Rewriting mutates the builder's SELECT list
// and joins; running it again over an already-rewritten builder passes the
// expanded parts through untouched and yields the same query.
func (r *Repository) rewrite(qb QueryBuilder) (string, []any, map[string]*Repository, error) {
	refs, byAlias, err := r.resolveRefs(qb)
	if err != nil {
		return "", nil, nil, err
	}
	if err := r.expandSelect(qb, refs, byAlias); err != nil {
		return "", nil, nil, err
	}
	sqlText, err := r.rewriteTokens(qb.SQL(), byAlias)
	if err != nil {
		return "", nil, nil, err
	}
	params, err := r.convertParams(qb.Params(), qb.ParamTypes())
	if err != nil {
		return "", nil, nil, err
	}
	tables := make(map[string]*Repository, len(refs))
	for _, ref := range refs {
		tables[ref.repo.table] = ref.repo
	}
	return sqlText, params, tables, nil
}

// Fetch executes a SELECT query builder and returns a forward-only cursor of
// hydrated entities. Calling it with a non-SELECT builder is a programming
// error. The cursor is single-pass; re-iterating requires re-issuing the
// query.
func (r *Repository) Fetch(ctx context.Context, qb QueryBuilder) (*Cursor, error) {
	if !qb.IsSelect() {
		return nil, configErrorf("table %s: cannot hydrate a non-select query", r.table)
	}
	sqlText, params, tables, err := r.rewrite(qb)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("executing query", "table", r.table, "sql", sqlText)
	rows, err := r.conn.Query(ctx, sqlText, params)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", r.table, err)
	}
	return newCursor(r, rows, tables)
}

// FetchAll executes the query and drains the cursor into a slice.
func (r *Repository) FetchAll(ctx context.Context, qb QueryBuilder) ([]*Entity, error) {
	c, err := r.Fetch(ctx, qb)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()

	var out []*Entity
	for c.Next() {
		out = append(out, c.Entity())
	}
	return out, c.Err()
}

// FetchOne executes the query and returns the first entity, or nil if the
// result set is empty.
func (r *Repository) FetchOne(ctx context.Context, qb QueryBuilder) (*Entity, error) {
	c, err := r.Fetch(ctx, qb)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()

	if !c.Next() {
		return nil, c.Err()
	}
	return c.Entity(), nil
}

// Find loads one entity by primary key, or nil if no row matches.
func (r *Repository) Find(ctx context.Context, id any) (*Entity, error) {
	d := r.conn.Dialect()
	q := &simpleSelect{
		d:       d,
		selects: []string{"*"},
		from:    TableRef{Table: r.QualifiedName(), Alias: r.table},
		where:   d.QuoteIdent(r.table) + "." + d.QuoteIdent(r.meta.Primary()) + " = ?",
		params:  []any{id},
	}
	return r.FetchOne(ctx, q)
}

// Count runs the rewritten query as a subselect and returns its row count.
func (r *Repository) Count(ctx context.Context, qb QueryBuilder) (int64, error) {
	if !qb.IsSelect() {
		return 0, configErrorf("table %s: cannot count a non-select query", r.table)
	}
	sqlText, params, _, err := r.rewrite(qb)
	if err != nil {
		return 0, err
	}
	query := "SELECT COUNT(*) FROM (" + sqlText + ") AS _cnt"
	rows, err := r.conn.Query(ctx, query, params)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", r.table, err)
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// simpleSelect is the minimal QueryBuilder used by Find, so primary-key
// lookups go through the same rewriting pipeline (translation joins
// included) without pulling in the builder package.
type simpleSelect struct {
	d       Dialect
	selects []string
	from    TableRef
	joins   []JoinRef
	where   string
	params  []any
}

func (q *simpleSelect) Dialect() Dialect              { return q.d }
func (q *simpleSelect) IsSelect() bool                { return true }
func (q *simpleSelect) SelectParts() []string         { return q.selects }
func (q *simpleSelect) SetSelectParts(parts []string) { q.selects = parts }
func (q *simpleSelect) FromParts() []TableRef         { return []TableRef{q.from} }
func (q *simpleSelect) JoinParts() []JoinRef          { return q.joins }
func (q *simpleSelect) Params() []any                 { return q.params }
func (q *simpleSelect) ParamTypes() []Type            { return make([]Type, len(q.params)) }

func (q *simpleSelect) LeftJoin(fromAlias, table, alias, condition string) {
	q.joins = append(q.joins, JoinRef{
		TableRef:  TableRef{Table: table, Alias: alias},
		FromAlias: fromAlias,
		Kind:      "LEFT JOIN",
		Condition: condition,
	})
}

func (q *simpleSelect) SQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.selects, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.d.QuoteIdent(bareTable(q.from.Table)))
	b.WriteString(" ")
	b.WriteString(q.d.QuoteIdent(q.from.AliasOrTable()))
	for _, j := range q.joins {
		b.WriteString(" ")
		b.WriteString(j.Kind)
		b.WriteString(" ")
		b.WriteString(q.d.QuoteIdent(bareTable(j.Table)))
		b.WriteString(" ")
		b.WriteString(q.d.QuoteIdent(j.AliasOrTable()))
		b.WriteString(" ON ")
		b.WriteString(j.Condition)
	}
	if q.where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(q.where)
	}
	return b.String()
}
