package arm

import (
	"database/sql"
	"fmt"
	"strings"
)

// Cursor is a lazy, forward-only, single-pass sequence of hydrated entities.
// It terminates when the underlying result set is exhausted; re-iterating
// requires re-issuing the query.
type Cursor struct {
	repo   *Repository
	rows   *sql.Rows
	cols   []string
	tables map[string]*Repository
	entity *Entity
	err    error
}

func newCursor(repo *Repository, rows *sql.Rows, tables map[string]*Repository) (*Cursor, error) {
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("reading result columns: %w", err)
	}
	return &Cursor{repo: repo, rows: rows, cols: cols, tables: tables}, nil
}

// Next advances to the next row, hydrating it into an entity. It returns
// false at the end of the result set or on error; check Err afterwards.
func (c *Cursor) Next() bool {
	if c.err != nil {
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		return false
	}
	vals := make([]any, len(c.cols))
	ptrs := make([]any, len(c.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		c.err = fmt.Errorf("scanning row: %w", err)
		return false
	}

	data := make(map[string]any)
	var subs map[string]map[string]any

	for i, col := range c.cols {
		v := vals[i]
		idx := strings.Index(col, aliasSep)
		if idx < 0 {
			// Pass-through expression: attached under its literal name.
			data[col] = v
			continue
		}
		table, column := col[:idx], col[idx+len(aliasSep):]
		if table == c.repo.table {
			data[column] = v
			continue
		}
		if subs == nil {
			subs = make(map[string]map[string]any)
		}
		if subs[table] == nil {
			subs[table] = make(map[string]any)
		}
		subs[table][column] = v
	}

	// Joined tables materialize as sub-entities once the row is otherwise
	// assembled, attached under the joined table's name.
	for table, subData := range subs {
		subRepo, ok := c.tables[table]
		if !ok {
			var err error
			if subRepo, err = c.repo.registry.repositoryFor(c.repo.profile, table); err != nil {
				c.err = err
				return false
			}
		}
		data[table] = newEntity(subRepo, subData)
	}

	c.entity = newEntity(c.repo, data)
	return true
}

// Entity returns the entity hydrated by the last successful Next.
func (c *Cursor) Entity() *Entity { return c.entity }

// Err returns the first error encountered while iterating.
func (c *Cursor) Err() error { return c.err }

// Close releases the underlying result set.
func (c *Cursor) Close() error { return c.rows.Close() }
