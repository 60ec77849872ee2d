// Package dbc implements the arm.Conn collaborator over database/sql, with
// SQLite and MySQL drivers.
package dbc

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	arm "github.com/lokhman/silex-arm"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// DB wraps a *sql.DB with the map-based write helpers and the single ambient
// transaction the mapper requires. A DB is meant for sequential use: one
// open transaction at a time, owned by the outermost mutating call.
type DB struct {
	db        *sql.DB
	tx        *sql.Tx
	driver    string
	dialect   arm.Dialect
	finishers []func(committed bool)
}

// Open opens and configures a connection. driver is "sqlite3" or "mysql";
// for sqlite3 the path can be ":memory:" for an in-memory database.
func Open(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite3" {
		// Enable foreign key constraints (SQLite default is OFF for backward
		// compatibility).
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	return NewFromDB(db, driver), nil
}

// NewFromDB wraps an existing connection. The caller is responsible for
// ensuring the connection is properly configured.
func NewFromDB(db *sql.DB, driver string) *DB {
	return &DB{db: db, driver: driver, dialect: DialectFor(driver)}
}

// Driver returns the driver name.
func (d *DB) Driver() string { return d.driver }

// Dialect returns the connection's SQL dialect.
func (d *DB) Dialect() arm.Dialect { return d.dialect }

// Unwrap exposes the underlying *sql.DB for migrations and tooling.
func (d *DB) Unwrap() *sql.DB { return d.db }

// Query executes a parameterized query inside the ambient transaction when
// one is open.
func (d *DB) Query(ctx context.Context, query string, params []any) (*sql.Rows, error) {
	if d.tx != nil {
		return d.tx.QueryContext(ctx, query, params...)
	}
	return d.db.QueryContext(ctx, query, params...)
}

// Exec executes a parameterized statement and returns the affected rows.
func (d *DB) Exec(ctx context.Context, query string, params []any) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if d.tx != nil {
		res, err = d.tx.ExecContext(ctx, query, params...)
	} else {
		res, err = d.db.ExecContext(ctx, query, params...)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Insert writes one row and returns the last inserted identifier.
func (d *DB) Insert(ctx context.Context, table string, values map[string]any) (int64, error) {
	cols := sortedKeys(values)
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.dialect.QuoteIdent(table))
	b.WriteString(" (")
	params := make([]any, 0, len(cols))
	for i, col := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.dialect.QuoteIdent(col))
		params = append(params, values[col])
	}
	b.WriteString(") VALUES (")
	for i := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
	}
	b.WriteString(")")

	var (
		res sql.Result
		err error
	)
	if d.tx != nil {
		res, err = d.tx.ExecContext(ctx, b.String(), params...)
	} else {
		res, err = d.db.ExecContext(ctx, b.String(), params...)
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Update writes the given columns on rows matching the where equalities and
// returns the affected rows. Nil where-values compare with IS NULL.
func (d *DB) Update(ctx context.Context, table string, values, where map[string]any) (int64, error) {
	cols := sortedKeys(values)
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(d.dialect.QuoteIdent(table))
	b.WriteString(" SET ")
	params := make([]any, 0, len(cols)+len(where))
	for i, col := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.dialect.QuoteIdent(col))
		b.WriteString(" = ?")
		params = append(params, values[col])
	}
	params = d.writeWhere(&b, where, params)
	return d.Exec(ctx, b.String(), params)
}

// Delete removes rows matching the where equalities and returns the affected
// rows.
func (d *DB) Delete(ctx context.Context, table string, where map[string]any) (int64, error) {
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(d.dialect.QuoteIdent(table))
	params := d.writeWhere(&b, where, nil)
	return d.Exec(ctx, b.String(), params)
}

func (d *DB) writeWhere(b *strings.Builder, where map[string]any, params []any) []any {
	if len(where) == 0 {
		return params
	}
	b.WriteString(" WHERE ")
	for i, col := range sortedKeys(where) {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(d.dialect.QuoteIdent(col))
		if where[col] == nil {
			b.WriteString(" IS NULL")
			continue
		}
		b.WriteString(" = ?")
		params = append(params, where[col])
	}
	return params
}

// Begin opens the ambient transaction. It fails if one is already open.
func (d *DB) Begin(ctx context.Context) error {
	if d.tx != nil {
		return fmt.Errorf("transaction already active")
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	d.tx = tx
	return nil
}

// Commit commits the ambient transaction and runs registered finish
// callbacks with the outcome.
func (d *DB) Commit() error {
	if d.tx == nil {
		return fmt.Errorf("no active transaction")
	}
	err := d.tx.Commit()
	d.tx = nil
	d.finish(err == nil)
	if err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback aborts the ambient transaction and runs registered finish
// callbacks as rolled back.
func (d *DB) Rollback() error {
	if d.tx == nil {
		return fmt.Errorf("no active transaction")
	}
	err := d.tx.Rollback()
	d.tx = nil
	d.finish(false)
	if err != nil {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

// InTransaction reports whether the ambient transaction is open.
func (d *DB) InTransaction() bool { return d.tx != nil }

// OnFinish registers fn to run when the ambient transaction ends, with true
// on commit and false on rollback. With no transaction open fn runs
// immediately as committed.
func (d *DB) OnFinish(fn func(committed bool)) {
	if d.tx == nil {
		fn(true)
		return
	}
	d.finishers = append(d.finishers, fn)
}

func (d *DB) finish(committed bool) {
	fns := d.finishers
	d.finishers = nil
	for _, fn := range fns {
		fn(committed)
	}
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Compile-time check that DB implements the arm.Conn interface.
var _ arm.Conn = (*DB)(nil)
