package arm

import (
	"context"
	"database/sql"
)

// Dialect knows how to quote identifiers and string literals for one SQL
// dialect.
type Dialect interface {
	QuoteIdent(name string) string
	QuoteLiteral(s string) string
}

// TableRef is a FROM or JOIN table reference. Table may be profile-prefixed
// ("profile:table"); Alias defaults to the bare table name when empty.
type TableRef struct {
	Table string
	Alias string
}

// AliasOrTable returns the effective alias of the reference.
func (r TableRef) AliasOrTable() string {
	if r.Alias != "" {
		return r.Alias
	}
	return bareTable(r.Table)
}

// JoinRef is a JOIN clause reference.
type JoinRef struct {
	TableRef
	FromAlias string // alias of the side the join hangs off
	Kind      string // "JOIN", "LEFT JOIN", ...
	Condition string // raw ON expression
}

// QueryBuilder is the query representation the repository rewrites and
// executes. The repository replaces the SELECT list with fully-qualified,
// translation-aware expressions, appends LEFT JOINs for translation lookups,
// and rewrites {...} placeholder tokens in the final SQL text.
type QueryBuilder interface {
	// Dialect returns the dialect used for quoting within the query.
	Dialect() Dialect

	// IsSelect reports whether the builder holds a SELECT query. The
	// hydrating fetch path refuses anything else.
	IsSelect() bool

	// SelectParts returns the SELECT list entries. An entry is "*",
	// "alias.*", "alias.column", a bare column name, or an opaque expression
	// containing a space.
	SelectParts() []string

	// SetSelectParts replaces the SELECT list.
	SetSelectParts(parts []string)

	// FromParts returns the FROM table references.
	FromParts() []TableRef

	// JoinParts returns the JOIN references.
	JoinParts() []JoinRef

	// LeftJoin appends a LEFT JOIN with a raw ON condition.
	LeftJoin(fromAlias, table, alias, condition string)

	// SQL returns the final SQL text, placeholder tokens included.
	SQL() string

	// Params returns the bound parameters in placeholder order.
	Params() []any

	// ParamTypes returns declared types aligned with Params. An empty Type
	// means the parameter is bound as-is.
	ParamTypes() []Type
}

// TypedParam attaches a declared type to a bound parameter so the repository
// can route it through the TypeConverter before execution.
type TypedParam struct {
	Value any
	Type  Type
}

// Conn is the database connection collaborator. Implementations execute
// parameterized SQL, perform map-based writes and manage the single ambient
// transaction. The dbc subpackage provides an implementation over
// database/sql.
type Conn interface {
	// Query executes a parameterized query and returns the row cursor.
	Query(ctx context.Context, query string, params []any) (*sql.Rows, error)

	// Exec executes a parameterized statement and returns the affected rows.
	Exec(ctx context.Context, query string, params []any) (int64, error)

	// Insert writes one row and returns the last inserted identifier.
	Insert(ctx context.Context, table string, values map[string]any) (int64, error)

	// Update writes the given columns on rows matching the where equalities
	// (nil values compare with IS NULL) and returns the affected rows.
	Update(ctx context.Context, table string, values, where map[string]any) (int64, error)

	// Delete removes rows matching the where equalities and returns the
	// affected rows.
	Delete(ctx context.Context, table string, where map[string]any) (int64, error)

	// Begin opens the ambient transaction. It fails if one is already open:
	// the discipline is one transaction at a time per connection, owned by
	// the outermost mutating call.
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	// InTransaction reports whether the ambient transaction is open.
	InTransaction() bool

	// OnFinish registers fn to run when the ambient transaction ends. fn
	// receives true when the transaction commits and false when it rolls
	// back. With no transaction open fn runs immediately as committed.
	OnFinish(fn func(committed bool))

	// Dialect returns the connection's SQL dialect.
	Dialect() Dialect
}

// TypeConverter converts between native Go values and database-storable
// values for a declared column type. The typeconv subpackage provides the
// default implementation.
type TypeConverter interface {
	ToDatabase(t Type, v any) (any, error)
	FromDatabase(t Type, v any) (any, error)
}

// Storage moves files into managed storage and removes them again. The
// storage subpackage provides filesystem, in-memory and S3 implementations.
type Storage interface {
	// Move takes a temporary or uploaded file and moves it into managed
	// storage, returning the stored name.
	Move(src string) (string, error)

	// Delete removes a stored file. Deleting a name that no longer exists is
	// not an error.
	Delete(name string) error

	// Path resolves a stored name to a full path or URI.
	Path(name string) string
}
