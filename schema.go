package arm

// Type is a declared column type. The TypeConverter collaborator decides how
// each type maps between native Go values and database-storable values.
type Type string

const (
	Int      Type = "int"
	SmallInt Type = "smallint"
	Bool     Type = "bool"
	Float    Type = "float"
	String   Type = "string"
	Text     Type = "text"
	Blob     Type = "blob"
	Date     Type = "date"
	Time     Type = "time"
	DateTime Type = "datetime"
	JSON     Type = "json"
)

// Integer reports whether the type stores an integer value.
// Only integer-typed columns may carry the Positional flag.
func (t Type) Integer() bool { return t == Int || t == SmallInt }

// Flag marks a column's behaviour in the schema.
type Flag uint8

const (
	// Primary marks the primary key column. Exactly one per schema.
	Primary Flag = 1 << iota
	// Required columns must be non-null on insert, and non-null on update if
	// the payload supplies a value.
	Required
	// Translatable columns are eligible for per-locale overrides kept in the
	// shared translations table.
	Translatable
	// File columns hold a managed storage path (or a JSON array of paths).
	File
	// Group columns partition rows into independent position sequences.
	Group
	// Positional marks the dense 0-based ordering column. At most one per
	// schema, always integer-typed.
	Positional
)

type schemaColumn struct {
	name  string
	typ   Type
	flags Flag
}

// SchemaBuilder assembles a Metadata declaration. Add columns with Column,
// then call Build; Build validates the declaration as a whole and returns an
// immutable Metadata.
type SchemaBuilder struct {
	table   string
	columns []schemaColumn
}

// NewSchema starts a schema declaration for the given table.
func NewSchema(table string) *SchemaBuilder {
	return &SchemaBuilder{table: table}
}

// Column appends a column declaration. Order matters: it defines the implicit
// "*" expansion order.
func (b *SchemaBuilder) Column(name string, typ Type, flags ...Flag) *SchemaBuilder {
	var f Flag
	for _, flag := range flags {
		f |= flag
	}
	b.columns = append(b.columns, schemaColumn{name: name, typ: typ, flags: f})
	return b
}

// Build validates the declaration and produces a locked Metadata.
// Violations of the flag exclusion rules are configuration errors.
func (b *SchemaBuilder) Build() (*Metadata, error) {
	if b.table == "" {
		return nil, configErrorf("schema: table name is empty")
	}
	m := &Metadata{
		table:    b.table,
		types:    make(map[string]Type, len(b.columns)),
		required: make(map[string]bool),
		trans:    make(map[string]bool),
		files:    make(map[string]bool),
	}
	for _, c := range b.columns {
		if c.name == "" {
			return nil, configErrorf("schema %s: column name is empty", b.table)
		}
		if _, dup := m.types[c.name]; dup {
			return nil, configErrorf("schema %s: duplicate column %q", b.table, c.name)
		}
		m.columns = append(m.columns, c.name)
		m.types[c.name] = c.typ

		if c.flags&Primary != 0 {
			if m.primary != "" {
				return nil, configErrorf("schema %s: duplicate primary key (%q and %q)", b.table, m.primary, c.name)
			}
			m.primary = c.name
		}
		if c.flags&Positional != 0 {
			if m.position != "" {
				return nil, configErrorf("schema %s: duplicate position column (%q and %q)", b.table, m.position, c.name)
			}
			if !c.typ.Integer() {
				return nil, configErrorf("schema %s: position column %q must be integer-typed, got %q", b.table, c.name, c.typ)
			}
			if c.flags&(Required|Translatable|Group) != 0 {
				return nil, configErrorf("schema %s: position column %q cannot be required, translatable or grouped", b.table, c.name)
			}
			m.position = c.name
		}
		if c.flags&File != 0 {
			if c.flags&Translatable != 0 {
				return nil, configErrorf("schema %s: file column %q cannot be translatable", b.table, c.name)
			}
			if c.typ != String && c.typ != Text && c.typ != JSON {
				return nil, configErrorf("schema %s: file column %q must be string, text or json-typed, got %q", b.table, c.name, c.typ)
			}
			m.files[c.name] = true
		}
		if c.flags&Required != 0 {
			m.required[c.name] = true
		}
		if c.flags&Translatable != 0 {
			m.trans[c.name] = true
		}
		if c.flags&Group != 0 {
			m.groups = append(m.groups, c.name)
		}
	}
	if m.primary == "" {
		return nil, configErrorf("schema %s: no primary key declared", b.table)
	}
	return m, nil
}

// Metadata is the locked, immutable description of one entity type's schema.
// It carries no mutable state: all fields are fixed at Build time, so a single
// Metadata is safe to share between repositories and entities.
type Metadata struct {
	table    string
	columns  []string // declaration order
	types    map[string]Type
	primary  string
	required map[string]bool
	trans    map[string]bool
	files    map[string]bool
	groups   []string // declaration order
	position string
}

// Table returns the table name.
func (m *Metadata) Table() string { return m.table }

// Columns returns the column names in declaration order.
// The returned slice is a copy.
func (m *Metadata) Columns() []string {
	out := make([]string, len(m.columns))
	copy(out, m.columns)
	return out
}

// TypeOf returns the declared type of a column and whether it exists.
func (m *Metadata) TypeOf(column string) (Type, bool) {
	t, ok := m.types[column]
	return t, ok
}

// Has reports whether the column is declared.
func (m *Metadata) Has(column string) bool {
	_, ok := m.types[column]
	return ok
}

// Primary returns the primary key column name.
func (m *Metadata) Primary() string { return m.primary }

// IsRequired reports whether the column must be non-null on insert.
func (m *Metadata) IsRequired(column string) bool { return m.required[column] }

// IsTranslatable reports whether the column may carry per-locale overrides.
func (m *Metadata) IsTranslatable(column string) bool { return m.trans[column] }

// IsFile reports whether the column holds managed storage paths.
func (m *Metadata) IsFile(column string) bool { return m.files[column] }

// Groups returns the grouping column names in declaration order.
// The returned slice is a copy.
func (m *Metadata) Groups() []string {
	out := make([]string, len(m.groups))
	copy(out, m.groups)
	return out
}

// Position returns the ordering column name, or "" if the schema has none.
func (m *Metadata) Position() string { return m.position }
