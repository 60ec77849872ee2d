package arm

import (
	"encoding/json"
	"fmt"
)

// Entity is a typed, mutable property bag for one row of a repository's
// table. Values are kept in database representation; Get and Set convert
// through the repository's TypeConverter, and file columns route through the
// Storage collaborator. An Entity belongs to the repository that created it
// and must only be passed back to that repository.
type Entity struct {
	repo *Repository
	data map[string]any

	// created tracks storage names written during the current mutation
	// attempt so a failed insert/update can unwind them.
	created []string
}

func newEntity(repo *Repository, data map[string]any) *Entity {
	if data == nil {
		data = make(map[string]any)
	}
	return &Entity{repo: repo, data: data}
}

// Repository returns the owning repository.
func (e *Entity) Repository() *Repository { return e.repo }

// Has reports whether the column (or joined sub-entity key) has a value in
// the entity, null included.
func (e *Entity) Has(column string) bool {
	_, ok := e.data[column]
	return ok
}

// Unset removes a column from the entity. Unset columns are excluded from
// partial updates.
func (e *Entity) Unset(column string) {
	delete(e.data, column)
}

// Get returns the native-typed value of a column. Reading an undeclared
// column is a configuration error; reading a declared column that carries no
// value wraps ErrNotSet, which is distinct from a column set to null (nil,
// nil). File columns resolve the stored name into a full path, or a slice of
// paths for array-valued columns.
func (e *Entity) Get(column string) (any, error) {
	t, ok := e.repo.meta.TypeOf(column)
	if !ok {
		return nil, configErrorf("table %s: unknown column %q", e.repo.table, column)
	}
	v, ok := e.data[column]
	if !ok {
		return nil, fmt.Errorf("table %s, column %q: %w", e.repo.table, column, ErrNotSet)
	}
	if v == nil {
		return nil, nil
	}
	if e.repo.meta.IsFile(column) {
		return e.resolveFile(t, v)
	}
	return e.repo.converter.FromDatabase(t, v)
}

// GetString is Get for string-valued columns; it returns "" for null.
func (e *Entity) GetString(column string) (string, error) {
	v, err := e.Get(column)
	if err != nil || v == nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("table %s, column %q: value is %T, not string", e.repo.table, column, v)
	}
	return s, nil
}

// GetInt is Get for integer-valued columns; it returns 0 for null.
func (e *Entity) GetInt(column string) (int64, error) {
	v, err := e.Get(column)
	if err != nil || v == nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("table %s, column %q: value is %T, not int64", e.repo.table, column, v)
	}
	return n, nil
}

// Set stores a native value into a column, converting to database
// representation. Setting a file column moves the given source path (or
// every path of a []string for array-valued columns) into managed storage
// and deletes any previously referenced file; setting it to nil only deletes
// the previous file.
func (e *Entity) Set(column string, value any) error {
	t, ok := e.repo.meta.TypeOf(column)
	if !ok {
		return configErrorf("table %s: unknown column %q", e.repo.table, column)
	}
	if e.repo.meta.IsFile(column) {
		return e.setFile(t, column, value)
	}
	if value == nil {
		e.data[column] = nil
		return nil
	}
	conv, err := e.repo.converter.ToDatabase(t, value)
	if err != nil {
		return fmt.Errorf("table %s, column %q: %w", e.repo.table, column, err)
	}
	e.data[column] = conv
	return nil
}

// Sub returns the joined sub-entity attached under the given table name, if
// the entity was hydrated from a JOIN query selecting that table.
func (e *Entity) Sub(table string) (*Entity, bool) {
	sub, ok := e.data[table].(*Entity)
	return sub, ok
}

// Primary returns the primary key value and whether it is set.
func (e *Entity) Primary() (any, bool) {
	v, ok := e.data[e.repo.meta.Primary()]
	return v, ok
}

// Data returns a shallow copy of the stored (database-representation) values.
func (e *Entity) Data() map[string]any {
	out := make(map[string]any, len(e.data))
	for k, v := range e.data {
		out[k] = v
	}
	return out
}

// MarshalJSON serializes the stored values; joined sub-entities nest under
// their table name.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.data)
}

func (e *Entity) setFile(t Type, column string, value any) error {
	storage := e.repo.storage
	if storage == nil {
		return configErrorf("table %s: file column %q used without storage configured", e.repo.table, column)
	}
	old := e.data[column]

	switch src := value.(type) {
	case nil:
		e.data[column] = nil
	case string:
		name, err := storage.Move(src)
		if err != nil {
			return fmt.Errorf("table %s, column %q: %w", e.repo.table, column, err)
		}
		e.created = append(e.created, name)
		e.data[column] = name
	case []string:
		if t != JSON {
			return configErrorf("table %s: column %q must be json-typed to hold multiple files", e.repo.table, column)
		}
		names := make([]string, 0, len(src))
		for _, s := range src {
			name, err := storage.Move(s)
			if err != nil {
				return fmt.Errorf("table %s, column %q: %w", e.repo.table, column, err)
			}
			e.created = append(e.created, name)
			names = append(names, name)
		}
		raw, err := json.Marshal(names)
		if err != nil {
			return fmt.Errorf("table %s, column %q: %w", e.repo.table, column, err)
		}
		e.data[column] = string(raw)
	default:
		return configErrorf("table %s: file column %q takes a path or []string, got %T", e.repo.table, column, value)
	}

	// The previous file is no longer referenced by anything.
	for _, name := range fileNames(old) {
		if err := storage.Delete(name); err != nil {
			return fmt.Errorf("table %s, column %q: deleting previous file: %w", e.repo.table, column, err)
		}
	}
	return nil
}

func (e *Entity) resolveFile(t Type, v any) (any, error) {
	names := fileNames(v)
	if t == JSON {
		paths := make([]string, len(names))
		for i, name := range names {
			paths[i] = e.repo.storage.Path(name)
		}
		return paths, nil
	}
	if len(names) == 0 {
		return nil, nil
	}
	return e.repo.storage.Path(names[0]), nil
}

// discardCreatedFiles removes every file stored during the current mutation
// attempt. Called when the mutation fails.
func (e *Entity) discardCreatedFiles() {
	for _, name := range e.created {
		_ = e.repo.storage.Delete(name)
	}
	e.created = nil
}

// commitCreatedFiles forgets the tracked files once the mutation committed.
func (e *Entity) commitCreatedFiles() {
	e.created = nil
}

// fileNames extracts stored names from a file column value: a single name, a
// JSON array of names, or nothing for null/empty.
func fileNames(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		if len(val) > 1 && val[0] == '[' {
			var names []string
			if err := json.Unmarshal([]byte(val), &names); err == nil {
				return names
			}
		}
		return []string{val}
	case []byte:
		return fileNames(string(val))
	}
	return nil
}

// isEmptyFileValue reports whether a file column payload value counts as
// empty for the update rule that drops such columns from the payload.
func isEmptyFileValue(v any) bool {
	return len(fileNames(v)) == 0
}
