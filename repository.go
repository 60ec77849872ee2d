package arm

import (
	"context"
	"errors"
	"fmt"
)

// Repository performs querying and persistence for one entity type on one
// connection profile. Repositories are created once by the Registry and
// reused; they hold no per-call state.
type Repository struct {
	registry  *Registry
	conn      Conn
	profile   string
	table     string
	meta      *Metadata
	locale    string
	foreign   bool // locale differs from the default locale
	hooks     Hooks
	logger    Logger
	converter TypeConverter
	storage   Storage
}

// Metadata returns the locked schema descriptor.
func (r *Repository) Metadata() *Metadata { return r.meta }

// Table returns the bare table name.
func (r *Repository) Table() string { return r.table }

// QualifiedName returns the registry key: the bare table name on the default
// profile, "profile:table" otherwise.
func (r *Repository) QualifiedName() string {
	return r.registry.qualifiedName(r.profile, r.table)
}

// Conn returns the connection collaborator, for callers that need to build
// queries against its dialect.
func (r *Repository) Conn() Conn { return r.conn }

// Locale returns the active locale.
func (r *Repository) Locale() string { return r.locale }

// NewEntity returns an empty entity owned by this repository.
func (r *Repository) NewEntity() *Entity { return newEntity(r, nil) }

// typeCheck asserts the entity was created by this repository. A mismatch is
// a wiring mistake, never coerced.
func (r *Repository) typeCheck(e *Entity) error {
	if e == nil {
		return configErrorf("table %s: nil entity", r.table)
	}
	if e.repo != r {
		return configErrorf("entity belongs to table %s, not %s", e.repo.table, r.table)
	}
	return nil
}

// begin joins the ambient transaction if one is already open, otherwise opens
// one and reports ownership. Only the owner commits or rolls back.
func (r *Repository) begin(ctx context.Context) (bool, error) {
	if r.conn.InTransaction() {
		return false, nil
	}
	if err := r.conn.Begin(ctx); err != nil {
		return false, fmt.Errorf("starting transaction: %w", err)
	}
	return true, nil
}

// rawValues extracts the entity's stored values for schema columns only,
// leaving out joined sub-entities and pass-through expression results.
func (r *Repository) rawValues(e *Entity) map[string]any {
	out := make(map[string]any)
	for _, col := range r.meta.columns {
		if v, ok := e.data[col]; ok {
			out[col] = v
		}
	}
	return out
}

func (r *Repository) validateInsert(payload map[string]any) error {
	var missing []string
	for _, col := range r.meta.columns {
		if !r.meta.IsRequired(col) {
			continue
		}
		if v, ok := payload[col]; !ok || v == nil {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Table: r.table, Columns: missing}
	}
	return nil
}

// validateUpdate drops file columns holding an empty value from the payload
// (file columns cannot be explicitly nulled through an update) and collects
// required columns that the payload sets to null.
func (r *Repository) validateUpdate(payload map[string]any) error {
	var missing []string
	for _, col := range r.meta.columns {
		v, ok := payload[col]
		if !ok {
			continue
		}
		if r.meta.IsFile(col) && isEmptyFileValue(v) {
			delete(payload, col)
			continue
		}
		if v == nil && r.meta.IsRequired(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Table: r.table, Columns: missing}
	}
	return nil
}

// Insert writes the entity as a new row and returns the new identifier.
// The full sequence runs in a transaction: pre-hook, validation, position
// assignment, the row write, translation rows, commit, post-hook. On failure
// any files created for this entity are removed and the error is returned
// unchanged.
func (r *Repository) Insert(ctx context.Context, e *Entity) (int64, error) {
	if err := r.typeCheck(e); err != nil {
		return 0, err
	}
	return r.insert(ctx, e, nil)
}

// insert is the shared insert path. explicitPos, when non-nil, bypasses the
// MAX(position) query; InsertMany uses it to place batch rows.
func (r *Repository) insert(ctx context.Context, e *Entity, explicitPos *int64) (id int64, err error) {
	owner, err := r.begin(ctx)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if err != nil && !committed {
			e.discardCreatedFiles()
			if owner {
				_ = r.conn.Rollback()
			}
		}
	}()

	if err = r.hooks.PreInsert(ctx, e); err != nil {
		return 0, err
	}
	payload := r.rawValues(e)
	if err = r.validateInsert(payload); err != nil {
		return 0, err
	}
	if err = r.assignInsertPosition(ctx, payload, explicitPos); err != nil {
		return 0, err
	}
	if pos := r.meta.Position(); pos != "" {
		e.data[pos] = payload[pos]
	}

	id, err = r.conn.Insert(ctx, r.table, payload)
	if err != nil {
		return 0, fmt.Errorf("inserting into %s: %w", r.table, err)
	}
	pk := r.meta.Primary()
	if _, ok := e.data[pk]; !ok {
		e.data[pk] = id
	}

	if r.foreign {
		trans := make(map[string]any)
		for col, v := range payload {
			if r.meta.IsTranslatable(col) {
				trans[col] = v
			}
		}
		if err = r.writeTranslations(ctx, e.data[pk], trans, true); err != nil {
			return 0, err
		}
	}

	if owner {
		if err = r.conn.Commit(); err != nil {
			return 0, fmt.Errorf("committing insert into %s: %w", r.table, err)
		}
		// Joined transactions leave the files tracked: the outermost owner
		// still has to unwind them if the batch fails.
		e.commitCreatedFiles()
	}
	committed = true
	r.logger.Debug("inserted row", "table", r.table, "id", e.data[pk])

	if hookErr := r.hooks.PostInsert(ctx, e); hookErr != nil {
		return id, hookErr
	}
	return id, nil
}

// Update writes the columns present in the entity to the row addressed by
// its primary key, maintaining position ordering and translation rows.
// Columns absent from the entity are left untouched. Returns the affected
// row count of the primary-table write.
func (r *Repository) Update(ctx context.Context, e *Entity) (affected int64, err error) {
	if err = r.typeCheck(e); err != nil {
		return 0, err
	}
	pk := r.meta.Primary()
	pkv, ok := e.Primary()
	if !ok || pkv == nil {
		return 0, configErrorf("table %s: update requires the primary key to be set", r.table)
	}

	owner, err := r.begin(ctx)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if err != nil && !committed {
			e.discardCreatedFiles()
			if owner {
				_ = r.conn.Rollback()
			}
		}
	}()

	if err = r.hooks.PreUpdate(ctx, e); err != nil {
		return 0, err
	}
	payload := r.rawValues(e)
	delete(payload, pk)
	if err = r.validateUpdate(payload); err != nil {
		return 0, err
	}

	if pos := r.meta.Position(); pos != "" {
		oldRow, rowErr := r.rawRow(ctx, pkv)
		if rowErr != nil {
			err = rowErr
			return 0, err
		}
		if oldRow != nil {
			if err = r.maintainPositionOnUpdate(ctx, payload, oldRow); err != nil {
				return 0, err
			}
			if v, ok := payload[pos]; ok {
				e.data[pos] = v
			}
		}
	}

	trans := r.splitTranslations(payload)
	if len(payload) > 0 {
		affected, err = r.conn.Update(ctx, r.table, payload, map[string]any{pk: pkv})
		if err != nil {
			return 0, fmt.Errorf("updating %s: %w", r.table, err)
		}
	}
	if err = r.writeTranslations(ctx, pkv, trans, false); err != nil {
		return 0, err
	}

	if owner {
		if err = r.conn.Commit(); err != nil {
			return 0, fmt.Errorf("committing update of %s: %w", r.table, err)
		}
		e.commitCreatedFiles()
	}
	committed = true
	r.logger.Debug("updated row", "table", r.table, "id", pkv, "affected", affected)

	if hookErr := r.hooks.PostUpdate(ctx, e); hookErr != nil {
		return affected, hookErr
	}
	return affected, nil
}

// Delete removes the row addressed by the entity's primary key, closes the
// position gap it leaves behind and removes its translation rows. Its stored
// files are unlinked once the enclosing transaction commits. Returns the
// affected row count.
func (r *Repository) Delete(ctx context.Context, e *Entity) (affected int64, err error) {
	if err = r.typeCheck(e); err != nil {
		return 0, err
	}
	pk := r.meta.Primary()
	pkv, ok := e.Primary()
	if !ok || pkv == nil {
		return 0, configErrorf("table %s: delete requires the primary key to be set", r.table)
	}

	owner, err := r.begin(ctx)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if err != nil && !committed {
			e.discardCreatedFiles()
			if owner {
				_ = r.conn.Rollback()
			}
		}
	}()

	if err = r.hooks.PreDelete(ctx, e); err != nil {
		return 0, err
	}

	var oldRow map[string]any
	if r.meta.Position() != "" || len(r.meta.files) > 0 {
		if oldRow, err = r.rawRow(ctx, pkv); err != nil {
			return 0, err
		}
	}
	if pos := r.meta.Position(); pos != "" && oldRow != nil {
		oldPos := toInt64(oldRow[pos])
		if err = r.shiftPositions(ctx, -1, oldRow, oldPos+1, nil); err != nil {
			return 0, err
		}
	}
	if len(r.meta.trans) > 0 {
		// Drop translation rows for every locale: nothing references them
		// once the row is gone.
		if _, err = r.conn.Delete(ctx, TranslationsTable, map[string]any{
			transTableCol: r.table,
			transKeyCol:   keyString(pkv),
		}); err != nil {
			return 0, fmt.Errorf("deleting translations of %s: %w", r.table, err)
		}
	}

	affected, err = r.conn.Delete(ctx, r.table, map[string]any{pk: pkv})
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", r.table, err)
	}

	// Stored files disappear only once the transaction outcome is known: a
	// caller-owned transaction may still roll the delete back.
	row := oldRow
	if row == nil {
		row = e.data
	}
	r.conn.OnFinish(func(ok bool) {
		if ok {
			r.unlink(row)
		}
	})

	if owner {
		if err = r.conn.Commit(); err != nil {
			return 0, fmt.Errorf("committing delete from %s: %w", r.table, err)
		}
	}
	committed = true
	r.logger.Debug("deleted row", "table", r.table, "id", pkv, "affected", affected)

	if hookErr := r.hooks.PostDelete(ctx, e); hookErr != nil {
		return affected, hookErr
	}
	return affected, nil
}

// InsertMany inserts a batch of entities, computing each group's starting
// position once instead of issuing one MAX query per row.
//
// In atomic mode the whole batch runs in a single transaction: any failure
// unwinds the files of every row and rolls the batch back. In best-effort
// mode each row is inserted independently; failed rows are skipped, their
// errors joined into the returned error, and positions advance only on
// success (which can leave gaps after partial failures).
func (r *Repository) InsertMany(ctx context.Context, entities []*Entity, atomic bool) (ids []int64, err error) {
	for _, e := range entities {
		if err = r.typeCheck(e); err != nil {
			return nil, err
		}
	}
	ids = make([]int64, len(entities))
	posCol := r.meta.Position()
	nextPos := make(map[string]int64) // group key -> next free position

	// positionFor resolves the row's position: caller-supplied wins, then the
	// locally tracked counter, with one MAX query per distinct group.
	positionFor := func(e *Entity) (pos *int64, group string, err error) {
		if posCol == "" {
			return nil, "", nil
		}
		payload := r.rawValues(e)
		if v, ok := payload[posCol]; ok && v != nil {
			n := toInt64(v)
			return &n, "", nil
		}
		group = r.groupKey(payload)
		n, ok := nextPos[group]
		if !ok {
			if n, err = r.nextPosition(ctx, payload); err != nil {
				return nil, "", err
			}
			nextPos[group] = n
		}
		return &n, group, nil
	}

	if atomic {
		var owner bool
		if owner, err = r.begin(ctx); err != nil {
			return nil, err
		}
		committed := false
		defer func() {
			if err != nil && !committed {
				for _, e := range entities {
					e.discardCreatedFiles()
				}
				if owner {
					_ = r.conn.Rollback()
				}
			}
		}()
		for i, e := range entities {
			pos, group, perr := positionFor(e)
			if perr != nil {
				err = perr
				return nil, err
			}
			if ids[i], err = r.insert(ctx, e, pos); err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			if group != "" {
				nextPos[group]++
			}
		}
		if owner {
			if err = r.conn.Commit(); err != nil {
				return nil, fmt.Errorf("committing batch insert into %s: %w", r.table, err)
			}
		}
		committed = true
		for _, e := range entities {
			e.commitCreatedFiles()
		}
		return ids, nil
	}

	var errs []error
	for i, e := range entities {
		pos, group, perr := positionFor(e)
		if perr != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i, perr))
			continue
		}
		id, ierr := r.insert(ctx, e, pos)
		if ierr != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i, ierr))
			continue
		}
		ids[i] = id
		if group != "" {
			nextPos[group]++
		}
	}
	return ids, errors.Join(errs...)
}

// unlink removes every stored file referenced by the row's file columns.
func (r *Repository) unlink(values map[string]any) {
	if r.storage == nil {
		return
	}
	for col := range r.meta.files {
		for _, name := range fileNames(values[col]) {
			_ = r.storage.Delete(name)
		}
	}
}

// rawRow loads one row by primary key as a column->value map in storage
// representation, or nil if the row does not exist.
func (r *Repository) rawRow(ctx context.Context, id any) (map[string]any, error) {
	d := r.conn.Dialect()
	query := "SELECT * FROM " + d.QuoteIdent(r.table) + " WHERE " + d.QuoteIdent(r.meta.Primary()) + " = ?"
	rows, err := r.conn.Query(ctx, query, []any{id})
	if err != nil {
		return nil, fmt.Errorf("loading row from %s: %w", r.table, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scanning row from %s: %w", r.table, err)
	}
	out := make(map[string]any, len(cols))
	for i, col := range cols {
		out[col] = vals[i]
	}
	return out, nil
}
