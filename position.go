package arm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// groupCondition builds the WHERE conjunction selecting the target row's
// position group from a value source (entity payload or raw row). A null or
// absent group value matches with IS NULL, forming its own equality class.
// Returns "" when the schema declares no group columns.
func (r *Repository) groupCondition(values map[string]any) (string, []any) {
	d := r.conn.Dialect()
	var conds []string
	var params []any
	for _, g := range r.meta.groups {
		if v, ok := values[g]; ok && v != nil {
			conds = append(conds, d.QuoteIdent(g)+" = ?")
			params = append(params, v)
		} else {
			conds = append(conds, d.QuoteIdent(g)+" IS NULL")
		}
	}
	return strings.Join(conds, " AND "), params
}

// groupKey folds the group values of a payload into a map key so batch
// inserts can track one position counter per group.
func (r *Repository) groupKey(values map[string]any) string {
	parts := make([]string, 0, len(r.meta.groups)+1)
	parts = append(parts, "g")
	for _, g := range r.meta.groups {
		if v, ok := values[g]; ok && v != nil {
			parts = append(parts, keyString(v))
		} else {
			parts = append(parts, "\x00null")
		}
	}
	return strings.Join(parts, "\x1f")
}

// maxPosition returns MAX(position) within the group, or -1 when the group
// has no rows.
func (r *Repository) maxPosition(ctx context.Context, values map[string]any) (int64, error) {
	d := r.conn.Dialect()
	query := "SELECT MAX(" + d.QuoteIdent(r.meta.position) + ") FROM " + d.QuoteIdent(r.table)
	cond, params := r.groupCondition(values)
	if cond != "" {
		query += " WHERE " + cond
	}
	rows, err := r.conn.Query(ctx, query, params)
	if err != nil {
		return 0, fmt.Errorf("querying max position of %s: %w", r.table, err)
	}
	defer func() { _ = rows.Close() }()

	var max sql.NullInt64
	if rows.Next() {
		if err := rows.Scan(&max); err != nil {
			return 0, fmt.Errorf("scanning max position of %s: %w", r.table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if !max.Valid {
		return -1, nil
	}
	return max.Int64, nil
}

// nextPosition computes the append position for a new row in its group:
// 1 + MAX(position), or 0 for an empty group.
func (r *Repository) nextPosition(ctx context.Context, values map[string]any) (int64, error) {
	max, err := r.maxPosition(ctx, values)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// shiftPositions is the range-update primitive: add delta to the position of
// every row in the group whose position lies in [start, stop), or [start, ∞)
// when stop is nil. Closing and opening gaps are both expressed through it.
func (r *Repository) shiftPositions(ctx context.Context, delta int64, values map[string]any, start int64, stop *int64) error {
	d := r.conn.Dialect()
	pos := d.QuoteIdent(r.meta.position)
	query := "UPDATE " + d.QuoteIdent(r.table) + " SET " + pos + " = " + pos + " + ?"
	params := []any{delta}

	cond, groupParams := r.groupCondition(values)
	query += " WHERE "
	if cond != "" {
		query += cond + " AND "
		params = append(params, groupParams...)
	}
	query += pos + " >= ?"
	params = append(params, start)
	if stop != nil {
		query += " AND " + pos + " < ?"
		params = append(params, *stop)
	}

	if _, err := r.conn.Exec(ctx, query, params); err != nil {
		return fmt.Errorf("shifting positions of %s: %w", r.table, err)
	}
	return nil
}

// assignInsertPosition places a new row at the end of its group unless the
// payload (or a batch-insert caller) already supplies a position.
func (r *Repository) assignInsertPosition(ctx context.Context, payload map[string]any, explicit *int64) error {
	pos := r.meta.position
	if pos == "" {
		return nil
	}
	if explicit != nil {
		payload[pos] = *explicit
		return nil
	}
	if v, ok := payload[pos]; ok && v != nil {
		return nil
	}
	next, err := r.nextPosition(ctx, payload)
	if err != nil {
		return err
	}
	payload[pos] = next
	return nil
}

// maintainPositionOnUpdate applies the move rules before an update is
// written, mutating the payload's position value:
//
//   - group changed: close the gap in the old group and append to the end of
//     the new one; an explicitly requested position is discarded ("last write
//     wins toward end-of-new-group").
//   - explicit new position, same group: clamp into [0, group max] and shift
//     the rows in between to make room.
//   - position absent from the payload: leave ordering untouched.
func (r *Repository) maintainPositionOnUpdate(ctx context.Context, payload, oldRow map[string]any) error {
	pos := r.meta.position
	oldPos := toInt64(oldRow[pos])

	groupChanged := false
	for _, g := range r.meta.groups {
		if nv, ok := payload[g]; ok && !valueEq(nv, oldRow[g]) {
			groupChanged = true
			break
		}
	}

	if groupChanged {
		if err := r.shiftPositions(ctx, -1, oldRow, oldPos+1, nil); err != nil {
			return err
		}
		merged := make(map[string]any, len(oldRow))
		for k, v := range oldRow {
			merged[k] = v
		}
		for k, v := range payload {
			merged[k] = v
		}
		next, err := r.nextPosition(ctx, merged)
		if err != nil {
			return err
		}
		payload[pos] = next
		return nil
	}

	requested, ok := payload[pos]
	if !ok || requested == nil {
		delete(payload, pos)
		return nil
	}
	newPos := toInt64(requested)
	max, err := r.maxPosition(ctx, oldRow)
	if err != nil {
		return err
	}
	if newPos > max {
		newPos = max
	}
	if newPos < 0 {
		newPos = 0
	}
	switch {
	case newPos == oldPos:
		// No shift needed.
	case newPos < oldPos:
		stop := oldPos
		if err := r.shiftPositions(ctx, +1, oldRow, newPos, &stop); err != nil {
			return err
		}
	default:
		stop := newPos + 1
		if err := r.shiftPositions(ctx, -1, oldRow, oldPos+1, &stop); err != nil {
			return err
		}
	}
	payload[pos] = newPos
	return nil
}
