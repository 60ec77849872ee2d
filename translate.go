package arm

import (
	"context"
	"fmt"
)

// TranslationsTable is the shared side table holding per-locale column
// overrides, uniquely addressed by (_table, _key, _column, _locale).
const TranslationsTable = "_translations"

const (
	transTableCol   = "_table"
	transKeyCol     = "_key"
	transColumnCol  = "_column"
	transLocaleCol  = "_locale"
	transContentCol = "_content"
)

// splitTranslations removes translatable columns from an update payload and
// returns them, so they can be routed to the translations table instead of
// the base row. No-op when the active locale is the default one.
func (r *Repository) splitTranslations(payload map[string]any) map[string]any {
	if !r.foreign {
		return nil
	}
	out := make(map[string]any)
	for col, v := range payload {
		if r.meta.IsTranslatable(col) {
			out[col] = v
			delete(payload, col)
		}
	}
	return out
}

// writeTranslations applies the per-column translation write rule for the
// active locale: a null value deletes the translation row, a non-null value
// updates an existing row or inserts a new one. insertOnly skips the
// existence probe for freshly inserted rows, which cannot have translations
// yet.
func (r *Repository) writeTranslations(ctx context.Context, key any, cols map[string]any, insertOnly bool) error {
	if len(cols) == 0 {
		return nil
	}
	k := keyString(key)
	for col, v := range cols {
		where := map[string]any{
			transTableCol:  r.table,
			transKeyCol:    k,
			transColumnCol: col,
			transLocaleCol: r.locale,
		}
		if v == nil {
			if insertOnly {
				continue
			}
			if _, err := r.conn.Delete(ctx, TranslationsTable, where); err != nil {
				return fmt.Errorf("deleting translation %s.%s: %w", r.table, col, err)
			}
			continue
		}
		exists := false
		if !insertOnly {
			var err error
			if exists, err = r.translationExists(ctx, where); err != nil {
				return err
			}
		}
		if exists {
			if _, err := r.conn.Update(ctx, TranslationsTable, map[string]any{transContentCol: v}, where); err != nil {
				return fmt.Errorf("updating translation %s.%s: %w", r.table, col, err)
			}
		} else {
			values := map[string]any{
				transTableCol:   r.table,
				transKeyCol:     k,
				transColumnCol:  col,
				transLocaleCol:  r.locale,
				transContentCol: v,
			}
			if _, err := r.conn.Insert(ctx, TranslationsTable, values); err != nil {
				return fmt.Errorf("inserting translation %s.%s: %w", r.table, col, err)
			}
		}
	}
	return nil
}

func (r *Repository) translationExists(ctx context.Context, where map[string]any) (bool, error) {
	d := r.conn.Dialect()
	query := "SELECT 1 FROM " + d.QuoteIdent(TranslationsTable) +
		" WHERE " + d.QuoteIdent(transTableCol) + " = ?" +
		" AND " + d.QuoteIdent(transKeyCol) + " = ?" +
		" AND " + d.QuoteIdent(transColumnCol) + " = ?" +
		" AND " + d.QuoteIdent(transLocaleCol) + " = ?"
	params := []any{where[transTableCol], where[transKeyCol], where[transColumnCol], where[transLocaleCol]}
	rows, err := r.conn.Query(ctx, query, params)
	if err != nil {
		return false, fmt.Errorf("probing translation: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return rows.Next(), rows.Err()
}
