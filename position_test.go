package arm_test

import (
	"context"
	"testing"

	arm "github.com/lokhman/silex-arm"
	"github.com/lokhman/silex-arm/internal/testutil"
)

func newItem(t *testing.T, r *arm.Repository, name, category string) *arm.Entity {
	t.Helper()
	e := r.NewEntity()
	if err := e.Set("name", name); err != nil {
		t.Fatalf("Set(name) error = %v", err)
	}
	if category != "" {
		if err := e.Set("category", category); err != nil {
			t.Fatalf("Set(category) error = %v", err)
		}
	}
	return e
}

func insertItem(t *testing.T, r *arm.Repository, name, category string) *arm.Entity {
	t.Helper()
	e := newItem(t, r, name, category)
	if _, err := r.Insert(context.Background(), e); err != nil {
		t.Fatalf("Insert(%s) error = %v", name, err)
	}
	return e
}

// groupOrder returns the item names of one category in position order and
// fails the test unless the positions are dense from zero.
func groupOrder(t *testing.T, r *arm.Repository, category string) []string {
	t.Helper()
	query := `SELECT name, position FROM items WHERE category = ? ORDER BY position`
	params := []any{category}
	if category == "" {
		query = `SELECT name, position FROM items WHERE category IS NULL ORDER BY position`
		params = nil
	}
	rows, err := r.Conn().Query(context.Background(), query, params)
	if err != nil {
		t.Fatalf("querying group: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		var pos int64
		if err := rows.Scan(&name, &pos); err != nil {
			t.Fatalf("scanning group row: %v", err)
		}
		if pos != int64(len(names)) {
			t.Fatalf("position of %s = %d, want dense sequence from 0", name, pos)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterating group: %v", err)
	}
	return names
}

func moveItem(t *testing.T, r *arm.Repository, e *arm.Entity, set map[string]any) {
	t.Helper()
	id, _ := e.Primary()
	patch := r.NewEntity()
	if err := patch.Set("id", id); err != nil {
		t.Fatalf("Set(id) error = %v", err)
	}
	for col, v := range set {
		if err := patch.Set(col, v); err != nil {
			t.Fatalf("Set(%s) error = %v", col, err)
		}
	}
	if _, err := r.Update(context.Background(), patch); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
}

func assertOrder(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("group = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("group = %v, want %v", got, want)
		}
	}
}

func TestRepository_Positions(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts append to the end of their group", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		items := repo(t, reg, "items")

		insertItem(t, items, "a0", "a")
		insertItem(t, items, "a1", "a")
		insertItem(t, items, "a2", "a")
		insertItem(t, items, "b0", "b")

		assertOrder(t, groupOrder(t, items, "a"), []string{"a0", "a1", "a2"})
		assertOrder(t, groupOrder(t, items, "b"), []string{"b0"})
	})

	t.Run("null group values form their own sequence", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		items := repo(t, reg, "items")

		insertItem(t, items, "n0", "")
		insertItem(t, items, "a0", "a")
		insertItem(t, items, "n1", "")

		assertOrder(t, groupOrder(t, items, ""), []string{"n0", "n1"})
		assertOrder(t, groupOrder(t, items, "a"), []string{"a0"})
	})

	t.Run("a caller-supplied insert position is kept as is", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		items := repo(t, reg, "items")

		e := newItem(t, items, "x", "a")
		if err := e.Set("position", 5); err != nil {
			t.Fatalf("Set(position) error = %v", err)
		}
		if _, err := items.Insert(ctx, e); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		pos, err := e.GetInt("position")
		if err != nil || pos != 5 {
			t.Errorf("position = %d, %v, want 5", pos, err)
		}
	})

	t.Run("moving a row down shifts the rows in between up", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		items := repo(t, reg, "items")

		var es []*arm.Entity
		for _, name := range []string{"i0", "i1", "i2", "i3", "i4"} {
			es = append(es, insertItem(t, items, name, "a"))
		}
		moveItem(t, items, es[3], map[string]any{"position": 1})
		assertOrder(t, groupOrder(t, items, "a"), []string{"i0", "i3", "i1", "i2", "i4"})
	})

	t.Run("moving a row up shifts the rows in between down", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		items := repo(t, reg, "items")

		var es []*arm.Entity
		for _, name := range []string{"i0", "i1", "i2", "i3", "i4"} {
			es = append(es, insertItem(t, items, name, "a"))
		}
		moveItem(t, items, es[1], map[string]any{"position": 3})
		assertOrder(t, groupOrder(t, items, "a"), []string{"i0", "i2", "i3", "i1", "i4"})
	})

	t.Run("an out-of-range position clamps into the group", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		items := repo(t, reg, "items")

		var es []*arm.Entity
		for _, name := range []string{"i0", "i1", "i2"} {
			es = append(es, insertItem(t, items, name, "a"))
		}
		moveItem(t, items, es[0], map[string]any{"position": 99})
		assertOrder(t, groupOrder(t, items, "a"), []string{"i1", "i2", "i0"})

		moveItem(t, items, es[0], map[string]any{"position": -5})
		assertOrder(t, groupOrder(t, items, "a"), []string{"i0", "i1", "i2"})
	})

	t.Run("an update without a position leaves ordering untouched", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		items := repo(t, reg, "items")

		var es []*arm.Entity
		for _, name := range []string{"i0", "i1", "i2"} {
			es = append(es, insertItem(t, items, name, "a"))
		}
		moveItem(t, items, es[1], map[string]any{"name": "renamed"})
		assertOrder(t, groupOrder(t, items, "a"), []string{"i0", "renamed", "i2"})
	})

	t.Run("deleting a row closes its gap", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		items := repo(t, reg, "items")

		var es []*arm.Entity
		for _, name := range []string{"i0", "i1", "i2", "i3"} {
			es = append(es, insertItem(t, items, name, "a"))
		}
		if _, err := items.Delete(ctx, es[1]); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		assertOrder(t, groupOrder(t, items, "a"), []string{"i0", "i2", "i3"})
	})

	t.Run("changing group appends to the new group and closes the old gap", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		items := repo(t, reg, "items")

		var as []*arm.Entity
		for _, name := range []string{"a0", "a1", "a2"} {
			as = append(as, insertItem(t, items, name, "a"))
		}
		insertItem(t, items, "b0", "b")

		// The requested position is discarded on a group change: the row
		// lands at the end of the new group.
		moveItem(t, items, as[1], map[string]any{"category": "b", "position": 0})

		assertOrder(t, groupOrder(t, items, "a"), []string{"a0", "a2"})
		assertOrder(t, groupOrder(t, items, "b"), []string{"b0", "a1"})
	})

	t.Run("batch inserts advance one counter per group", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		items := repo(t, reg, "items")

		insertItem(t, items, "a0", "a")
		batch := []*arm.Entity{
			newItem(t, items, "a1", "a"),
			newItem(t, items, "b0", "b"),
			newItem(t, items, "a2", "a"),
		}
		if _, err := items.InsertMany(ctx, batch, true); err != nil {
			t.Fatalf("InsertMany() error = %v", err)
		}
		assertOrder(t, groupOrder(t, items, "a"), []string{"a0", "a1", "a2"})
		assertOrder(t, groupOrder(t, items, "b"), []string{"b0"})
	})
}
