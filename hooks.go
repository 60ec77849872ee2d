package arm

import "context"

// Hooks are the mutation extension points. Each method is invoked
// synchronously inside the mutation sequence: Pre* after the transaction is
// opened and before validation, Post* after the write completes. A mutation
// that owns its transaction runs the Post* hook after the commit; one that
// joined a caller-owned transaction runs it inside that transaction, before
// the caller settles the outcome. An error from a Pre* hook aborts the
// operation like any other failure; Post* errors are returned to the caller
// but the write stands.
type Hooks interface {
	PreInsert(ctx context.Context, e *Entity) error
	PostInsert(ctx context.Context, e *Entity) error
	PreUpdate(ctx context.Context, e *Entity) error
	PostUpdate(ctx context.Context, e *Entity) error
	PreDelete(ctx context.Context, e *Entity) error
	PostDelete(ctx context.Context, e *Entity) error
}

// NopHooks is the default Hooks implementation; every method is a no-op.
// Embed it to override a subset of the hook points.
type NopHooks struct{}

func (NopHooks) PreInsert(context.Context, *Entity) error  { return nil }
func (NopHooks) PostInsert(context.Context, *Entity) error { return nil }
func (NopHooks) PreUpdate(context.Context, *Entity) error  { return nil }
func (NopHooks) PostUpdate(context.Context, *Entity) error { return nil }
func (NopHooks) PreDelete(context.Context, *Entity) error  { return nil }
func (NopHooks) PostDelete(context.Context, *Entity) error { return nil }
