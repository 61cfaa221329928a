package syncer

import (
	"context"

	"organiza/internal/model"
)

// Pinnable is satisfied by entity kinds that support pinning to the top of
// the list.
type Pinnable interface {
	Pinned() bool
}

// ToggleFixed flips the pin flag of the record with the given id.
func ToggleFixed[E interface {
	Entity[E]
	Pinnable
}](ctx context.Context, c *Coordinator[E], id string) error {
	e, ok := c.Get(id)
	if !ok {
		return ErrNotFound
	}
	return c.Update(ctx, id, model.Patch{"fixed": !e.Pinned()})
}
