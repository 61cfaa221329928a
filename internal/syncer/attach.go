package syncer

import (
	"context"

	"organiza/internal/session"
)

// Attach binds the coordinator to a session provider: the current user is
// applied immediately and every subsequent sign-in or sign-out switches
// the replication session. The returned function detaches and signs the
// coordinator out.
func Attach[E Entity[E]](ctx context.Context, c *Coordinator[E], p session.Provider) (detach func()) {
	apply := func(u *session.User) {
		id := ""
		if u != nil {
			id = u.ID
		}
		c.SetUser(ctx, id)
	}

	unsub := p.Subscribe(apply)
	apply(p.Current())

	return func() {
		unsub()
		c.SetUser(ctx, "")
	}
}
