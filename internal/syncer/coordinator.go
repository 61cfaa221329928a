package syncer

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"organiza/internal/model"
)

// Coordinator owns the in-memory record list for one entity kind and one
// signed-in user, and reconciles it between a LocalStore and a RemoteStore.
//
// All exported methods are safe for concurrent use. Mutations of the same
// record id are serialized; mutations of distinct ids run concurrently.
type Coordinator[E Entity[E]] struct {
	local  LocalStore[E]
	remote RemoteStore[E]
	logger *log.Logger

	now   func() time.Time
	newID func() string

	ops keyedMutex

	mu      sync.RWMutex
	userID  string
	list    []E
	loading bool
	unsub   func()

	idMu   sync.Mutex
	lastID int64
}

// Option configures a Coordinator.
type Option[E Entity[E]] func(*Coordinator[E])

// WithClock overrides the time source. Used by tests.
func WithClock[E Entity[E]](now func() time.Time) Option[E] {
	return func(c *Coordinator[E]) { c.now = now }
}

// WithIDFunc overrides the id generator for new records.
func WithIDFunc[E Entity[E]](gen func() string) Option[E] {
	return func(c *Coordinator[E]) { c.newID = gen }
}

// New creates a coordinator over the given store pair. A nil logger falls
// back to stderr.
func New[E Entity[E]](local LocalStore[E], remote RemoteStore[E], logger *log.Logger, opts ...Option[E]) *Coordinator[E] {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	c := &Coordinator[E]{
		local:  local,
		remote: remote,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// nextID returns a millisecond-timestamp id, bumped past the previous one
// so ids stay unique within a session even under rapid creation.
func (c *Coordinator[E]) nextID() string {
	if c.newID != nil {
		return c.newID()
	}
	c.idMu.Lock()
	defer c.idMu.Unlock()
	id := c.now().UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return strconv.FormatInt(id, 10)
}

// SetUser switches the coordinator to a new user, or signs out when userID
// is empty. Any previous live subscription is terminated, the list is
// bootstrapped from the persistent local cache (falling back to the remote
// store), and a fresh live subscription is established.
func (c *Coordinator[E]) SetUser(ctx context.Context, userID string) {
	c.mu.Lock()
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.userID = userID
	c.list = nil
	if userID == "" {
		c.loading = false
		c.mu.Unlock()
		return
	}
	c.loading = true
	c.mu.Unlock()

	c.bootstrap(ctx, userID)
	c.subscribe(ctx, userID)
}

// Close terminates the live subscription and clears the user. Equivalent
// to signing out.
func (c *Coordinator[E]) Close() {
	c.SetUser(context.Background(), "")
}

// bootstrap loads the initial list: from the local cache when it is
// persistent (instant, offline-capable), otherwise one-shot from the
// remote store. Load failures leave an empty list; the live subscription
// repairs it on the first push.
func (c *Coordinator[E]) bootstrap(ctx context.Context, userID string) {
	var list []E
	var err error
	if c.local.Persistent() {
		list, err = c.local.GetAll(ctx, userID)
	} else {
		list, err = c.remote.GetAll(ctx, userID)
	}
	if err != nil {
		c.logger.Printf("bootstrap load failed for user %s: %v", userID, err)
		list = nil
	}
	list = c.sanitize(list)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != userID {
		return
	}
	c.list = list
	c.loading = false
}

// subscribe attaches the live remote subscription. Each push replaces the
// list wholesale and mirrors it into the local cache.
func (c *Coordinator[E]) subscribe(ctx context.Context, userID string) {
	unsub, err := c.remote.Listen(ctx, userID,
		func(pushed []E) { c.applyRemotePush(userID, pushed) },
		func(err error) { c.logger.Printf("live subscription error for user %s: %v", userID, err) },
	)
	if err != nil {
		c.logger.Printf("failed to subscribe for user %s: %v", userID, err)
		return
	}

	c.mu.Lock()
	if c.userID != userID {
		c.mu.Unlock()
		unsub()
		return
	}
	c.unsub = unsub
	c.mu.Unlock()
}

// applyRemotePush installs a pushed record set as the new truth.
func (c *Coordinator[E]) applyRemotePush(userID string, pushed []E) {
	safe := c.sanitize(pushed)

	c.mu.Lock()
	if c.userID != userID {
		c.mu.Unlock()
		return
	}
	c.list = safe
	c.loading = false
	c.mu.Unlock()

	if c.local.Persistent() {
		if err := c.local.SyncFromRemote(context.Background(), userID, safe); err != nil {
			c.logger.Printf("cache resync failed for user %s: %v", userID, err)
		}
	}
}

// sanitize validates and defaults every record, drops the unrepairable,
// and sorts the survivors into render order.
func (c *Coordinator[E]) sanitize(in []E) []E {
	now := c.now()
	out := make([]E, 0, len(in))
	for _, e := range in {
		s, ok := e.Sanitize(now)
		if !ok {
			c.logger.Printf("dropping malformed record from sync payload")
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortsBefore(out[j]) })
	return out
}

// List returns a copy of the current in-memory list in render order.
func (c *Coordinator[E]) List() []E {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]E, len(c.list))
	copy(out, c.list)
	return out
}

// Get returns the record with the given id, if present.
func (c *Coordinator[E]) Get(id string) (E, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.list {
		if e.EntityID() == id {
			return e, true
		}
	}
	var zero E
	return zero, false
}

// Loading reports whether the initial load for the current user is still
// in flight.
func (c *Coordinator[E]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Reload re-runs the bootstrap load for the current user. Useful after a
// subscription error, when no pushes will arrive to repair state.
func (c *Coordinator[E]) Reload(ctx context.Context) {
	c.mu.RLock()
	userID := c.userID
	c.mu.RUnlock()
	if userID == "" {
		return
	}
	c.bootstrap(ctx, userID)
}

// Create finalizes and stores a new record.
//
// The record appears at the head of the in-memory list immediately and is
// written to the local cache best-effort. The remote write is awaited: on
// failure the record is removed again from memory and cache, and the error
// is returned. The finalized record is returned on success.
func (c *Coordinator[E]) Create(ctx context.Context, e E) (E, error) {
	var zero E
	c.mu.RLock()
	userID := c.userID
	c.mu.RUnlock()
	if userID == "" {
		return zero, ErrNoUser
	}

	e = e.Finalize(c.nextID(), c.now())
	id := e.EntityID()

	unlock := c.ops.lock(id)
	defer unlock()

	c.mu.Lock()
	if c.userID != userID {
		c.mu.Unlock()
		return zero, ErrNoUser
	}
	c.list = append([]E{e}, c.list...)
	c.mu.Unlock()

	if err := c.local.Insert(ctx, userID, e); err != nil {
		c.logger.Printf("cache insert failed for %s: %v", id, err)
	}

	if err := c.remote.InsertWithID(ctx, userID, id, e); err != nil {
		c.dropFromList(userID, id)
		if lerr := c.local.Remove(ctx, userID, id); lerr != nil {
			c.logger.Printf("cache rollback failed for %s: %v", id, lerr)
		}
		return zero, fmt.Errorf("remote insert failed for %s: %w", id, err)
	}

	return e, nil
}

// Update applies a partial field update to the record with the given id.
//
// Immutable fields are stripped and derived fields recomputed before the
// patch touches any store. The in-memory record changes immediately and
// the list is re-sorted, so a patched sort field moves the record at once.
// On remote failure the previous version is restored everywhere and the
// error is returned.
func (c *Coordinator[E]) Update(ctx context.Context, id string, fields model.Patch) error {
	c.mu.RLock()
	userID := c.userID
	c.mu.RUnlock()
	if userID == "" {
		return ErrNoUser
	}

	unlock := c.ops.lock(id)
	defer unlock()

	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	prev := c.list[idx]
	norm := prev.NormalizePatch(fields)
	if len(norm) == 0 {
		c.mu.Unlock()
		return nil
	}
	c.list[idx] = prev.WithPatch(norm)
	c.resortLocked()
	c.mu.Unlock()

	if err := c.local.Update(ctx, userID, id, norm); err != nil {
		c.logger.Printf("cache update failed for %s: %v", id, err)
	}

	if err := c.remote.Update(ctx, userID, id, norm); err != nil {
		c.restoreToList(userID, prev)
		if lerr := c.local.Insert(ctx, userID, prev); lerr != nil {
			c.logger.Printf("cache rollback failed for %s: %v", id, lerr)
		}
		return fmt.Errorf("remote update failed for %s: %w", id, err)
	}

	return nil
}

// Delete removes the record with the given id.
//
// The record disappears from memory and cache immediately. On remote
// failure it is restored at its sorted position and the error is returned.
func (c *Coordinator[E]) Delete(ctx context.Context, id string) error {
	c.mu.RLock()
	userID := c.userID
	c.mu.RUnlock()
	if userID == "" {
		return ErrNoUser
	}

	unlock := c.ops.lock(id)
	defer unlock()

	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	prev := c.list[idx]
	c.list = append(c.list[:idx:idx], c.list[idx+1:]...)
	c.mu.Unlock()

	if err := c.local.Remove(ctx, userID, id); err != nil {
		c.logger.Printf("cache delete failed for %s: %v", id, err)
	}

	if err := c.remote.Remove(ctx, userID, id); err != nil {
		c.restoreToList(userID, prev)
		if lerr := c.local.Insert(ctx, userID, prev); lerr != nil {
			c.logger.Printf("cache rollback failed for %s: %v", id, lerr)
		}
		return fmt.Errorf("remote delete failed for %s: %w", id, err)
	}

	return nil
}

// indexLocked returns the position of id in the list, or -1. Caller holds
// c.mu.
func (c *Coordinator[E]) indexLocked(id string) int {
	for i, e := range c.list {
		if e.EntityID() == id {
			return i
		}
	}
	return -1
}

// resortLocked re-establishes render order after an in-place change.
// Caller holds c.mu.
func (c *Coordinator[E]) resortLocked() {
	sort.SliceStable(c.list, func(i, j int) bool { return c.list[i].SortsBefore(c.list[j]) })
}

// dropFromList removes id from the in-memory list if the user is unchanged.
func (c *Coordinator[E]) dropFromList(userID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != userID {
		return
	}
	if idx := c.indexLocked(id); idx >= 0 {
		c.list = append(c.list[:idx:idx], c.list[idx+1:]...)
	}
}

// restoreToList puts a rolled-back record version into the in-memory list,
// replacing any current version, and re-sorts.
func (c *Coordinator[E]) restoreToList(userID string, prev E) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != userID {
		return
	}
	if idx := c.indexLocked(prev.EntityID()); idx >= 0 {
		c.list[idx] = prev
	} else {
		c.list = append(c.list, prev)
	}
	c.resortLocked()
}
