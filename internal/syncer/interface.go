// Package syncer implements the dual-store synchronization layer.
//
// Each entity kind (transactions, meals, ideas) gets one Coordinator that
// owns the in-memory list shown to callers and keeps it reconciled between
// two stores:
//
//   - a LocalStore: the embedded per-device cache, available offline
//   - a RemoteStore: the authoritative multi-device server, with live push
//
// Mutations are optimistic: the in-memory list changes immediately, the
// local cache is written best-effort, and the remote write is awaited. When
// the remote write fails the optimistic change is rolled back and the error
// is returned to the caller. The remote live subscription is the source of
// eventual truth: every push replaces the list wholesale and mirrors it
// into the local cache.
package syncer

import (
	"context"
	"errors"
	"time"

	"organiza/internal/model"
)

// ErrNoUser is returned for mutations attempted without a signed-in user.
var ErrNoUser = errors.New("no authenticated user")

// ErrNotFound is returned when a mutation targets an id that is not in the
// coordinator's list, or when the remote store rejects a patch for a
// missing record.
var ErrNotFound = errors.New("record not found")

// Entity is the contract a record type must satisfy to be synchronized.
//
// The type parameter is the concrete record type itself (the usual
// self-referential constraint), so implementations return copies of their
// own type rather than interface values.
type Entity[E any] interface {
	// EntityID returns the client-generated record id.
	EntityID() string

	// SortsBefore reports whether the receiver renders before other:
	// pinned records first where the kind supports pinning, then newest
	// sort timestamp first. Ties are left to the sort's stability.
	SortsBefore(other E) bool

	// Sanitize validates a record received from the remote store and
	// applies field defaults. Returns false when the record is malformed
	// beyond repair (missing id) and must be dropped.
	Sanitize(now time.Time) (E, bool)

	// WithPatch returns a copy with a partial field update applied,
	// re-deriving any dependent fields.
	WithPatch(p model.Patch) E

	// NormalizePatch strips immutable fields from a patch and keeps
	// derived fields coherent (a patched date recomputes its sort key).
	NormalizePatch(p model.Patch) model.Patch

	// Finalize fills identity fields and defaults on a freshly created
	// record: id and created_at when blank, plus kind-specific defaults.
	Finalize(id string, now time.Time) E
}

// LocalStore is the offline cache side of the dual-store pair.
//
// All failures from a LocalStore are treated as non-fatal by the
// coordinator: logged, never blocking the remote write or the in-memory
// state. Implementations must scope every operation to the owning user.
type LocalStore[E any] interface {
	// Persistent reports whether this store survives process restarts.
	// The coordinator bootstraps from a persistent local store; a no-op
	// stub reports false and bootstrapping falls through to the remote.
	Persistent() bool

	// GetAll returns every record owned by userID in render order.
	// An empty partition yields an empty list, not an error.
	GetAll(ctx context.Context, userID string) ([]E, error)

	// Insert upserts a record keyed by its id (insert-or-replace).
	// Records with missing derived fields are rejected loudly.
	Insert(ctx context.Context, userID string, e E) error

	// Update patches only the supplied fields; immutable fields are
	// dropped and an empty surviving patch is a no-op.
	Update(ctx context.Context, userID, id string, fields model.Patch) error

	// Remove deletes the record scoped to (userID, id). No-op if absent.
	Remove(ctx context.Context, userID, id string) error

	// SyncFromRemote replaces the user's entire partition with the given
	// list. This is a wholesale mirror, not a diff.
	SyncFromRemote(ctx context.Context, userID string, remote []E) error
}

// RemoteStore is the authoritative side of the dual-store pair.
type RemoteStore[E any] interface {
	// GetAll is a one-shot fetch of the user's records in render order.
	GetAll(ctx context.Context, userID string) ([]E, error)

	// Listen establishes a live subscription. onData receives the
	// complete current record set immediately and again after every
	// remote change, by this client or any other. onErr receives
	// subscription failures; no automatic reconnection is attempted.
	// The returned function terminates the subscription.
	Listen(ctx context.Context, userID string, onData func([]E), onErr func(error)) (func(), error)

	// InsertWithID creates or fully replaces the record at a
	// caller-chosen id.
	InsertWithID(ctx context.Context, userID, id string, e E) error

	// Update patches only the supplied fields. Returns an error wrapping
	// ErrNotFound when the record does not exist.
	Update(ctx context.Context, userID, id string, fields model.Patch) error

	// Remove deletes by id. No-op if absent.
	Remove(ctx context.Context, userID, id string) error
}

// NopLocal is the capability stub for deployments without a local cache.
// The coordinator composed with it bootstraps from the remote store and
// skips cache mirroring.
type NopLocal[E any] struct{}

func (NopLocal[E]) Persistent() bool { return false }

func (NopLocal[E]) GetAll(ctx context.Context, userID string) ([]E, error) { return nil, nil }

func (NopLocal[E]) Insert(ctx context.Context, userID string, e E) error { return nil }

func (NopLocal[E]) Update(ctx context.Context, userID, id string, fields model.Patch) error {
	return nil
}

func (NopLocal[E]) Remove(ctx context.Context, userID, id string) error { return nil }

func (NopLocal[E]) SyncFromRemote(ctx context.Context, userID string, remote []E) error {
	return nil
}
