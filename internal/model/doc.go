// Package model defines the synchronized record types (Transaction, Meal,
// Idea) shared by the local cache, the remote store and the sync coordinator.
//
// All records follow the same shape: a client-generated string id, an
// immutable ISO-8601 created_at timestamp, and entity-specific payload
// fields. Records are partitioned by owning user at the storage layer; the
// structs themselves never carry the user id.
//
// Each type knows how to:
//   - sanitize itself after arriving from the remote store (Sanitize)
//   - apply a partial field patch, re-deriving dependent fields (WithPatch)
//   - fill defaults for a freshly created record (Finalize)
//   - order itself against a sibling for list rendering (SortsBefore)
package model
