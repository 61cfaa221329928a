// Package server implements the authoritative sync server: JSON document
// CRUD per user and collection, bearer-token auth, and a websocket watch
// endpoint that pushes the full record set after every change.
//
// The server is entity-agnostic. Records are stored as JSON documents keyed
// by (user, collection, id); the clients own the field semantics. Render
// order is derived from the conventional sort fields (fixed, dateTs,
// created_at) when present.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a patch or delete targets a missing document.
var ErrNotFound = errors.New("document not found")

// ErrEmailTaken is returned when registering an already-registered email.
var ErrEmailTaken = errors.New("email already registered")

// Store persists JSON documents partitioned by user and collection.
type Store interface {
	// List returns every document in the partition, unordered.
	List(ctx context.Context, userID, collection string) ([]json.RawMessage, error)

	// Put creates or fully replaces the document at id.
	Put(ctx context.Context, userID, collection, id string, payload json.RawMessage) error

	// Patch merges fields into the stored document. Returns ErrNotFound
	// when the document does not exist.
	Patch(ctx context.Context, userID, collection, id string, fields map[string]any) error

	// Delete removes the document. Returns ErrNotFound when absent.
	Delete(ctx context.Context, userID, collection, id string) error
}

// Account is a registered user.
type Account struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255" json:"email"`
	Name         string    `gorm:"size:255" json:"name"`
	PasswordHash []byte    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Accounts persists registered users.
type Accounts interface {
	// Create stores a new account. Returns ErrEmailTaken on a duplicate
	// email.
	Create(ctx context.Context, a Account) error

	// FindByEmail returns the account, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (Account, error)
}

// MemStore is the in-memory Store and Accounts implementation, used by
// tests and by single-process deployments that don't need Postgres.
type MemStore struct {
	mu       sync.RWMutex
	docs     map[string]map[string]json.RawMessage
	accounts map[string]Account
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		docs:     make(map[string]map[string]json.RawMessage),
		accounts: make(map[string]Account),
	}
}

func partitionKey(userID, collection string) string {
	return userID + "/" + collection
}

func (s *MemStore) List(ctx context.Context, userID, collection string) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	part := s.docs[partitionKey(userID, collection)]
	out := make([]json.RawMessage, 0, len(part))
	for _, doc := range part {
		out = append(out, doc)
	}
	return out, nil
}

func (s *MemStore) Put(ctx context.Context, userID, collection, id string, payload json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := partitionKey(userID, collection)
	if s.docs[key] == nil {
		s.docs[key] = make(map[string]json.RawMessage)
	}
	s.docs[key][id] = append(json.RawMessage(nil), payload...)
	return nil
}

func (s *MemStore) Patch(ctx context.Context, userID, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	part := s.docs[partitionKey(userID, collection)]
	doc, ok := part[id]
	if !ok {
		return ErrNotFound
	}
	merged, err := mergeDocument(doc, fields)
	if err != nil {
		return err
	}
	part[id] = merged
	return nil
}

func (s *MemStore) Delete(ctx context.Context, userID, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	part := s.docs[partitionKey(userID, collection)]
	if _, ok := part[id]; !ok {
		return ErrNotFound
	}
	delete(part, id)
	return nil
}

func (s *MemStore) Create(ctx context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.Email]; ok {
		return ErrEmailTaken
	}
	s.accounts[a.Email] = a
	return nil
}

func (s *MemStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[email]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

// mergeDocument applies a shallow field merge to a stored JSON document.
// A nil field value clears the key.
func mergeDocument(doc json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, err
	}
	for k, v := range fields {
		if v == nil {
			m[k] = nil
			continue
		}
		m[k] = v
	}
	return json.Marshal(m)
}

// sortDocuments orders documents for rendering: pinned first, then the
// derived date key descending, then creation time descending. Collections
// without a given field all tie on it and fall through to the next key.
func sortDocuments(docs []json.RawMessage) {
	type keyed struct {
		doc     json.RawMessage
		fixed   bool
		dateTS  int64
		created int64
	}
	keys := make([]keyed, len(docs))
	for i, doc := range docs {
		var m struct {
			Fixed     bool    `json:"fixed"`
			DateTS    float64 `json:"dateTs"`
			CreatedAt string  `json:"created_at"`
		}
		_ = json.Unmarshal(doc, &m)
		keys[i] = keyed{doc: doc, fixed: m.Fixed, dateTS: int64(m.DateTS), created: createdAtMillis(m.CreatedAt)}
	}
	sort.SliceStable(keys, func(a, b int) bool {
		ka, kb := keys[a], keys[b]
		if ka.fixed != kb.fixed {
			return ka.fixed
		}
		if ka.dateTS != kb.dateTS {
			return ka.dateTS > kb.dateTS
		}
		return ka.created > kb.created
	})
	for i := range keys {
		docs[i] = keys[i].doc
	}
}

func createdAtMillis(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
