// Package session tracks the signed-in user and notifies subscribers of
// sign-in and sign-out. The sync coordinators attach to a Provider so a
// user switch tears down one replication session and starts the next.
package session

import (
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// User identifies an authenticated account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Provider exposes the current user and change notifications. Current
// returns nil when signed out.
type Provider interface {
	Current() *User
	Subscribe(fn func(*User)) (unsubscribe func())
}

// Manager is the in-process Provider implementation. Set swaps the user
// and fans the change out to subscribers.
type Manager struct {
	mu    sync.Mutex
	user  *User
	subs  map[int]func(*User)
	nextS int
}

// NewManager creates a signed-out session manager.
func NewManager() *Manager {
	return &Manager{subs: make(map[int]func(*User))}
}

// Current returns the signed-in user, or nil.
func (m *Manager) Current() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// Set installs the user (nil signs out) and notifies subscribers.
// Notifications run synchronously on the caller's goroutine, outside the
// manager lock.
func (m *Manager) Set(u *User) {
	m.mu.Lock()
	m.user = u
	fns := make([]func(*User), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

// Subscribe registers fn for user changes and returns its removal
// function. fn is not called with the current user; callers that need it
// read Current first.
func (m *Manager) Subscribe(fn func(*User)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextS
	m.nextS++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// FromToken extracts the user identity from a bearer token without
// verifying the signature. The client trusts the server that issued the
// token; verification happens server-side on every request.
func FromToken(token string) (*User, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("session token has no subject")
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	return &User{ID: sub, Email: email, Name: name}, nil
}
