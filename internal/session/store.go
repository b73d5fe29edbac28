// Package session implements isolated state partitions keyed by session id.
//
// Every simulator operation runs inside exactly one partition. A Session
// owns one Mailbox and one Workspace; deleting the session discards both
// atomically. Partitions never share mutable state, so operations in
// different sessions proceed without contending with each other.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wiresim/wiresim/internal/mailbox"
	"github.com/wiresim/wiresim/internal/workspace"
)

var (
	// ErrNotFound is returned for operations against an unknown or deleted
	// session id.
	ErrNotFound = errors.New("session not found")

	// ErrConflict is returned when creating a session whose id already exists.
	ErrConflict = errors.New("session already exists")
)

// Session is one isolated partition. The mutex is the single linearization
// domain for everything the session owns: message id allocation, slack ts
// allocation, and reads all happen under it.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	deleted bool

	Mailbox   *mailbox.Mailbox
	Workspace *workspace.Workspace
}

// Store maps session ids to partitions. The store lock only guards the map;
// it is never held while a session operation runs.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create allocates a new partition with an empty mailbox and workspace.
// An empty id generates one.
func (s *Store) Create(id string) (*Session, error) {
	if id == "" {
		id = fmt.Sprintf("session-%s", uuid.NewString())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok {
		return nil, ErrConflict
	}

	sess := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		Mailbox:   mailbox.New(),
		Workspace: workspace.New(),
	}
	s.sessions[id] = sess
	return sess, nil
}

// Delete removes the partition and all data it owns. The session is
// tombstoned under its own mutex, so an operation racing the deletion
// either completes first or observes ErrNotFound; nothing can touch
// post-deletion state.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	sess.mu.Lock()
	sess.deleted = true
	sess.Mailbox = nil
	sess.Workspace = nil
	sess.mu.Unlock()
	return nil
}

// Reset discards the session's data while keeping the session itself.
func (s *Store) Reset(id string) error {
	return s.With(id, func(sess *Session) error {
		sess.Mailbox = mailbox.New()
		sess.Workspace = workspace.New()
		return nil
	})
}

// With runs fn under the session's mutex. It returns ErrNotFound when the
// id is unknown or the session was deleted before the lock was acquired.
func (s *Store) With(id string, fn func(*Session) error) error {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.deleted {
		return ErrNotFound
	}
	return fn(sess)
}

// Exists reports whether the session id is live.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
