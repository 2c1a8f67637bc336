package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Mirror is the process-wide in-memory index of open sessions. The Store
// stays the authority: the state machine reads through to it on every
// signal, since another process sharing the database may open or close a
// session at any time. The index serves listings and the open-session
// gauge, and every mutation reaches it only after the Store write
// succeeded.
type Mirror struct {
	store Store

	mu       sync.RWMutex
	sessions map[Key]OpenSession
}

// NewMirror creates an empty mirror over store.
func NewMirror(store Store) *Mirror {
	return &Mirror{
		store:    store,
		sessions: make(map[Key]OpenSession),
	}
}

// Warm replaces the index with the store's contents. Call it once at
// startup so listings include breaks started before a restart.
func (m *Mirror) Warm(ctx context.Context) error {
	all, err := m.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading open sessions: %w", err)
	}

	sessions := make(map[Key]OpenSession, len(all))
	for key, sess := range all {
		sessions[key] = sess
	}

	m.mu.Lock()
	m.sessions = sessions
	m.mu.Unlock()
	return nil
}

// Lookup reads the open session for key from the store, or nil, and
// brings the index in line with what it found.
func (m *Mirror) Lookup(ctx context.Context, key Key) (*OpenSession, error) {
	stored, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if stored == nil {
		delete(m.sessions, key)
		return nil, nil
	}
	m.sessions[key] = *stored
	copied := *stored
	return &copied, nil
}

// Create writes sess to the store, then to the index. It returns false
// when the store already holds a session for the key; the index then
// reflects the stored one.
func (m *Mirror) Create(ctx context.Context, sess OpenSession) (bool, error) {
	created, err := m.store.Create(ctx, &sess)
	if err != nil {
		return false, err
	}
	if !created {
		return false, m.Reconcile(ctx, sess.Key())
	}
	m.mu.Lock()
	m.sessions[sess.Key()] = sess
	m.mu.Unlock()
	return true, nil
}

// Remove deletes key from the store, then from the index.
func (m *Mirror) Remove(ctx context.Context, key Key) error {
	if err := m.store.Delete(ctx, key); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
	return nil
}

// Reconcile re-reads one key from the store and makes the index match.
func (m *Mirror) Reconcile(ctx context.Context, key Key) error {
	_, err := m.Lookup(ctx, key)
	return err
}

// Len returns the number of open sessions in the index.
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns the open sessions of one group ordered by start time.
func (m *Mirror) List(groupID int64) []OpenSession {
	m.mu.RLock()
	out := make([]OpenSession, 0)
	for key, sess := range m.sessions {
		if key.GroupID == groupID {
			out = append(out, sess)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].PersonID < out[j].PersonID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
