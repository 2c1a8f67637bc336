package session_test

import (
	"context"
	"sync"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
)

type memStore struct {
	mu      sync.Mutex
	data    map[session.Key]session.OpenSession
	creates int
	deletes int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[session.Key]session.OpenSession)}
}

func (s *memStore) Get(_ context.Context, key session.Key) (*session.OpenSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *memStore) Create(_ context.Context, sess *session.OpenSession) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[sess.Key()]; ok {
		return false, nil
	}
	s.creates++
	s.data[sess.Key()] = *sess
	return true, nil
}

func (s *memStore) Delete(_ context.Context, key session.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.data, key)
	return nil
}

func (s *memStore) LoadAll(context.Context) (map[session.Key]session.OpenSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[session.Key]session.OpenSession, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates + s.deletes
}

type memLog struct {
	mu     sync.Mutex
	events []activity.Event
}

func (l *memLog) Append(_ context.Context, event *activity.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, *event)
	return nil
}

func (l *memLog) all() []activity.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]activity.Event, len(l.events))
	copy(out, l.events)
	return out
}

// racingStore lets another writer win the first Create calls: each one
// stores rival, when set, and reports the key as taken.
type racingStore struct {
	*memStore
	losses int
	rival  *session.OpenSession
}

func (s *racingStore) Create(ctx context.Context, sess *session.OpenSession) (bool, error) {
	if s.losses == 0 {
		return s.memStore.Create(ctx, sess)
	}
	s.losses--
	if s.rival != nil {
		_, err := s.memStore.Create(ctx, s.rival)
		return false, err
	}
	return false, nil
}
