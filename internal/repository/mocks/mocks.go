package mocks

import (
	"context"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
	"github.com/davidkramnik/telegram-bot-calculation/internal/repository"
	"github.com/stretchr/testify/mock"
)

var (
	_ repository.SessionRepository = (*SessionRepository)(nil)
	_ repository.EventRepository   = (*EventRepository)(nil)
)

// SessionRepository is a mock for repository.SessionRepository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Get(ctx context.Context, key session.Key) (*session.OpenSession, error) {
	args := m.Called(ctx, key)
	if sess, ok := args.Get(0).(*session.OpenSession); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) Create(ctx context.Context, sess *session.OpenSession) (bool, error) {
	args := m.Called(ctx, sess)
	return args.Bool(0), args.Error(1)
}

func (m *SessionRepository) Delete(ctx context.Context, key session.Key) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *SessionRepository) LoadAll(ctx context.Context) (map[session.Key]session.OpenSession, error) {
	args := m.Called(ctx)
	if all, ok := args.Get(0).(map[session.Key]session.OpenSession); ok {
		return all, args.Error(1)
	}
	return nil, args.Error(1)
}

// EventRepository is a mock for repository.EventRepository.
type EventRepository struct {
	mock.Mock
}

func (m *EventRepository) Append(ctx context.Context, event *activity.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *EventRepository) QuerySince(ctx context.Context, groupID int64, since time.Time) ([]activity.Event, error) {
	args := m.Called(ctx, groupID, since)
	if events, ok := args.Get(0).([]activity.Event); ok {
		return events, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EventRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Event, error) {
	args := m.Called(ctx, opts)
	if events, ok := args.Get(0).([]activity.Event); ok {
		return events, args.Error(1)
	}
	return nil, args.Error(1)
}
