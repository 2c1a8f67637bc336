package session

import (
	"context"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
)

// Store persists at most one open session per Key and is the authority on
// whether a person is on a break. Get returns nil, nil when nothing is
// open. Create never replaces a row: it reports false when the key already
// has an open session. Delete is idempotent.
type Store interface {
	Get(ctx context.Context, key Key) (*OpenSession, error)
	Create(ctx context.Context, sess *OpenSession) (bool, error)
	Delete(ctx context.Context, key Key) error
	LoadAll(ctx context.Context) (map[Key]OpenSession, error)
}

// EventAppender is the part of the event log the state machine writes to.
type EventAppender interface {
	Append(ctx context.Context, event *activity.Event) error
}

// Observer receives the result of every Apply call.
type Observer interface {
	ObserveApply(code activity.Code, out *Outcome, err error, elapsed time.Duration)
	ObserveOpenSessions(n int)
}
