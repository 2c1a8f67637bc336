// Package natsbus fans appended events out to NATS so other services can
// follow a group's activity without reading the database.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher is the part of *nats.Conn the log decorator uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Observer is told about every publish attempt.
type Observer interface {
	Published(err error)
}

// Connect dials the NATS server with reconnects enabled.
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("presence"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Subject returns the subject events of groupID are published on.
func Subject(prefix string, groupID int64) string {
	return fmt.Sprintf("%s.%d", prefix, groupID)
}

// Log decorates an activity.Log: every successful Append is published as
// JSON. Publish failures are logged and never fail the append, the
// database stays the source of truth.
type Log struct {
	next     activity.Log
	pub      Publisher
	prefix   string
	logger   *zap.Logger
	observer Observer
}

// NewLog wraps next.
func NewLog(next activity.Log, pub Publisher, prefix string, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{next: next, pub: pub, prefix: prefix, logger: logger}
}

// SetObserver registers an observer for publish results.
func (l *Log) SetObserver(o Observer) {
	l.observer = o
}

// Append appends to the wrapped log, then publishes.
func (l *Log) Append(ctx context.Context, event *activity.Event) error {
	if err := l.next.Append(ctx, event); err != nil {
		return err
	}

	err := l.publish(event)
	if l.observer != nil {
		l.observer.Published(err)
	}
	if err != nil {
		l.logger.Warn("event not published",
			zap.String("event_id", event.ID),
			zap.Int64("group_id", event.GroupID),
			zap.Error(err),
		)
	}
	return nil
}

func (l *Log) publish(event *activity.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return l.pub.Publish(Subject(l.prefix, event.GroupID), data)
}

// QuerySince reads from the wrapped log.
func (l *Log) QuerySince(ctx context.Context, groupID int64, since time.Time) ([]activity.Event, error) {
	return l.next.QuerySince(ctx, groupID, since)
}

// List reads from the wrapped log.
func (l *Log) List(ctx context.Context, opts activity.ListOptions) ([]activity.Event, error) {
	return l.next.List(ctx, opts)
}

// Watch delivers events published for groupID, or for every group when
// groupID is zero, until ctx is done.
func Watch(ctx context.Context, nc *nats.Conn, prefix string, groupID int64, fn func(activity.Event)) error {
	subject := prefix + ".>"
	if groupID != 0 {
		subject = Subject(prefix, groupID)
	}

	ch := make(chan *nats.Msg, 64)
	sub, err := nc.ChanSubscribe(subject, ch)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			var ev activity.Event
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				continue
			}
			fn(ev)
		}
	}
}
