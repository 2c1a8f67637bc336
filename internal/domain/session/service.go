package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/clock"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service applies signals to the per-person state machine.
type Service struct {
	mirror   *Mirror
	events   EventAppender
	clock    clock.Clock
	logger   *zap.Logger
	observer Observer
	locks    keyedMutex
}

// NewService creates a new session service.
func NewService(mirror *Mirror, events EventAppender, clk clock.Clock, logger *zap.Logger) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		mirror: mirror,
		events: events,
		clock:  clk,
		logger: logger,
		locks:  keyedMutex{locks: make(map[Key]*lockEntry)},
	}
}

// SetObserver registers an observer for Apply results.
func (s *Service) SetObserver(o Observer) {
	s.observer = o
	if o != nil {
		o.ObserveOpenSessions(s.mirror.Len())
	}
}

// Apply interprets sig against the person's current state, appends the
// resulting events and updates the open session. Calls for the same
// person are serialized; different people proceed in parallel.
//
// On a persistence error no Outcome is returned and the mirror reflects
// whatever the store holds.
func (s *Service) Apply(ctx context.Context, sig Signal) (*Outcome, error) {
	started := time.Now()
	out, err := s.apply(ctx, sig)
	if s.observer != nil {
		s.observer.ObserveApply(sig.Code, out, err, time.Since(started))
		s.observer.ObserveOpenSessions(s.mirror.Len())
	}
	return out, err
}

// OpenSessions lists the sessions currently open in a group, re-read from
// the store so breaks opened by another process sharing it are included.
func (s *Service) OpenSessions(ctx context.Context, groupID int64) ([]OpenSession, error) {
	if err := s.mirror.Warm(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return s.mirror.List(groupID), nil
}

// maxOpenAttempts bounds how often Apply re-reads the store after losing
// an idle-to-open race to another writer.
const maxOpenAttempts = 3

// errOpenTaken marks an open that found a session already stored for the
// key before anything was written for the signal.
var errOpenTaken = errors.New("open session already stored")

func (s *Service) apply(ctx context.Context, sig Signal) (*Outcome, error) {
	key := sig.Key()
	if !key.Valid() {
		return nil, ErrMissingIdentity
	}
	if !sig.Code.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSignal, sig.Code)
	}
	if sig.At.IsZero() {
		sig.At = s.clock.Now()
	}
	sig.At = sig.At.UTC()
	if !sig.Origin.Valid() {
		sig.Origin = activity.OriginText
	}

	unlock := s.locks.Lock(key)
	defer unlock()

	for attempt := 1; ; attempt++ {
		out, err := s.transition(ctx, key, sig)
		if !errors.Is(err, errOpenTaken) {
			return out, err
		}
		if attempt == maxOpenAttempts {
			return nil, fmt.Errorf("%w: storing open session: %w", ErrPersistence, err)
		}
		// Another process opened a session between our read and our
		// insert. Nothing was written, so decide again from the store.
		s.logger.Info("open session stored concurrently, re-reading",
			zap.Int64("group_id", key.GroupID),
			zap.Int64("person_id", key.PersonID),
			zap.Int("attempt", attempt),
		)
	}
}

// transition runs one read-decide-write pass for sig. The caller holds
// the lock for key.
func (s *Service) transition(ctx context.Context, key Key, sig Signal) (*Outcome, error) {
	// The store, not the index, decides the current phase.
	current, err := s.mirror.Lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: loading open session: %w", ErrPersistence, err)
	}

	tr, err := Decide(current, sig.Code)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Code: sig.Code, Events: []activity.Event{}, Session: current}

	// Close first: append the interval, then drop the row.
	if tr.Closes() {
		closed := closedEvent(current, sig, tr.Close)
		if err := s.events.Append(ctx, &closed); err != nil {
			return nil, s.fail(ctx, key, "appending closed interval", err)
		}
		out.Events = append(out.Events, closed)
		if err := s.mirror.Remove(ctx, key); err != nil {
			return nil, s.fail(ctx, key, "deleting open session", err)
		}
		out.Closed = true
		out.Superseded = tr.Close == activity.ReasonSuperseded
		out.ClosedCode = closed.Code
		out.Duration = closed.Duration
		out.CloseReason = tr.Close
		out.Session = nil

		s.logger.Debug("interval closed",
			zap.Int64("group_id", key.GroupID),
			zap.Int64("person_id", key.PersonID),
			zap.String("code", string(closed.Code)),
			zap.Duration("duration", closed.Duration),
			zap.String("reason", string(tr.Close)),
		)
		// Out-of-order instants are kept as they are; only flag them.
		if closed.Duration <= 0 {
			s.logger.Warn("non-positive interval duration",
				zap.Int64("group_id", key.GroupID),
				zap.Int64("person_id", key.PersonID),
				zap.Time("started_at", *closed.StartedAt),
				zap.Time("ended_at", *closed.EndedAt),
			)
		}
	}

	// Then open the new interval, if any.
	if tr.Open {
		opened := OpenSession{
			GroupID:     sig.GroupID,
			PersonID:    sig.PersonID,
			Code:        sig.Code,
			StartedAt:   sig.At,
			DisplayName: sig.DisplayName,
		}
		created, err := s.mirror.Create(ctx, opened)
		if err != nil {
			return nil, s.fail(ctx, key, "storing open session", err)
		}
		if !created {
			if !tr.Closes() {
				return nil, errOpenTaken
			}
			// The close is durable; the session stored in its place is
			// another writer's and stays untouched.
			return nil, s.fail(ctx, key, "storing open session", errors.New("open session stored concurrently"))
		}
		out.Opened = true
		out.Session = &opened

		s.logger.Debug("interval opened",
			zap.Int64("group_id", key.GroupID),
			zap.Int64("person_id", key.PersonID),
			zap.String("code", string(sig.Code)),
		)
	}

	// Instantaneous codes are logged last.
	if tr.Log {
		event := instantEvent(sig)
		if err := s.events.Append(ctx, &event); err != nil {
			return nil, s.fail(ctx, key, "appending event", err)
		}
		out.Events = append(out.Events, event)
		out.Logged = true
	}

	return out, nil
}

func (s *Service) fail(ctx context.Context, key Key, step string, err error) error {
	s.logger.Error("signal not applied",
		zap.Int64("group_id", key.GroupID),
		zap.Int64("person_id", key.PersonID),
		zap.String("step", step),
		zap.Error(err),
	)
	if rerr := s.mirror.Reconcile(ctx, key); rerr != nil {
		s.logger.Warn("reconcile open session", zap.Error(rerr))
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, step, err)
}

func closedEvent(open *OpenSession, sig Signal, reason activity.CloseReason) activity.Event {
	start := open.StartedAt.UTC()
	end := sig.At
	name := sig.DisplayName
	if name == "" {
		name = open.DisplayName
	}
	return activity.Event{
		ID:          uuid.NewString(),
		GroupID:     open.GroupID,
		PersonID:    open.PersonID,
		DisplayName: name,
		Code:        open.Code,
		Label:       open.Code.Label(),
		OccurredAt:  end,
		StartedAt:   &start,
		EndedAt:     &end,
		Duration:    end.Sub(start),
		CloseReason: reason,
		Origin:      sig.Origin,
		MessageRef:  sig.MessageRef,
	}
}

func instantEvent(sig Signal) activity.Event {
	return activity.Event{
		ID:          uuid.NewString(),
		GroupID:     sig.GroupID,
		PersonID:    sig.PersonID,
		DisplayName: sig.DisplayName,
		Code:        sig.Code,
		Label:       sig.Code.Label(),
		OccurredAt:  sig.At,
		Origin:      sig.Origin,
		MessageRef:  sig.MessageRef,
	}
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per Key and drops it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[Key]*lockEntry
}

func (k *keyedMutex) Lock(key Key) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
