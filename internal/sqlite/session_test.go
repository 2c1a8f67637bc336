package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/clock"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
	"github.com/davidkramnik/telegram-bot-calculation/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_CreateGetDelete(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)
	key := session.Key{GroupID: -100, PersonID: 7}

	missing, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.Nil(t, missing)

	start := time.Date(2024, 3, 4, 10, 0, 0, 123, time.UTC)
	created, err := repo.Create(ctx, &session.OpenSession{
		GroupID: key.GroupID, PersonID: key.PersonID, Code: activity.Meal, StartedAt: start, DisplayName: "alice",
	})
	require.NoError(t, err)
	require.True(t, created)

	loaded, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, activity.Meal, loaded.Code)
	require.Equal(t, start, loaded.StartedAt)
	require.Equal(t, "alice", loaded.DisplayName)

	require.NoError(t, repo.Delete(ctx, key))
	require.NoError(t, repo.Delete(ctx, key), "delete is idempotent")

	loaded, err = repo.Get(ctx, key)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestSessionRepository_CreateNeverOverwrites(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	sess := &session.OpenSession{GroupID: 1, PersonID: 2, Code: activity.Restroom, StartedAt: start}
	created, err := repo.Create(ctx, sess)
	require.NoError(t, err)
	require.True(t, created)

	// A second open for the same person keeps the first row.
	created, err = repo.Create(ctx, &session.OpenSession{GroupID: 1, PersonID: 2, Code: activity.Errand, StartedAt: start.Add(time.Minute)})
	require.NoError(t, err)
	require.False(t, created)

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, activity.Restroom, all[sess.Key()].Code)
	require.Equal(t, start, all[sess.Key()].StartedAt)
}

func TestSessionRepository_UpdatedAtFollowsClock(t *testing.T) {
	db := NewTestDB(t)
	stamped := time.Date(2024, 3, 4, 10, 5, 0, 0, time.UTC)
	db.SetClock(clock.Fake(stamped))

	_, err := NewSessionRepository(db).Create(context.Background(), &session.OpenSession{
		GroupID: 1, PersonID: 2, Code: activity.Meal, StartedAt: stamped.Add(-5 * time.Minute),
	})
	require.NoError(t, err)

	var updatedAt int64
	require.NoError(t, db.QueryRow("SELECT updated_at FROM open_sessions WHERE group_id = 1 AND person_id = 2").Scan(&updatedAt))
	require.Equal(t, stamped, fromNanos(updatedAt))
}

func TestSessionRepository_CreateRejectsInvalid(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSessionRepository(db)

	_, err := repo.Create(context.Background(), &session.OpenSession{GroupID: 1, PersonID: 2, Code: activity.CheckIn})
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	_, err = repo.Create(context.Background(), &session.OpenSession{GroupID: 1, Code: activity.Meal})
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestSessionRepository_LoadAllAcrossGroups(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	for _, sess := range []*session.OpenSession{
		{GroupID: 1, PersonID: 2, Code: activity.Meal, StartedAt: start},
		{GroupID: 3, PersonID: 2, Code: activity.Errand, StartedAt: start},
	} {
		_, err := repo.Create(ctx, sess)
		require.NoError(t, err)
	}

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, activity.Errand, all[session.Key{GroupID: 3, PersonID: 2}].Code)
}

// TestRestartClosesBreakStartedBeforeIt runs the state machine against a
// file database, drops every in-memory structure and starts over.
func TestRestartClosesBreakStartedBeforeIt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "presence.db")
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	end := start.Add(12 * time.Minute)

	boot := func() (*DB, *session.Service, *EventRepository) {
		db, err := New(path)
		require.NoError(t, err)
		require.NoError(t, db.RunMigrations())
		mirror := session.NewMirror(NewSessionRepository(db))
		require.NoError(t, mirror.Warm(ctx))
		events := NewEventRepository(db)
		return db, session.NewService(mirror, events, clock.Fake(start), nil), events
	}

	db, svc, _ := boot()
	_, err := svc.Apply(ctx, session.Signal{GroupID: 1, PersonID: 2, Code: activity.Restroom, At: start})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, svc, events := boot()
	t.Cleanup(func() { db.Close() })

	out, err := svc.Apply(ctx, session.Signal{GroupID: 1, PersonID: 2, Code: activity.Restroom, At: end})
	require.NoError(t, err)
	require.True(t, out.Closed)
	require.Equal(t, 12*time.Minute, out.Duration)

	logged, err := events.QuerySince(ctx, 1, start)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	require.Equal(t, start, *logged[0].StartedAt)
	require.Equal(t, end, *logged[0].EndedAt)
	require.Equal(t, activity.ReasonRepeat, logged[0].CloseReason)
}

// TestTwoProcessesShareOpenSessions runs a long-lived server and a one-shot
// CLI over the same database file. Each warms its own mirror at start.
func TestTwoProcessesShareOpenSessions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "presence.db")
	breakStart := time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC)
	breakEnd := breakStart.Add(15 * time.Minute)

	open := func() (*session.Service, *EventRepository) {
		db, err := New(path)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		require.NoError(t, db.RunMigrations())

		mirror := session.NewMirror(NewSessionRepository(db))
		require.NoError(t, mirror.Warm(ctx))
		events := NewEventRepository(db)
		return session.NewService(mirror, events, clock.Fake(breakStart), nil), events
	}

	// Both start before any break exists.
	server, events := open()
	cli, _ := open()

	_, err := cli.Apply(ctx, session.Signal{GroupID: 1, PersonID: 2, Code: activity.Restroom, At: breakStart})
	require.NoError(t, err)

	listed, err := server.OpenSessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	out, err := server.Apply(ctx, session.Signal{GroupID: 1, PersonID: 2, Code: activity.Restroom, At: breakEnd})
	require.NoError(t, err)
	require.True(t, out.Closed, "the break opened by the CLI is closed by the server")
	require.False(t, out.Opened)
	require.Equal(t, 15*time.Minute, out.Duration)

	logged, err := events.QuerySince(ctx, 1, breakStart)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	require.Equal(t, breakStart, *logged[0].StartedAt)
	require.Equal(t, breakEnd, *logged[0].EndedAt)
}
