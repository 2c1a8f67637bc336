package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
	"github.com/davidkramnik/telegram-bot-calculation/internal/repository"
)

// SessionRepository implements repository.SessionRepository for SQLite
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get retrieves the open session of a person, or nil when none is open
func (r *SessionRepository) Get(ctx context.Context, key session.Key) (*session.OpenSession, error) {
	query := `
		SELECT group_id, person_id, code, started_at, display_name
		FROM open_sessions
		WHERE group_id = ? AND person_id = ?
	`

	sess, err := scanOpenSession(r.db.QueryRowContext(ctx, query, key.GroupID, key.PersonID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}
	return sess, nil
}

// Create inserts the open session of a person. It returns false, leaving
// the stored row untouched, when that person already has one open.
func (r *SessionRepository) Create(ctx context.Context, sess *session.OpenSession) (bool, error) {
	if !sess.Key().Valid() || !sess.Code.IsInterval() {
		return false, fmt.Errorf("%w: open session %d/%d %q", repository.ErrInvalidInput, sess.GroupID, sess.PersonID, sess.Code)
	}

	query := `
		INSERT INTO open_sessions (group_id, person_id, code, started_at, display_name, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(group_id, person_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		sess.GroupID,
		sess.PersonID,
		sess.Code,
		toNanos(sess.StartedAt),
		sess.DisplayName,
		toNanos(r.db.now()),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create open session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// Delete removes the open session of a person. Deleting nothing is not an error.
func (r *SessionRepository) Delete(ctx context.Context, key session.Key) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM open_sessions WHERE group_id = ? AND person_id = ?",
		key.GroupID, key.PersonID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete open session: %w", err)
	}
	return nil
}

// LoadAll returns every open session
func (r *SessionRepository) LoadAll(ctx context.Context) (map[session.Key]session.OpenSession, error) {
	query := `
		SELECT group_id, person_id, code, started_at, display_name
		FROM open_sessions
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load open sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[session.Key]session.OpenSession)
	for rows.Next() {
		sess, err := scanOpenSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan open session: %w", err)
		}
		out[sess.Key()] = *sess
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating open session rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOpenSession(row scanner) (*session.OpenSession, error) {
	var sess session.OpenSession
	var startedAt int64
	if err := row.Scan(
		&sess.GroupID,
		&sess.PersonID,
		&sess.Code,
		&startedAt,
		&sess.DisplayName,
	); err != nil {
		return nil, err
	}
	sess.StartedAt = fromNanos(startedAt)
	return &sess, nil
}
