package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/repository"
	"github.com/google/uuid"
)

// EventRepository implements repository.EventRepository for SQLite
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts a new event. An empty ID is filled in.
func (r *EventRepository) Append(ctx context.Context, event *activity.Event) error {
	if event.GroupID == 0 || event.PersonID == 0 || !event.Code.Valid() || event.OccurredAt.IsZero() {
		return fmt.Errorf("%w: event %d/%d %q", repository.ErrInvalidInput, event.GroupID, event.PersonID, event.Code)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Label == "" {
		event.Label = event.Code.Label()
	}
	if event.Origin == "" {
		event.Origin = activity.OriginText
	}

	query := `
		INSERT INTO events (
			id, group_id, person_id, display_name, code, label,
			occurred_at, started_at, ended_at, duration_ns, close_reason,
			origin, message_ref, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.GroupID,
		event.PersonID,
		event.DisplayName,
		event.Code,
		event.Label,
		toNanos(event.OccurredAt),
		nullableNanos(event.StartedAt),
		nullableNanos(event.EndedAt),
		int64(event.Duration),
		event.CloseReason,
		event.Origin,
		event.MessageRef,
		toNanos(r.db.now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: event %s", repository.ErrDuplicate, event.ID)
		}
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// QuerySince returns a group's events at or after since, oldest first
func (r *EventRepository) QuerySince(ctx context.Context, groupID int64, since time.Time) ([]activity.Event, error) {
	return r.List(ctx, activity.ListOptions{GroupID: groupID, Since: since})
}

// List returns events matching the given filters, oldest first
func (r *EventRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Event, error) {
	query := `
		SELECT
			id, group_id, person_id, display_name, code, label,
			occurred_at, started_at, ended_at, duration_ns, close_reason,
			origin, message_ref
		FROM events
		WHERE group_id = ?
	`

	args := []any{opts.GroupID}
	conditions := []string{}

	if opts.PersonID != nil {
		conditions = append(conditions, "person_id = ?")
		args = append(args, *opts.PersonID)
	}
	if !opts.Since.IsZero() {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, toNanos(opts.Since))
	}
	if !opts.Until.IsZero() {
		conditions = append(conditions, "occurred_at < ?")
		args = append(args, toNanos(opts.Until))
	}
	if len(opts.Codes) > 0 {
		placeholders := make([]string, len(opts.Codes))
		for i, code := range opts.Codes {
			placeholders[i] = "?"
			args = append(args, code)
		}
		conditions = append(conditions, "code IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY occurred_at, seq"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]activity.Event, 0)
	for rows.Next() {
		var ev activity.Event
		var occurredAt, durationNs int64
		var startedAt, endedAt sql.NullInt64
		if err := rows.Scan(
			&ev.ID,
			&ev.GroupID,
			&ev.PersonID,
			&ev.DisplayName,
			&ev.Code,
			&ev.Label,
			&occurredAt,
			&startedAt,
			&endedAt,
			&durationNs,
			&ev.CloseReason,
			&ev.Origin,
			&ev.MessageRef,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.OccurredAt = fromNanos(occurredAt)
		ev.Duration = time.Duration(durationNs)
		if startedAt.Valid {
			t := fromNanos(startedAt.Int64)
			ev.StartedAt = &t
		}
		if endedAt.Valid {
			t := fromNanos(endedAt.Int64)
			ev.EndedAt = &t
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return events, nil
}

func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}
