package activity

import (
	"context"
	"time"
)

// Log is the append-only event log. Append must report every failure;
// a lost close event corrupts duration accounting.
type Log interface {
	Append(ctx context.Context, event *Event) error
	QuerySince(ctx context.Context, groupID int64, since time.Time) ([]Event, error)
	List(ctx context.Context, opts ListOptions) ([]Event, error)
}
