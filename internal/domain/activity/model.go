package activity

import "time"

// Origin describes how a signal reached the bot.
type Origin string

const (
	OriginText    Origin = "text"
	OriginButton  Origin = "button"
	OriginMention Origin = "mention"
)

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	switch o {
	case OriginText, OriginButton, OriginMention:
		return true
	}
	return false
}

// CloseReason records why an interval ended.
type CloseReason string

const (
	ReasonNone       CloseReason = ""
	ReasonRepeat     CloseReason = "repeat"
	ReasonSuperseded CloseReason = "superseded"
	ReasonCheckout   CloseReason = "checkout"
)

// Event is one immutable entry of the event log. Instantaneous codes
// carry only OccurredAt; interval codes also carry StartedAt, EndedAt and
// Duration, with OccurredAt equal to EndedAt.
type Event struct {
	ID          string        `json:"id"`
	GroupID     int64         `json:"group_id"`
	PersonID    int64         `json:"person_id"`
	DisplayName string        `json:"display_name"`
	Code        Code          `json:"code"`
	Label       string        `json:"label"`
	OccurredAt  time.Time     `json:"occurred_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	CloseReason CloseReason   `json:"close_reason,omitempty"`
	Origin      Origin        `json:"origin"`
	MessageRef  string        `json:"message_ref,omitempty"`
}

// IsInterval reports whether the event is a closed interval.
func (e Event) IsInterval() bool {
	return e.Code.IsInterval() && e.StartedAt != nil
}
