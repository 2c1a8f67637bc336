package session

import (
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
)

// Key partitions all session state by group and person.
type Key struct {
	GroupID  int64 `json:"group_id"`
	PersonID int64 `json:"person_id"`
}

// Valid reports whether both ids are set.
func (k Key) Valid() bool {
	return k.GroupID != 0 && k.PersonID != 0
}

// OpenSession is an interval that has started but not yet closed.
type OpenSession struct {
	GroupID     int64         `json:"group_id"`
	PersonID    int64         `json:"person_id"`
	Code        activity.Code `json:"code"`
	StartedAt   time.Time     `json:"started_at"`
	DisplayName string        `json:"display_name"`
}

// Key returns the partition key of the session.
func (s OpenSession) Key() Key {
	return Key{GroupID: s.GroupID, PersonID: s.PersonID}
}

// Phase is the per-person state of the machine.
type Phase int

const (
	// Idle means no interval is open.
	Idle Phase = iota
	// OnBreak means exactly one interval is open.
	OnBreak
)

func (p Phase) String() string {
	if p == OnBreak {
		return "on_break"
	}
	return "idle"
}

// PhaseOf returns the phase implied by the current open session.
func PhaseOf(open *OpenSession) Phase {
	if open == nil {
		return Idle
	}
	return OnBreak
}

// Signal is one inbound activity code attributed to a person. A zero At
// is replaced by the service clock.
type Signal struct {
	GroupID     int64
	PersonID    int64
	Code        activity.Code
	At          time.Time
	DisplayName string
	Origin      activity.Origin
	MessageRef  string
}

// Key returns the partition key of the signal.
func (s Signal) Key() Key {
	return Key{GroupID: s.GroupID, PersonID: s.PersonID}
}

// Outcome tells the caller what a signal did so it can render "started",
// "ended after X" or "switched from A to B".
type Outcome struct {
	Code       activity.Code `json:"code"`
	Logged     bool          `json:"logged"`
	Opened     bool          `json:"opened"`
	Closed     bool          `json:"closed"`
	Superseded bool          `json:"superseded"`

	// ClosedCode and Duration describe the interval closed by this signal.
	ClosedCode  activity.Code        `json:"closed_code,omitempty"`
	Duration    time.Duration        `json:"duration,omitempty"`
	CloseReason activity.CloseReason `json:"close_reason,omitempty"`

	// Events holds every appended event in append order.
	Events []activity.Event `json:"events"`
	// Session is the open session after the transition, if any.
	Session *OpenSession `json:"session,omitempty"`
}
