package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
)

// ErrUnknownPeriod is returned by ParsePeriod for unrecognized input.
var ErrUnknownPeriod = errors.New("unknown report period")

// Period selects the window of a group report.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod maps "daily", "weekly" or "monthly" to a Period.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(raw); p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, raw)
}

// Title returns the capitalized period name.
func (p Period) Title() string {
	switch p {
	case PeriodDaily:
		return "Daily"
	case PeriodWeekly:
		return "Weekly"
	case PeriodMonthly:
		return "Monthly"
	}
	return string(p)
}

// PersonSummary aggregates one person's events over a window. It is
// rebuilt on every request and never stored.
type PersonSummary struct {
	PersonID     int64                           `json:"person_id" yaml:"person_id"`
	DisplayName  string                          `json:"display_name" yaml:"display_name"`
	Counts       map[activity.Code]int           `json:"counts" yaml:"counts"`
	Durations    map[activity.Code]time.Duration `json:"durations" yaml:"durations"`
	LastActivity time.Time                       `json:"last_activity" yaml:"last_activity"`
}

// GroupReport is the summary of every person active in a group window.
type GroupReport struct {
	GroupID int64           `json:"group_id" yaml:"group_id"`
	Period  Period          `json:"period" yaml:"period"`
	Zone    string          `json:"zone" yaml:"zone"`
	Since   time.Time       `json:"since" yaml:"since"`
	Until   time.Time       `json:"until" yaml:"until"`
	People  []PersonSummary `json:"people" yaml:"people"`
}

// IntervalTotal is the count and cumulative duration of one interval code.
type IntervalTotal struct {
	Count    int           `json:"count" yaml:"count"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// DailyPersonReport describes one person's day. FirstIn and LastOut are nil
// when no check in or check out was logged; WorkingSpan is then zero.
type DailyPersonReport struct {
	GroupID     int64                           `json:"group_id" yaml:"group_id"`
	PersonID    int64                           `json:"person_id" yaml:"person_id"`
	DisplayName string                          `json:"display_name" yaml:"display_name"`
	Date        string                          `json:"date,omitempty" yaml:"date,omitempty"`
	FirstIn     *time.Time                      `json:"first_in,omitempty" yaml:"first_in,omitempty"`
	LastOut     *time.Time                      `json:"last_out,omitempty" yaml:"last_out,omitempty"`
	WorkingSpan time.Duration                   `json:"working_span" yaml:"working_span"`
	Intervals   map[activity.Code]IntervalTotal `json:"intervals" yaml:"intervals"`
}

// AbsenceDay is one leave or medical event reduced to its local date.
type AbsenceDay struct {
	Date string        `json:"date" yaml:"date"`
	Code activity.Code `json:"code" yaml:"code"`
}

// MonthlyPersonReport lists a person's absence days in one month, one
// entry per event.
type MonthlyPersonReport struct {
	GroupID     int64        `json:"group_id" yaml:"group_id"`
	PersonID    int64        `json:"person_id" yaml:"person_id"`
	DisplayName string       `json:"display_name" yaml:"display_name"`
	Month       string       `json:"month,omitempty" yaml:"month,omitempty"`
	Absences    []AbsenceDay `json:"absences" yaml:"absences"`
}
