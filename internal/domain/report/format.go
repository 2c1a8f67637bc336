package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/clock"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
)

// Missing is rendered in place of an absent time or span.
const Missing = "—"

const timeLayout = "15:04"

// FormatDuration renders d as "1h05m", "15m" or "40s". Negative durations
// keep their sign.
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second

	switch {
	case h > 0:
		return fmt.Sprintf("%s%dh%02dm", sign, h, m)
	case m > 0:
		return fmt.Sprintf("%s%dm", sign, m)
	default:
		return fmt.Sprintf("%s%ds", sign, s)
	}
}

func name(displayName string, personID int64) string {
	if displayName != "" {
		return displayName
	}
	return fmt.Sprintf("#%d", personID)
}

func clockTime(t *time.Time, zone *clock.Zone) string {
	if t == nil {
		return Missing
	}
	return zone.In(*t).Format(timeLayout)
}

// FormatGroupReport renders one line per person.
func FormatGroupReport(rep *GroupReport, zone *clock.Zone) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s report since %s (%s)\n", rep.Period.Title(), zone.In(rep.Since).Format("2006-01-02 15:04"), rep.Zone)

	if len(rep.People) == 0 {
		b.WriteString("No activity.\n")
		return b.String()
	}

	for _, p := range rep.People {
		parts := make([]string, 0, len(p.Counts))
		for _, code := range activity.Codes() {
			n := p.Counts[code]
			if n == 0 {
				continue
			}
			if code.IsInterval() {
				parts = append(parts, fmt.Sprintf("%s %d (%s)", code.Label(), n, FormatDuration(p.Durations[code])))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s %d", code.Label(), n))
		}
		last := p.LastActivity
		fmt.Fprintf(&b, "%s: %s; last %s\n", name(p.DisplayName, p.PersonID), strings.Join(parts, ", "), clockTime(&last, zone))
	}
	return b.String()
}

// FormatDailyPersonReport renders a person's day.
func FormatDailyPersonReport(rep *DailyPersonReport, zone *clock.Zone) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", name(rep.DisplayName, rep.PersonID), rep.Date)
	fmt.Fprintf(&b, "First in: %s\n", clockTime(rep.FirstIn, zone))
	fmt.Fprintf(&b, "Last out: %s\n", clockTime(rep.LastOut, zone))

	span := Missing
	if rep.FirstIn != nil && rep.LastOut != nil {
		span = FormatDuration(rep.WorkingSpan)
	}
	fmt.Fprintf(&b, "Working: %s\n", span)

	for _, code := range activity.IntervalCodes() {
		total, ok := rep.Intervals[code]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s: %d (%s)\n", code.Label(), total.Count, FormatDuration(total.Duration))
	}
	return b.String()
}

// FormatMonthlyPersonReport renders a person's absence days.
func FormatMonthlyPersonReport(rep *MonthlyPersonReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s absences: %d\n", name(rep.DisplayName, rep.PersonID), rep.Month, len(rep.Absences))
	for _, day := range rep.Absences {
		fmt.Fprintf(&b, "%s %s\n", day.Date, day.Code.Label())
	}
	return b.String()
}

// FormatOutcome renders the reply to a signal.
func FormatOutcome(displayName string, personID int64, out *session.Outcome) string {
	who := name(displayName, personID)
	switch {
	case out.Superseded:
		return fmt.Sprintf("%s switched from %s to %s after %s", who,
			out.ClosedCode.Label(), out.Code.Label(), FormatDuration(out.Duration))
	case out.Closed && out.Logged:
		return fmt.Sprintf("%s: %s ended after %s, %s", who,
			out.ClosedCode.Label(), FormatDuration(out.Duration), out.Code.Label())
	case out.Closed:
		return fmt.Sprintf("%s: %s ended after %s", who, out.ClosedCode.Label(), FormatDuration(out.Duration))
	case out.Opened:
		return fmt.Sprintf("%s: %s started", who, out.Code.Label())
	default:
		return fmt.Sprintf("%s: %s", who, out.Code.Label())
	}
}
