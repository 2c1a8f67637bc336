package report

import (
	"sort"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/clock"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
)

// Summarize groups events at or after since by person. People appear in
// the order of their first event; counts and durations do not depend on
// input order.
func Summarize(events []activity.Event, since time.Time) []PersonSummary {
	index := make(map[int64]int)
	out := make([]PersonSummary, 0)

	for _, ev := range events {
		if ev.OccurredAt.Before(since) {
			continue
		}
		i, ok := index[ev.PersonID]
		if !ok {
			i = len(out)
			index[ev.PersonID] = i
			out = append(out, PersonSummary{
				PersonID:  ev.PersonID,
				Counts:    make(map[activity.Code]int),
				Durations: make(map[activity.Code]time.Duration),
			})
		}
		sum := &out[i]
		sum.Counts[ev.Code]++
		if ev.IsInterval() {
			sum.Durations[ev.Code] += ev.Duration
		}
		if ev.DisplayName != "" && (sum.DisplayName == "" || !ev.OccurredAt.Before(sum.LastActivity)) {
			sum.DisplayName = ev.DisplayName
		}
		if ev.OccurredAt.After(sum.LastActivity) {
			sum.LastActivity = ev.OccurredAt
		}
	}
	return out
}

// BuildDailyPersonReport reduces one person's events for a day. The
// caller selects the day window.
func BuildDailyPersonReport(events []activity.Event, personID int64) DailyPersonReport {
	rep := DailyPersonReport{
		PersonID:  personID,
		Intervals: make(map[activity.Code]IntervalTotal),
	}
	var lastSeen time.Time

	for _, ev := range events {
		if ev.PersonID != personID {
			continue
		}
		rep.GroupID = ev.GroupID
		if ev.DisplayName != "" && !ev.OccurredAt.Before(lastSeen) {
			rep.DisplayName = ev.DisplayName
			lastSeen = ev.OccurredAt
		}

		switch {
		case ev.Code == activity.CheckIn:
			if rep.FirstIn == nil || ev.OccurredAt.Before(*rep.FirstIn) {
				at := ev.OccurredAt
				rep.FirstIn = &at
			}
		case ev.Code == activity.CheckOut:
			if rep.LastOut == nil || ev.OccurredAt.After(*rep.LastOut) {
				at := ev.OccurredAt
				rep.LastOut = &at
			}
		case ev.IsInterval():
			total := rep.Intervals[ev.Code]
			total.Count++
			total.Duration += ev.Duration
			rep.Intervals[ev.Code] = total
		}
	}

	if rep.FirstIn != nil && rep.LastOut != nil {
		rep.WorkingSpan = rep.LastOut.Sub(*rep.FirstIn)
	}
	return rep
}

// BuildMonthlyPersonReport lists the local dates of one person's leave and
// medical events in chronological order. Two absences on the same day
// produce two entries.
func BuildMonthlyPersonReport(events []activity.Event, personID int64, zone *clock.Zone) MonthlyPersonReport {
	rep := MonthlyPersonReport{
		PersonID: personID,
		Absences: make([]AbsenceDay, 0),
	}

	matched := make([]activity.Event, 0)
	for _, ev := range events {
		if ev.PersonID != personID {
			continue
		}
		rep.GroupID = ev.GroupID
		if ev.DisplayName != "" {
			rep.DisplayName = ev.DisplayName
		}
		if ev.Code == activity.Leave || ev.Code == activity.Medical {
			matched = append(matched, ev)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.Before(matched[j].OccurredAt)
	})
	for _, ev := range matched {
		rep.Absences = append(rep.Absences, AbsenceDay{
			Date: zone.LocalDate(ev.OccurredAt),
			Code: ev.Code,
		})
	}
	return rep
}
