package report_test

import (
	"testing"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/clock"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/report"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                               "0s",
		40 * time.Second:                "40s",
		15 * time.Minute:                "15m",
		65 * time.Minute:                "1h05m",
		8 * time.Hour:                   "8h00m",
		-2 * time.Minute:                "-2m",
		15*time.Minute + 29*time.Second: "15m",
	}
	for d, want := range cases {
		require.Equal(t, want, report.FormatDuration(d), d.String())
	}
}

func TestFormatDailyPersonReport(t *testing.T) {
	zone, err := clock.LoadZone("Asia/Shanghai")
	require.NoError(t, err)

	events := []activity.Event{
		instant(alice, activity.CheckIn, at(1, 0)),
		interval(alice, activity.Restroom, at(2, 0), at(2, 15)),
		instant(alice, activity.CheckOut, at(9, 0)),
	}
	rep := report.BuildDailyPersonReport(events, alice)
	rep.Date = "2024-03-04"

	require.Equal(t, "p 2024-03-04\nFirst in: 09:00\nLast out: 17:00\nWorking: 8h00m\nRestroom: 1 (15m)\n",
		report.FormatDailyPersonReport(&rep, zone))
}

func TestFormatDailyPersonReport_Missing(t *testing.T) {
	rep := report.DailyPersonReport{PersonID: alice, Date: "2024-03-04"}
	out := report.FormatDailyPersonReport(&rep, clock.UTC())
	require.Contains(t, out, "#7 2024-03-04")
	require.Contains(t, out, "First in: —")
	require.Contains(t, out, "Working: —")
}

func TestFormatGroupReport(t *testing.T) {
	rep := &report.GroupReport{
		Period: report.PeriodDaily,
		Zone:   "UTC",
		Since:  day,
		People: report.Summarize([]activity.Event{
			instant(alice, activity.CheckIn, at(9, 0)),
			interval(alice, activity.Meal, at(12, 0), at(12, 30)),
		}, day),
	}
	require.Equal(t, "Daily report since 2024-03-04 00:00 (UTC)\np: Check in 1, Meal 1 (30m); last 12:30\n",
		report.FormatGroupReport(rep, clock.UTC()))

	rep.People = nil
	require.Contains(t, report.FormatGroupReport(rep, clock.UTC()), "No activity.")
}

func TestFormatMonthlyPersonReport(t *testing.T) {
	rep := &report.MonthlyPersonReport{
		PersonID:    alice,
		DisplayName: "alice",
		Month:       "2024-03",
		Absences:    []report.AbsenceDay{{Date: "2024-03-05", Code: activity.Medical}},
	}
	require.Equal(t, "alice 2024-03 absences: 1\n2024-03-05 Medical leave\n", report.FormatMonthlyPersonReport(rep))
}

func TestFormatOutcome(t *testing.T) {
	require.Equal(t, "alice switched from Restroom to Meal after 5m",
		report.FormatOutcome("alice", alice, &session.Outcome{
			Code: activity.Meal, Closed: true, Opened: true, Superseded: true,
			ClosedCode: activity.Restroom, Duration: 5 * time.Minute,
		}))
	require.Equal(t, "alice: Meal ended after 40m, Check out",
		report.FormatOutcome("alice", alice, &session.Outcome{
			Code: activity.CheckOut, Closed: true, Logged: true,
			ClosedCode: activity.Meal, Duration: 40 * time.Minute,
		}))
	require.Equal(t, "alice: Restroom ended after 15m",
		report.FormatOutcome("alice", alice, &session.Outcome{
			Code: activity.Restroom, Closed: true, ClosedCode: activity.Restroom, Duration: 15 * time.Minute,
		}))
	require.Equal(t, "#7: Errand started",
		report.FormatOutcome("", alice, &session.Outcome{Code: activity.Errand, Opened: true}))
	require.Equal(t, "alice: Check in",
		report.FormatOutcome("alice", alice, &session.Outcome{Code: activity.CheckIn, Logged: true}))
}
