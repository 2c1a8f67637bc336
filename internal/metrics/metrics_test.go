package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveApply(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveApply(activity.Meal, &session.Outcome{Code: activity.Meal, Opened: true}, nil, time.Millisecond)
	m.ObserveApply(activity.Meal, &session.Outcome{
		Code: activity.Meal, Closed: true, ClosedCode: activity.Meal,
		CloseReason: activity.ReasonRepeat, Duration: 30 * time.Minute,
	}, nil, time.Millisecond)
	m.ObserveApply(activity.Restroom, &session.Outcome{
		Code: activity.Restroom, Closed: true, ClosedCode: activity.Restroom,
		CloseReason: activity.ReasonRepeat, Duration: -time.Minute,
	}, nil, time.Millisecond)
	m.ObserveApply("nap", nil, fmt.Errorf("%w: nap", session.ErrInvalidSignal), time.Millisecond)
	m.ObserveApply(activity.CheckIn, nil, fmt.Errorf("%w: disk", session.ErrPersistence), time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("meal", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("unknown", "invalid")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("check_in", "persistence_error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.IntervalsClosedTotal.WithLabelValues("meal", "repeat")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.NonPositiveIntervals.WithLabelValues("restroom")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.NonPositiveIntervals.WithLabelValues("meal")))
}

func TestGaugesAndCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveOpenSessions(3)
	m.ObserveReport("daily", time.Millisecond, nil)
	m.ObserveReport("daily", time.Millisecond, errors.New("boom"))
	m.Rejected("rate_limited")
	m.Published(nil)
	m.Published(errors.New("no responders"))

	require.Equal(t, 3.0, testutil.ToFloat64(m.OpenSessions))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ReportErrorsTotal.WithLabelValues("daily")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SignalsRejectedTotal.WithLabelValues("rate_limited")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("error")))

	count, err := testutil.GatherAndCount(reg, "presence_open_sessions")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
