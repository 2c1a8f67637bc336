package activity_test

import (
	"testing"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/stretchr/testify/require"
)

func TestCodes_IntervalPartition(t *testing.T) {
	intervals := 0
	for _, c := range activity.Codes() {
		require.True(t, c.Valid(), c)
		if c.IsInterval() {
			intervals++
		}
	}
	require.Equal(t, len(activity.IntervalCodes()), intervals)
	require.Len(t, activity.Codes(), 7)
	require.False(t, activity.Code("nap").Valid())
}

func TestParseCode(t *testing.T) {
	cases := map[string]activity.Code{
		"check_in":      activity.CheckIn,
		"Check in":      activity.CheckIn,
		"/in":           activity.CheckIn,
		"OUT":           activity.CheckOut,
		"wc":            activity.Restroom,
		" lunch ":       activity.Meal,
		"errand":        activity.Errand,
		"out errand":    activity.Errand,
		"leave":         activity.Leave,
		"Medical leave": activity.Medical,
		"sick":          activity.Medical,
	}
	for raw, want := range cases {
		got, err := activity.ParseCode(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "   ", "/", "dance"} {
		_, err := activity.ParseCode(raw)
		require.ErrorIs(t, err, activity.ErrUnknownCode, raw)
	}
}

func TestCodes_ReturnsCopy(t *testing.T) {
	codes := activity.Codes()
	codes[0] = "mutated"
	require.Equal(t, activity.CheckIn, activity.Codes()[0])
}
