package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/report"
	"github.com/davidkramnik/telegram-bot-calculation/internal/natsbus"
	"github.com/davidkramnik/telegram-bot-calculation/internal/testserver"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const group = int64(-1001)

func TestWorkingDay(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})

	ts.Signal(t, group, 1, "check_in", "Ann")
	ts.Clock.Advance(2 * time.Hour)
	ts.Signal(t, group, 1, "restroom", "Ann")
	ts.Clock.Advance(10 * time.Minute)
	switched := ts.Signal(t, group, 1, "meal", "Ann")
	assert.True(t, switched.Outcome.Superseded)
	assert.Equal(t, "Ann switched from Restroom to Meal after 10m", switched.Message)
	ts.Clock.Advance(40 * time.Minute)
	ts.Signal(t, group, 1, "meal", "Ann")
	ts.Clock.Advance(5*time.Hour + 10*time.Minute)
	ts.Signal(t, group, 1, "errand", "Ann")
	ts.Clock.Advance(20 * time.Minute)
	out := ts.Signal(t, group, 1, "check_out", "Ann")
	assert.Equal(t, "Ann: Errand ended after 20m, Check out", out.Message)

	resp := ts.Do(t, http.MethodGet, fmt.Sprintf("/v1/groups/%d/members/1/day", group), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var day report.DailyPersonReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&day))
	assert.Equal(t, 8*time.Hour+20*time.Minute, day.WorkingSpan)
	assert.Equal(t, report.IntervalTotal{Count: 1, Duration: 10 * time.Minute}, day.Intervals[activity.Restroom])
	assert.Equal(t, report.IntervalTotal{Count: 1, Duration: 40 * time.Minute}, day.Intervals[activity.Meal])
	assert.Equal(t, report.IntervalTotal{Count: 1, Duration: 20 * time.Minute}, day.Intervals[activity.Errand])

	resp = ts.Do(t, http.MethodGet, fmt.Sprintf("/v1/groups/%d/reports/daily", group), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep report.GroupReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	require.Len(t, rep.People, 1)
	assert.Equal(t, 1, rep.People[0].Counts[activity.CheckIn])
	assert.Equal(t, 1, rep.People[0].Counts[activity.CheckOut])
	assert.Equal(t, 10*time.Minute, rep.People[0].Durations[activity.Restroom])
}

func TestGroupsAreIsolated(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})

	ts.Signal(t, group, 1, "meal", "Ann")
	other := ts.Signal(t, group-1, 1, "meal", "Ann")
	assert.True(t, other.Outcome.Opened, "same person in another group has separate state")

	resp := ts.Do(t, http.MethodGet, fmt.Sprintf("/v1/groups/%d/reports/daily", group-1), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep report.GroupReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.Empty(t, rep.People, "open breaks are not reported until they close")
}

func TestConcurrentSignalsFromManyPeople(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})

	const people = 20
	var wg sync.WaitGroup
	errs := make(chan error, people*2)
	for p := int64(1); p <= people; p++ {
		wg.Add(1)
		go func(personID int64) {
			defer wg.Done()
			for _, code := range []string{"restroom", "restroom"} {
				body := strings.NewReader(fmt.Sprintf(`{"person_id":%d,"code":%q}`, personID, code))
				resp, err := http.Post(ts.Server.URL+fmt.Sprintf("/v1/groups/%d/signals", group), "application/json", body)
				if err != nil {
					errs <- err
					return
				}
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					errs <- fmt.Errorf("person %d: status %d", personID, resp.StatusCode)
				}
			}
		}(p)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	resp := ts.Do(t, http.MethodGet, fmt.Sprintf("/v1/groups/%d/reports/daily", group), nil)
	var rep report.GroupReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	require.Len(t, rep.People, people)
	for _, p := range rep.People {
		assert.Equal(t, 1, p.Counts[activity.Restroom], "person %d", p.PersonID)
	}
}

func TestIntakeLimits(t *testing.T) {
	ts := testserver.New(t, testserver.Options{
		AllowedGroups: []int64{group},
		RatePerSecond: 0.001,
		Burst:         2,
	})

	ts.Signal(t, group, 1, "in", "")
	ts.Signal(t, group, 2, "in", "")

	resp := ts.Do(t, http.MethodPost, fmt.Sprintf("/v1/groups/%d/signals", group), map[string]any{"person_id": 3, "code": "in"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp = ts.Do(t, http.MethodPost, "/v1/groups/5/signals", map[string]any{"person_id": 3, "code": "in"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.Do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `presence_signals_rejected_total{reason="rate_limited"} 1`)
	assert.Contains(t, string(body), `presence_signals_rejected_total{reason="group_not_allowed"} 1`)
	assert.Contains(t, string(body), `presence_signals_total{code="check_in",result="ok"} 2`)
}

func TestMCPOverHTTP(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{
		Endpoint: ts.Server.URL + "/mcp",
	}, nil)
	require.NoError(t, err)
	defer session.Close()

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "apply_signal",
		Arguments: map[string]any{"group_id": group, "person_id": 7, "code": "errand", "display_name": "Bo"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, "apply_signal returned error: %v", result)

	// The HTTP API sees the break opened through MCP.
	resp := ts.Do(t, http.MethodGet, fmt.Sprintf("/v1/groups/%d/sessions", group), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"display_name":"Bo"`)
}

func TestMCPSharesIntakeLimit(t *testing.T) {
	ts := testserver.New(t, testserver.Options{RatePerSecond: 0.001, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Spend the group's only token over HTTP
	ts.Signal(t, group, 1, "in", "Ann")

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{Endpoint: ts.Server.URL + "/mcp"}, nil)
	require.NoError(t, err)
	defer session.Close()

	// The MCP tool draws from the same bucket
	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "apply_signal",
		Arguments: map[string]any{"group_id": group, "person_id": 2, "code": "in"},
	})
	require.NoError(t, err)
	require.True(t, result.IsError)

	// Verify the rejection was counted
	resp := ts.Do(t, http.MethodGet, "/metrics", nil)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `presence_signals_rejected_total{reason="rate_limited"} 1`)
}

func TestEventsFanOutToNATS(t *testing.T) {
	ts := testserver.New(t, testserver.Options{NATS: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan activity.Event, 8)
	watching := make(chan error, 1)
	go func() {
		watching <- natsbus.Watch(ctx, ts.NATS, ts.Prefix, group, func(ev activity.Event) {
			select {
			case received <- ev:
			default:
			}
		})
	}()

	// The subscription starts asynchronously; keep signalling until the
	// first event arrives.
	deadline := time.After(5 * time.Second)
	for got := false; !got; {
		ts.Signal(t, group, 1, "check_in", "Ann")
		select {
		case ev := <-received:
			assert.Equal(t, activity.CheckIn, ev.Code)
			assert.Equal(t, int64(1), ev.PersonID)
			assert.Equal(t, "Ann", ev.DisplayName)
			got = true
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event received from NATS")
		}
	}

	cancel()
	require.NoError(t, <-watching)
}
