// Package testserver starts the full HTTP stack over an in-memory database
// for integration tests.
package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/clock"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/report"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
	"github.com/davidkramnik/telegram-bot-calculation/internal/mcp"
	"github.com/davidkramnik/telegram-bot-calculation/internal/metrics"
	"github.com/davidkramnik/telegram-bot-calculation/internal/natsbus"
	"github.com/davidkramnik/telegram-bot-calculation/internal/sqlite"
	"github.com/davidkramnik/telegram-bot-calculation/internal/transport"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Options tunes the stack. The zero value serves every group without
// rate limits or NATS.
type Options struct {
	AllowedGroups []int64
	RatePerSecond float64
	Burst         int
	Timezone      string
	// NATS starts an embedded NATS server and publishes every event to it.
	NATS bool
}

// TestServer is a running presence server.
type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Clock    *clock.FakeClock
	Registry *prometheus.Registry
	NATS     *nats.Conn
	Prefix   string
}

// Start is the instant the fake clock starts at: a Monday, 09:00 UTC.
var Start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// New starts the full stack on an httptest server and registers cleanup.
func New(t *testing.T, opts Options) *TestServer {
	t.Helper()

	// Setup database
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	zone, err := clock.LoadZone(opts.Timezone)
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	clk := clock.Fake(Start)
	db.SetClock(clk)
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	ts := &TestServer{
		DB:       db,
		Clock:    clk,
		Registry: registry,
		Prefix:   "presence.test",
	}

	// Setup event log, optionally fanned out to NATS
	var events activity.Log = sqlite.NewEventRepository(db)
	if opts.NATS {
		ts.NATS = startNATS(t)
		bus := natsbus.NewLog(events, ts.NATS, ts.Prefix, logger)
		bus.SetObserver(m)
		events = bus
	}

	// Setup services
	mirror := session.NewMirror(sqlite.NewSessionRepository(db))
	require.NoError(t, mirror.Warm(context.Background()))

	signals := session.NewService(mirror, events, clk, logger)
	signals.SetObserver(m)
	reports := report.NewService(events, zone, clk, logger)
	reports.SetObserver(m)

	allowed := func(id int64) bool {
		if len(opts.AllowedGroups) == 0 {
			return true
		}
		for _, g := range opts.AllowedGroups {
			if g == id {
				return true
			}
		}
		return false
	}

	// HTTP and MCP draw from the same intake buckets.
	limiter := transport.NewLimiter(opts.RatePerSecond, opts.Burst)

	mcpServer := mcp.NewServer(mcp.Config{
		Services:     mcp.Services{Signals: signals, Reports: reports},
		GroupAllowed: allowed,
		Limiter:      limiter,
		Rejections:   m,
		Version:      "test",
		Clock:        clk,
		Logger:       logger,
	})

	handler := transport.NewServer(transport.Options{
		Signals:      signals,
		Reports:      reports,
		GroupAllowed: allowed,
		Limiter:      limiter,
		Rejections:   m,
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		MCP: sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return mcpServer },
			&sdkmcp.StreamableHTTPOptions{SessionTimeout: time.Minute},
		),
		MCPPath: "/mcp",
		Clock:   clk,
		Logger:  logger,
	})
	// Start server
	ts.Server = httptest.NewServer(handler)

	t.Cleanup(func() {
		ts.Server.Close()
		if ts.NATS != nil {
			ts.NATS.Close()
		}
		_ = db.Close()
	})

	return ts
}

// Do sends a JSON request to the server.
func (ts *TestServer) Do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.Server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// Signal posts one signal and requires it to succeed.
func (ts *TestServer) Signal(t *testing.T, groupID, personID int64, code, name string) transport.SignalResponse {
	t.Helper()

	resp := ts.Do(t, http.MethodPost, fmt.Sprintf("/v1/groups/%d/signals", groupID), transport.SignalRequest{
		PersonID:    personID,
		Code:        code,
		DisplayName: name,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out transport.SignalResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func startNATS(t *testing.T) *nats.Conn {
	t.Helper()

	server, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)
	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	nc, err := natsbus.Connect(server.ClientURL(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return nc
}
