package mcp

import (
	"context"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/clock"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/report"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// ServerName is reported in the initialize handshake.
const ServerName = "presence"

// SignalService defines signal operations needed by MCP.
type SignalService interface {
	Apply(ctx context.Context, sig session.Signal) (*session.Outcome, error)
	OpenSessions(ctx context.Context, groupID int64) ([]session.OpenSession, error)
}

// ReportService defines report operations needed by MCP.
type ReportService interface {
	Group(ctx context.Context, groupID int64, period report.Period) (*report.GroupReport, error)
	PersonDay(ctx context.Context, groupID, personID int64, day time.Time) (*report.DailyPersonReport, error)
	PersonMonth(ctx context.Context, groupID, personID int64) (*report.MonthlyPersonReport, error)
	Zone() *clock.Zone
}

// IntakeLimiter throttles signals per group. The HTTP API and MCP share
// one so neither path can be used to bypass the other's limit.
type IntakeLimiter interface {
	Allow(groupID int64) bool
}

// RejectionObserver counts signals refused before reaching the state machine.
type RejectionObserver interface {
	Rejected(reason string)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Signals SignalService
	Reports ReportService
}

// Config contains server configuration.
type Config struct {
	Services Services
	// GroupAllowed restricts the groups tools may touch. Nil allows all.
	GroupAllowed func(int64) bool
	// Limiter throttles apply_signal per group. Nil allows everything.
	Limiter    IntakeLimiter
	Rejections RejectionObserver
	Version    string
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Rejections == nil {
		cfg.Rejections = nopRejections{}
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    ServerName,
		Version: cfg.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	// Register tools
	t := &tools{
		signals:    cfg.Services.Signals,
		reports:    cfg.Services.Reports,
		allowed:    cfg.GroupAllowed,
		limiter:    cfg.Limiter,
		rejections: cfg.Rejections,
		clock:      cfg.Clock,
	}
	t.register(server)

	return server
}

type nopRejections struct{}

func (nopRejections) Rejected(string) {}
