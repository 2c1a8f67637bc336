package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/mcp"
	"github.com/davidkramnik/telegram-bot-calculation/internal/transport"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	transportHTTP  = "http"
	transportStdio = "stdio"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and MCP server",
		Long: `Run the presence server.

In http mode the signal and report API, /metrics and the MCP endpoint share
one listener. In stdio mode only MCP is served, over stdin and stdout.

Examples:
  presence serve
  presence serve --transport stdio
  PRESENCE_SERVER_PORT=9090 presence serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, root.configPath)
			if err != nil {
				return err
			}
			defer a.close()

			switch mode {
			case transportHTTP:
				return runHTTP(ctx, a)
			case transportStdio:
				return runStdio(ctx, a)
			default:
				return fmt.Errorf("unknown transport %q", mode)
			}
		},
	}
	cmd.Flags().StringVar(&mode, "transport", transportHTTP, "http or stdio")
	return cmd
}

// newMCPServer builds the MCP server. limiter is shared with the HTTP API
// when both are served.
func newMCPServer(a *app, limiter *transport.Limiter) *sdkmcp.Server {
	return mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Signals: a.signals,
			Reports: a.reports,
		},
		GroupAllowed: a.cfg.GroupAllowed,
		Limiter:      limiter,
		Rejections:   a.metrics,
		Version:      version,
		Clock:        appClock,
		Logger:       a.logger.Named("mcp"),
	})
}

func runStdio(ctx context.Context, a *app) error {
	a.logger.Info("starting stdio transport")
	limiter := transport.NewLimiter(a.cfg.Intake.RatePerSecond, a.cfg.Intake.Burst)
	if err := newMCPServer(a, limiter).Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func runHTTP(ctx context.Context, a *app) error {
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	limiter := transport.NewLimiter(a.cfg.Intake.RatePerSecond, a.cfg.Intake.Burst)
	opts := transport.Options{
		Signals:      a.signals,
		Reports:      a.reports,
		GroupAllowed: a.cfg.GroupAllowed,
		Limiter:      limiter,
		Rejections:   a.metrics,
		Metrics:      promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		Clock:        appClock,
		Logger:       a.logger.Named("http"),
	}
	if a.cfg.MCP.Enabled {
		mcpServer := newMCPServer(a, limiter)
		opts.MCPPath = a.cfg.MCP.Path
		opts.MCP = sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return mcpServer },
			&sdkmcp.StreamableHTTPOptions{
				SessionTimeout: 30 * time.Minute,
			},
		)
	}

	addr := a.cfg.Server.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           transport.NewServer(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server listening",
			zap.String("addr", addr),
			zap.Bool("mcp", a.cfg.MCP.Enabled),
			zap.String("timezone", a.zone.Name()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})
	return g.Wait()
}
