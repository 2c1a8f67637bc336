package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/davidkramnik/telegram-bot-calculation/internal/clock"
	"github.com/davidkramnik/telegram-bot-calculation/internal/config"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/report"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
	"github.com/davidkramnik/telegram-bot-calculation/internal/logging"
	"github.com/davidkramnik/telegram-bot-calculation/internal/metrics"
	"github.com/davidkramnik/telegram-bot-calculation/internal/natsbus"
	"github.com/davidkramnik/telegram-bot-calculation/internal/sqlite"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// appClock drives every service built by newApp.
var appClock clock.Clock = clock.Real()

// app holds everything a command needs. Build it with newApp and release
// it with close.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *sqlite.DB
	nc       *nats.Conn
	zone     *clock.Zone
	events   activity.Log
	signals  *session.Service
	reports  *report.Service
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

func loadConfig(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("logger error: %w", err)
	}
	return cfg, logger, nil
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	zone, err := a.cfg.Zone()
	if err != nil {
		return err
	}
	a.zone = zone

	if err := ensureDBDir(a.cfg.DB.Path); err != nil {
		return fmt.Errorf("failed to prepare database path: %w", err)
	}
	// Open the database and bring the schema up to date
	db, err := sqlite.New(a.cfg.DB.Path)
	if err != nil {
		return err
	}
	a.db = db
	db.SetClock(appClock)
	if err := db.RunMigrations(); err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)

	// Publish every appended event when a NATS URL is configured
	var events activity.Log = sqlite.NewEventRepository(db)
	if a.cfg.NATS.URL != "" {
		nc, err := natsbus.Connect(a.cfg.NATS.URL, a.logger)
		if err != nil {
			return err
		}
		a.nc = nc
		bus := natsbus.NewLog(events, nc, a.cfg.NATS.SubjectPrefix, a.logger)
		bus.SetObserver(a.metrics)
		events = bus
	}
	a.events = events

	// Rebuild the open-session index from the store
	mirror := session.NewMirror(sqlite.NewSessionRepository(db))
	if err := mirror.Warm(ctx); err != nil {
		return err
	}

	// Create services
	a.signals = session.NewService(mirror, events, appClock, a.logger.Named("session"))
	a.signals.SetObserver(a.metrics)
	a.reports = report.NewService(events, zone, appClock, a.logger.Named("report"))
	a.reports.SetObserver(a.metrics)

	a.logger.Debug("app ready",
		zap.String("db", a.cfg.DB.Path),
		zap.String("timezone", zone.Name()),
		zap.Int("open_sessions", mirror.Len()),
		zap.Bool("nats", a.nc != nil),
	)
	return nil
}

func (a *app) close() {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.logger.Warn("nats drain", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = logging.Sync(a.logger)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
