// Package metrics exposes Prometheus metrics for signal intake, the state
// machine and report building.
//
// Metrics:
//   - presence_signals_total{code,result}
//   - presence_apply_duration_seconds
//   - presence_intervals_closed_total{code,reason}
//   - presence_interval_duration_seconds{code}
//   - presence_nonpositive_intervals_total{code}
//   - presence_open_sessions
//   - presence_report_duration_seconds{kind}
//   - presence_report_errors_total{kind}
//   - presence_signals_rejected_total{reason}
//   - presence_events_published_total{result}
package metrics

import (
	"errors"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the presence collectors. It implements session.Observer,
// report.Observer and natsbus.Observer, and counts intake rejections.
type Metrics struct {
	SignalsTotal         *prometheus.CounterVec
	ApplyDuration        prometheus.Histogram
	IntervalsClosedTotal *prometheus.CounterVec
	IntervalDuration     *prometheus.HistogramVec
	NonPositiveIntervals *prometheus.CounterVec
	OpenSessions         prometheus.Gauge
	ReportDuration       *prometheus.HistogramVec
	ReportErrorsTotal    *prometheus.CounterVec
	SignalsRejectedTotal *prometheus.CounterVec
	EventsPublishedTotal *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SignalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presence_signals_total",
				Help: "Signals applied to the state machine",
			},
			[]string{"code", "result"},
		),
		ApplyDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "presence_apply_duration_seconds",
				Help:    "Duration of one Apply call including storage writes",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
		),
		IntervalsClosedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presence_intervals_closed_total",
				Help: "Closed break intervals by close reason",
			},
			[]string{"code", "reason"},
		),
		IntervalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "presence_interval_duration_seconds",
				Help:    "Length of closed break intervals",
				Buckets: []float64{60, 300, 600, 900, 1800, 3600, 7200, 14400},
			},
			[]string{"code"},
		),
		NonPositiveIntervals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presence_nonpositive_intervals_total",
				Help: "Closed intervals whose end was not after their start",
			},
			[]string{"code"},
		),
		OpenSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "presence_open_sessions",
				Help: "Breaks currently open across all groups",
			},
		),
		ReportDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "presence_report_duration_seconds",
				Help:    "Duration of report building",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"kind"},
		),
		ReportErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presence_report_errors_total",
				Help: "Reports that failed to build",
			},
			[]string{"kind"},
		),
		SignalsRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presence_signals_rejected_total",
				Help: "Signals rejected before reaching the state machine",
			},
			[]string{"reason"},
		),
		EventsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presence_events_published_total",
				Help: "Events fanned out to the message bus",
			},
			[]string{"result"},
		),
	}
}

// ObserveApply records one Apply call.
func (m *Metrics) ObserveApply(code activity.Code, out *session.Outcome, err error, elapsed time.Duration) {
	m.ApplyDuration.Observe(elapsed.Seconds())
	m.SignalsTotal.WithLabelValues(codeLabel(code), resultLabel(err)).Inc()

	if out == nil || !out.Closed {
		return
	}
	closed := string(out.ClosedCode)
	m.IntervalsClosedTotal.WithLabelValues(closed, string(out.CloseReason)).Inc()
	m.IntervalDuration.WithLabelValues(closed).Observe(out.Duration.Seconds())
	if out.Duration <= 0 {
		m.NonPositiveIntervals.WithLabelValues(closed).Inc()
	}
}

// ObserveOpenSessions sets the open session gauge.
func (m *Metrics) ObserveOpenSessions(n int) {
	m.OpenSessions.Set(float64(n))
}

// ObserveReport records one report build.
func (m *Metrics) ObserveReport(kind string, elapsed time.Duration, err error) {
	m.ReportDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if err != nil {
		m.ReportErrorsTotal.WithLabelValues(kind).Inc()
	}
}

// Rejected counts a signal dropped by intake.
func (m *Metrics) Rejected(reason string) {
	m.SignalsRejectedTotal.WithLabelValues(reason).Inc()
}

// Published counts one bus publish attempt.
func (m *Metrics) Published(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublishedTotal.WithLabelValues(result).Inc()
}

// Unknown codes would otherwise grow label cardinality without bound.
func codeLabel(code activity.Code) string {
	if code.Valid() {
		return string(code)
	}
	return "unknown"
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, session.ErrInvalidSignal):
		return "invalid"
	case errors.Is(err, session.ErrMissingIdentity):
		return "missing_identity"
	case errors.Is(err, session.ErrPersistence):
		return "persistence_error"
	}
	return "error"
}
