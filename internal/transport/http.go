package transport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/clock"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/report"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SignalService applies signals and lists open sessions.
type SignalService interface {
	Apply(ctx context.Context, sig session.Signal) (*session.Outcome, error)
	OpenSessions(ctx context.Context, groupID int64) ([]session.OpenSession, error)
}

// ReportService builds group and member reports.
type ReportService interface {
	Group(ctx context.Context, groupID int64, period report.Period) (*report.GroupReport, error)
	PersonDay(ctx context.Context, groupID, personID int64, day time.Time) (*report.DailyPersonReport, error)
	PersonMonth(ctx context.Context, groupID, personID int64) (*report.MonthlyPersonReport, error)
	Zone() *clock.Zone
}

// RejectionObserver counts signals dropped before the state machine.
type RejectionObserver interface {
	Rejected(reason string)
}

type nopRejections struct{}

func (nopRejections) Rejected(string) {}

// Options wires the HTTP server. Signals and Reports are required.
type Options struct {
	Signals      SignalService
	Reports      ReportService
	GroupAllowed func(int64) bool
	Limiter      *Limiter
	Rejections   RejectionObserver

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// MCP is mounted at MCPPath when set.
	MCP     http.Handler
	MCPPath string

	Clock  clock.Clock
	Logger *zap.Logger
}

// Server wires HTTP handlers.
type Server struct {
	signals    SignalService
	reports    ReportService
	rejections RejectionObserver
	clock      clock.Clock
	logger     *zap.Logger
}

// SignalRequest is the body of POST /v1/groups/{group}/signals.
type SignalRequest struct {
	PersonID    int64      `json:"person_id"`
	Code        string     `json:"code"`
	DisplayName string     `json:"display_name,omitempty"`
	Origin      string     `json:"origin,omitempty"`
	MessageRef  string     `json:"message_ref,omitempty"`
	At          *time.Time `json:"at,omitempty"`
}

// SignalResponse carries the outcome and the rendered reply.
type SignalResponse struct {
	Outcome *session.Outcome `json:"outcome"`
	Message string           `json:"message"`
}

// NewServer creates an HTTP server router with middleware.
func NewServer(opts Options) *chi.Mux {
	if opts.Rejections == nil {
		opts.Rejections = nopRejections{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	srv := &Server{
		signals:    opts.Signals,
		reports:    opts.Reports,
		rejections: opts.Rejections,
		clock:      opts.Clock,
		logger:     opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	if opts.MCP != nil && opts.MCPPath != "" {
		r.Handle(opts.MCPPath, opts.MCP)
	}

	r.Route("/v1/groups/{group}", func(r chi.Router) {
		r.Use(GroupMiddleware(opts.GroupAllowed, opts.Rejections))
		r.With(RateLimitMiddleware(opts.Limiter, opts.Rejections)).Post("/signals", srv.handleSignal)
		r.Get("/sessions", srv.handleSessions)
		r.Get("/reports/{period}", srv.handleGroupReport)
		r.Get("/members/{person}/day", srv.handlePersonDay)
		r.Get("/members/{person}/month", srv.handlePersonMonth)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	groupID, _ := GroupFromContext(r.Context())

	var req SignalRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.rejections.Rejected(CodeMalformed)
		writeError(w, http.StatusBadRequest, CodeMalformed, err.Error())
		return
	}

	// Unparseable codes go through as-is so the state machine rejects them.
	code, err := activity.ParseCode(req.Code)
	if err != nil {
		code = activity.Code(req.Code)
	}
	sig := session.Signal{
		GroupID:     groupID,
		PersonID:    req.PersonID,
		Code:        code,
		DisplayName: req.DisplayName,
		Origin:      activity.Origin(req.Origin),
		MessageRef:  req.MessageRef,
	}
	if req.At != nil {
		sig.At = *req.At
	}

	out, err := s.signals.Apply(r.Context(), sig)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SignalResponse{
		Outcome: out,
		Message: report.FormatOutcome(req.DisplayName, req.PersonID, out),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	groupID, _ := GroupFromContext(r.Context())
	open, err := s.signals.OpenSessions(r.Context(), groupID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group_id": groupID,
		"sessions": open,
	})
}

func (s *Server) handleGroupReport(w http.ResponseWriter, r *http.Request) {
	groupID, _ := GroupFromContext(r.Context())

	period, err := report.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rep, err := s.reports.Group(r.Context(), groupID, period)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsText(r) {
		writeText(w, http.StatusOK, report.FormatGroupReport(rep, s.reports.Zone()))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handlePersonDay(w http.ResponseWriter, r *http.Request) {
	groupID, _ := GroupFromContext(r.Context())
	personID, ok := personParam(w, r)
	if !ok {
		return
	}

	zone := s.reports.Zone()
	day := s.clock.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := zone.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeMalformed, err.Error())
			return
		}
		day = parsed
	}

	rep, err := s.reports.PersonDay(r.Context(), groupID, personID, day)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsText(r) {
		writeText(w, http.StatusOK, report.FormatDailyPersonReport(rep, zone))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handlePersonMonth(w http.ResponseWriter, r *http.Request) {
	groupID, _ := GroupFromContext(r.Context())
	personID, ok := personParam(w, r)
	if !ok {
		return
	}

	rep, err := s.reports.PersonMonth(r.Context(), groupID, personID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsText(r) {
		writeText(w, http.StatusOK, report.FormatMonthlyPersonReport(rep))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, code, err.Error())
}

func personParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	personID, err := strconv.ParseInt(chi.URLParam(r, "person"), 10, 64)
	if err != nil || personID == 0 {
		writeError(w, http.StatusBadRequest, CodeMissingIdentity, "person id must be a non-zero integer")
		return 0, false
	}
	return personID, true
}

func wantsText(r *http.Request) bool {
	return r.URL.Query().Get("format") == "text"
}
