package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/clock"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/report"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type tools struct {
	signals    SignalService
	reports    ReportService
	allowed    func(int64) bool
	limiter    IntakeLimiter
	rejections RejectionObserver
	clock      clock.Clock
}

// Rejection reasons, matching the HTTP API's error codes.
const (
	reasonGroupNotAllowed = "group_not_allowed"
	reasonRateLimited     = "rate_limited"
)

type applySignalInput struct {
	GroupID     int64  `json:"group_id" jsonschema:"Chat group id"`
	PersonID    int64  `json:"person_id" jsonschema:"Member id within the group"`
	Code        string `json:"code" jsonschema:"Activity code, label or alias, e.g. check_in, meal, /wc"`
	DisplayName string `json:"display_name,omitempty" jsonschema:"Name shown in reports"`
	At          string `json:"at,omitempty" jsonschema:"RFC3339 time of the signal; defaults to now"`
}

type applySignalOutput struct {
	Message         string  `json:"message" jsonschema:"Human readable reply"`
	Logged          bool    `json:"logged"`
	Opened          bool    `json:"opened"`
	Closed          bool    `json:"closed"`
	Superseded      bool    `json:"superseded"`
	ClosedCode      string  `json:"closed_code,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty" jsonschema:"Length of the closed break"`
	OpenCode        string  `json:"open_code,omitempty" jsonschema:"Break open after the signal"`
}

type groupInput struct {
	GroupID int64 `json:"group_id" jsonschema:"Chat group id"`
}

type openSessionItem struct {
	PersonID    int64  `json:"person_id"`
	DisplayName string `json:"display_name"`
	Code        string `json:"code"`
	StartedAt   string `json:"started_at"`
}

type openSessionsOutput struct {
	Sessions []openSessionItem `json:"sessions"`
}

type groupReportInput struct {
	GroupID int64  `json:"group_id" jsonschema:"Chat group id"`
	Period  string `json:"period" jsonschema:"daily, weekly or monthly"`
}

type personSummaryItem struct {
	PersonID         int64              `json:"person_id"`
	DisplayName      string             `json:"display_name"`
	Counts           map[string]int     `json:"counts"`
	DurationsSeconds map[string]float64 `json:"durations_seconds"`
	LastActivity     string             `json:"last_activity"`
}

type groupReportOutput struct {
	Text   string              `json:"text" jsonschema:"Rendered report"`
	Since  string              `json:"since"`
	Zone   string              `json:"zone"`
	People []personSummaryItem `json:"people"`
}

type memberDayInput struct {
	GroupID  int64  `json:"group_id" jsonschema:"Chat group id"`
	PersonID int64  `json:"person_id" jsonschema:"Member id within the group"`
	Date     string `json:"date,omitempty" jsonschema:"Local date YYYY-MM-DD; defaults to today"`
}

type memberDayOutput struct {
	Text               string  `json:"text" jsonschema:"Rendered report"`
	Date               string  `json:"date"`
	FirstIn            string  `json:"first_in,omitempty"`
	LastOut            string  `json:"last_out,omitempty"`
	WorkingSpanSeconds float64 `json:"working_span_seconds"`
}

type memberMonthInput struct {
	GroupID  int64 `json:"group_id" jsonschema:"Chat group id"`
	PersonID int64 `json:"person_id" jsonschema:"Member id within the group"`
}

type absenceItem struct {
	Date string `json:"date"`
	Code string `json:"code"`
}

type memberMonthOutput struct {
	Text     string        `json:"text" jsonschema:"Rendered report"`
	Month    string        `json:"month"`
	Absences []absenceItem `json:"absences"`
}

func (t *tools) register(server *sdkmcp.Server) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "apply_signal",
		Description: "Record one activity code for a group member and report what it did to their open break.",
	}, t.applySignal)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "open_sessions",
		Description: "List the breaks currently open in a group.",
	}, t.openSessions)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "group_report",
		Description: "Summarize every member's activity since the start of the day, week or month.",
	}, t.groupReport)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "member_day",
		Description: "Show one member's first check in, last check out, working span and break totals for a day.",
	}, t.memberDay)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "member_month",
		Description: "List one member's leave and medical days in the current month.",
	}, t.memberMonth)
}

func (t *tools) checkGroup(groupID int64) error {
	if groupID == 0 {
		return MapError(session.ErrMissingIdentity)
	}
	if t.allowed != nil && !t.allowed(groupID) {
		t.rejections.Rejected(reasonGroupNotAllowed)
		return MapError(fmt.Errorf("%w: %d", errGroupNotAllowed, groupID))
	}
	return nil
}

func (t *tools) applySignal(ctx context.Context, _ *sdkmcp.CallToolRequest, in applySignalInput) (*sdkmcp.CallToolResult, applySignalOutput, error) {
	if err := t.checkGroup(in.GroupID); err != nil {
		return nil, applySignalOutput{}, err
	}
	// Same bucket as POST /signals.
	if t.limiter != nil && !t.limiter.Allow(in.GroupID) {
		t.rejections.Rejected(reasonRateLimited)
		return nil, applySignalOutput{}, MapError(fmt.Errorf("%w: group %d", errRateLimited, in.GroupID))
	}
	code, err := activity.ParseCode(in.Code)
	if err != nil {
		return nil, applySignalOutput{}, MapError(fmt.Errorf("%w: %q", err, in.Code))
	}
	sig := session.Signal{
		GroupID:     in.GroupID,
		PersonID:    in.PersonID,
		Code:        code,
		DisplayName: in.DisplayName,
		Origin:      activity.OriginMention,
	}
	if in.At != "" {
		at, err := time.Parse(time.RFC3339, in.At)
		if err != nil {
			return nil, applySignalOutput{}, fmt.Errorf("invalid at: %w", err)
		}
		sig.At = at
	}

	out, err := t.signals.Apply(ctx, sig)
	if err != nil {
		return nil, applySignalOutput{}, MapError(err)
	}

	result := applySignalOutput{
		Message:    report.FormatOutcome(in.DisplayName, in.PersonID, out),
		Logged:     out.Logged,
		Opened:     out.Opened,
		Closed:     out.Closed,
		Superseded: out.Superseded,
	}
	if out.Closed {
		result.ClosedCode = string(out.ClosedCode)
		result.DurationSeconds = out.Duration.Seconds()
	}
	if out.Session != nil {
		result.OpenCode = string(out.Session.Code)
	}
	return textResult(result.Message), result, nil
}

func (t *tools) openSessions(ctx context.Context, _ *sdkmcp.CallToolRequest, in groupInput) (*sdkmcp.CallToolResult, openSessionsOutput, error) {
	if err := t.checkGroup(in.GroupID); err != nil {
		return nil, openSessionsOutput{}, err
	}
	open, err := t.signals.OpenSessions(ctx, in.GroupID)
	if err != nil {
		return nil, openSessionsOutput{}, MapError(err)
	}
	zone := t.reports.Zone()

	result := openSessionsOutput{Sessions: make([]openSessionItem, 0, len(open))}
	for _, sess := range open {
		result.Sessions = append(result.Sessions, openSessionItem{
			PersonID:    sess.PersonID,
			DisplayName: sess.DisplayName,
			Code:        string(sess.Code),
			StartedAt:   zone.In(sess.StartedAt).Format(time.RFC3339),
		})
	}
	return textResult(fmt.Sprintf("%d open", len(open))), result, nil
}

func (t *tools) groupReport(ctx context.Context, _ *sdkmcp.CallToolRequest, in groupReportInput) (*sdkmcp.CallToolResult, groupReportOutput, error) {
	if err := t.checkGroup(in.GroupID); err != nil {
		return nil, groupReportOutput{}, err
	}
	period, err := report.ParsePeriod(in.Period)
	if err != nil {
		return nil, groupReportOutput{}, MapError(err)
	}
	rep, err := t.reports.Group(ctx, in.GroupID, period)
	if err != nil {
		return nil, groupReportOutput{}, MapError(err)
	}

	zone := t.reports.Zone()
	result := groupReportOutput{
		Text:   report.FormatGroupReport(rep, zone),
		Since:  zone.In(rep.Since).Format(time.RFC3339),
		Zone:   rep.Zone,
		People: make([]personSummaryItem, 0, len(rep.People)),
	}
	for _, p := range rep.People {
		item := personSummaryItem{
			PersonID:         p.PersonID,
			DisplayName:      p.DisplayName,
			Counts:           make(map[string]int, len(p.Counts)),
			DurationsSeconds: make(map[string]float64, len(p.Durations)),
			LastActivity:     zone.In(p.LastActivity).Format(time.RFC3339),
		}
		for code, n := range p.Counts {
			item.Counts[string(code)] = n
		}
		for code, d := range p.Durations {
			item.DurationsSeconds[string(code)] = d.Seconds()
		}
		result.People = append(result.People, item)
	}
	return textResult(result.Text), result, nil
}

func (t *tools) memberDay(ctx context.Context, _ *sdkmcp.CallToolRequest, in memberDayInput) (*sdkmcp.CallToolResult, memberDayOutput, error) {
	if err := t.checkGroup(in.GroupID); err != nil {
		return nil, memberDayOutput{}, err
	}
	if in.PersonID == 0 {
		return nil, memberDayOutput{}, MapError(session.ErrMissingIdentity)
	}

	zone := t.reports.Zone()
	day := t.clock.Now()
	if in.Date != "" {
		parsed, err := zone.ParseDate(in.Date)
		if err != nil {
			return nil, memberDayOutput{}, err
		}
		day = parsed
	}

	rep, err := t.reports.PersonDay(ctx, in.GroupID, in.PersonID, day)
	if err != nil {
		return nil, memberDayOutput{}, MapError(err)
	}
	result := memberDayOutput{
		Text:               report.FormatDailyPersonReport(rep, zone),
		Date:               rep.Date,
		WorkingSpanSeconds: rep.WorkingSpan.Seconds(),
	}
	if rep.FirstIn != nil {
		result.FirstIn = zone.In(*rep.FirstIn).Format(time.RFC3339)
	}
	if rep.LastOut != nil {
		result.LastOut = zone.In(*rep.LastOut).Format(time.RFC3339)
	}
	return textResult(result.Text), result, nil
}

func (t *tools) memberMonth(ctx context.Context, _ *sdkmcp.CallToolRequest, in memberMonthInput) (*sdkmcp.CallToolResult, memberMonthOutput, error) {
	if err := t.checkGroup(in.GroupID); err != nil {
		return nil, memberMonthOutput{}, err
	}
	if in.PersonID == 0 {
		return nil, memberMonthOutput{}, MapError(session.ErrMissingIdentity)
	}

	rep, err := t.reports.PersonMonth(ctx, in.GroupID, in.PersonID)
	if err != nil {
		return nil, memberMonthOutput{}, MapError(err)
	}
	result := memberMonthOutput{
		Text:     report.FormatMonthlyPersonReport(rep),
		Month:    rep.Month,
		Absences: make([]absenceItem, 0, len(rep.Absences)),
	}
	for _, day := range rep.Absences {
		result.Absences = append(result.Absences, absenceItem{Date: day.Date, Code: string(day.Code)})
	}
	return textResult(result.Text), result, nil
}

func textResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}},
	}
}
