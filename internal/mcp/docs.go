package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `presence tracks attendance in chat groups. Every member is either idle or on one break.

Tools:
- apply_signal: record one activity code for a member. The reply says whether a break started, ended or was switched.
- open_sessions: list breaks currently open in a group.
- group_report: per-member counts and break totals since the start of the day, week or month.
- member_day: first check in, last check out, working span and break totals for one member and day.
- member_month: leave and medical days for one member in the current month.

Times are evaluated in the server's configured timezone. Read presence://docs/codes before sending signals.
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "presence://docs/codes",
		Name:        "docs_codes",
		Title:       "Activity codes",
		Description: "The activity codes apply_signal accepts and what each does to an open break.",
		Content:     codesDoc(),
	},
	{
		URI:         "presence://docs/reports",
		Name:        "docs_reports",
		Title:       "Reports",
		Description: "Report windows and how durations are attributed.",
		Content: `# Reports

- daily: from local midnight until now
- weekly: from Monday's local midnight until now
- monthly: from the first of the month until now

A break is counted in the window where it ended. Its whole duration is
attributed there, even when it started before the window opened.

A working span is last check out minus first check in. It is empty when
either is missing and can be negative when the check out came first.
`,
	},
}

func codesDoc() string {
	var b strings.Builder
	b.WriteString("# Activity codes\n\n")
	b.WriteString("| code | label | kind |\n|---|---|---|\n")
	for _, code := range activity.Codes() {
		kind := "instant"
		if code.IsInterval() {
			kind = "break"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", code, code.Label(), kind)
	}
	b.WriteString(`
Rules:
- A break code while idle starts that break.
- The same break code again ends it.
- A different break code ends the current break and starts the new one.
- check_out ends any open break, then logs the check out.
- check_in, leave and medical never touch an open break.
`)
	return b.String()
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
