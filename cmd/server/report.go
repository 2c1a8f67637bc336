package main

import (
	"fmt"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/report"
	"github.com/spf13/cobra"
)

func newReportCmd(root *rootOptions) *cobra.Command {
	var (
		groupID  int64
		personID int64
		date     string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "report <daily|weekly|monthly|day|month>",
		Short: "Print a group or member report",
		Long: `Print a report built from the event log.

daily, weekly and monthly summarize every member of --group since the start
of the current local day, week or month. day and month describe one
--person: their working day (optionally --date YYYY-MM-DD) or their leave
and medical days this month.

Examples:
  presence report daily --group -1001
  presence report weekly --group -1001 -o yaml
  presence report day --group -1001 --person 42 --date 2026-03-02`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"daily", "weekly", "monthly", "day", "month"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind := args[0]

			if (kind == "day" || kind == "month") && personID == 0 {
				return fmt.Errorf("report %s requires --person", kind)
			}
			var period report.Period
			if kind != "day" && kind != "month" {
				p, err := report.ParsePeriod(kind)
				if err != nil {
					return err
				}
				period = p
			}

			a, err := newApp(ctx, root.configPath)
			if err != nil {
				return err
			}
			defer a.close()

			w := cmd.OutOrStdout()
			switch kind {
			case "day":
				day := a.zone.In(appClock.Now())
				if date != "" {
					day, err = a.zone.ParseDate(date)
					if err != nil {
						return err
					}
				}
				rep, err := a.reports.PersonDay(ctx, groupID, personID, day)
				if err != nil {
					return err
				}
				return render(w, format, report.FormatDailyPersonReport(rep, a.zone), rep)
			case "month":
				rep, err := a.reports.PersonMonth(ctx, groupID, personID)
				if err != nil {
					return err
				}
				return render(w, format, report.FormatMonthlyPersonReport(rep), rep)
			default:
				rep, err := a.reports.Group(ctx, groupID, period)
				if err != nil {
					return err
				}
				return render(w, format, report.FormatGroupReport(rep, a.zone), rep)
			}
		},
	}
	cmd.Flags().Int64Var(&groupID, "group", 0, "group id (required)")
	cmd.Flags().Int64Var(&personID, "person", 0, "member id for day and month reports")
	cmd.Flags().StringVar(&date, "date", "", "local date YYYY-MM-DD for day reports (default today)")
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}
