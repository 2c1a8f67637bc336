package main

import (
	"fmt"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/report"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
	"github.com/spf13/cobra"
)

func newSignalCmd(root *rootOptions) *cobra.Command {
	var (
		groupID  int64
		personID int64
		name     string
		at       string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "signal <code>",
		Short: "Apply one activity code for a member",
		Long: `Apply one activity code to a member's state directly against the database.

Codes: check_in, check_out, restroom, meal, errand, leave, medical. Labels
and chat aliases such as "wc" or "/lunch" are accepted too.

Examples:
  presence signal --group -1001 --person 42 --name Ann check_in
  presence signal --group -1001 --person 42 meal --at 2026-03-02T12:00:00+08:00`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := activity.ParseCode(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q", err, args[0])
			}
			sig := session.Signal{
				GroupID:     groupID,
				PersonID:    personID,
				Code:        code,
				DisplayName: name,
				Origin:      activity.OriginText,
			}
			if at != "" {
				sig.At, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}
			a, err := newApp(cmd.Context(), root.configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.cfg.GroupAllowed(groupID) {
				a.metrics.Rejected("group_not_allowed")
				return fmt.Errorf("group %d is not allowed", groupID)
			}

			out, err := a.signals.Apply(cmd.Context(), sig)
			if err != nil {
				return err
			}
			text := report.FormatOutcome(name, personID, out) + "\n"
			return render(cmd.OutOrStdout(), format, text, out)
		},
	}
	cmd.Flags().Int64Var(&groupID, "group", 0, "group id (required)")
	cmd.Flags().Int64Var(&personID, "person", 0, "member id (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&at, "at", "", "RFC3339 time of the signal (default now)")
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("person")
	return cmd
}
