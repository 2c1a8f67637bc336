package main

import (
	"fmt"
	"strings"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/report"
	"github.com/spf13/cobra"
)

func newSessionsCmd(root *rootOptions) *cobra.Command {
	var (
		groupID int64
		format  string
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List breaks currently open in a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), root.configPath)
			if err != nil {
				return err
			}
			defer a.close()

			open, err := a.signals.OpenSessions(cmd.Context(), groupID)
			if err != nil {
				return err
			}
			now := appClock.Now()

			var b strings.Builder
			if len(open) == 0 {
				b.WriteString("No open breaks.\n")
			}
			for _, sess := range open {
				name := sess.DisplayName
				if name == "" {
					name = fmt.Sprintf("#%d", sess.PersonID)
				}
				fmt.Fprintf(&b, "%s: %s since %s (%s)\n", name, sess.Code.Label(),
					a.zone.In(sess.StartedAt).Format("15:04"), report.FormatDuration(now.Sub(sess.StartedAt)))
			}
			return render(cmd.OutOrStdout(), format, b.String(), open)
		},
	}
	cmd.Flags().Int64Var(&groupID, "group", 0, "group id (required)")
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}
