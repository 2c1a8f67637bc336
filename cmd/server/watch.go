package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/report"
	"github.com/davidkramnik/telegram-bot-calculation/internal/logging"
	"github.com/davidkramnik/telegram-bot-calculation/internal/natsbus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		groupID int64
		format  string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow events published to NATS",
		Long: `Print events as the server appends them. Requires nats.url.

Without --group every group under the subject prefix is followed.

Examples:
  PRESENCE_NATS_URL=nats://127.0.0.1:4222 presence watch --group -1001
  presence watch -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logging.Sync(logger) }()
			if cfg.NATS.URL == "" {
				return errors.New("nats.url is not configured")
			}
			zone, err := cfg.Zone()
			if err != nil {
				return err
			}

			nc, err := natsbus.Connect(cfg.NATS.URL, logger)
			if err != nil {
				return err
			}
			defer nc.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := cmd.OutOrStdout()
			enc := json.NewEncoder(w)
			logger.Info("watching", zap.String("prefix", cfg.NATS.SubjectPrefix), zap.Int64("group_id", groupID))
			return natsbus.Watch(ctx, nc, cfg.NATS.SubjectPrefix, groupID, func(ev activity.Event) {
				if format == formatJSON {
					_ = enc.Encode(ev)
					return
				}
				fmt.Fprintln(w, formatEvent(ev, zone.In(ev.OccurredAt).Format("2006-01-02 15:04:05")))
			})
		},
	}
	cmd.Flags().Int64Var(&groupID, "group", 0, "group id (default all groups)")
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "output format: text or json")
	return cmd
}

func formatEvent(ev activity.Event, when string) string {
	who := ev.DisplayName
	if who == "" {
		who = fmt.Sprintf("#%d", ev.PersonID)
	}
	if ev.IsInterval() {
		return fmt.Sprintf("%s [%d] %s: %s %s (%s)", when, ev.GroupID, who, ev.Label,
			report.FormatDuration(ev.Duration), ev.CloseReason)
	}
	return fmt.Sprintf("%s [%d] %s: %s", when, ev.GroupID, who, ev.Label)
}
