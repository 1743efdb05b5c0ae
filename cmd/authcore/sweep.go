package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authcore/cleanup"
	"github.com/MrEthical07/authcore/internal/app"
)

func newSweepCommand(root *rootOptions) *cobra.Command {
	var enqueue bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one cleanup pass and print the removed counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg.LogFormat, os.Stderr)
			a, err := app.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("authcore: close", slog.Any("error", err))
				}
			}()

			out := cmd.OutOrStdout()
			if enqueue {
				client := asynq.NewClient(a.AsynqRedis())
				defer client.Close()
				info, err := client.EnqueueContext(cmd.Context(), cleanup.NewSweepTask())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "enqueued %s on %s\n", info.ID, info.Queue)
				return nil
			}

			report := a.Engine.NewCleanupScheduler().RunOnce(cmd.Context())
			names := make([]string, 0, len(report.Removed))
			for name := range report.Removed {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "%-16s %d\n", name, report.Removed[name])
			}
			fmt.Fprintf(out, "%-16s %d (%s)\n", "total", report.Total(), report.Duration)
			return report.Err
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "enqueue a cleanup task for a worker instead of sweeping in-process")
	return cmd
}
