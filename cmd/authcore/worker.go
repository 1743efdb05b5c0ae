package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authcore/cleanup"
	"github.com/MrEthical07/authcore/internal/app"
)

func newWorkerCommand(root *rootOptions) *cobra.Command {
	var (
		concurrency int
		noSchedule  bool
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process cleanup tasks from the asynq queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, cfg, concurrency, !noSchedule)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "number of tasks processed in parallel")
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "process tasks without registering the periodic cleanup")
	return cmd
}

func runWorker(ctx context.Context, cfg *app.Config, concurrency int, withSchedule bool) error {
	logger := app.NewLogger(cfg.LogFormat, os.Stdout)

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("authcore: close", slog.Any("error", err))
		}
	}()

	redisOpt := a.AsynqRedis()
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
	})
	mux := asynq.NewServeMux()
	a.Engine.NewCleanupScheduler().Register(mux)

	var scheduler *asynq.Scheduler
	if withSchedule {
		scheduler = asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
		id, err := cleanup.RegisterPeriodic(scheduler, cfg.CleanupCron)
		if err != nil {
			return err
		}
		logger.Info("authcore: cleanup scheduled", slog.String("entry", id), slog.String("cron", cfg.CleanupCron))
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Shutdown()
	}

	if err := srv.Start(mux); err != nil {
		return err
	}
	<-ctx.Done()
	srv.Shutdown()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}
