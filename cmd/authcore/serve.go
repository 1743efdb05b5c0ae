package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/authcore/internal/app"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var noCleanup bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API with an in-process cleanup scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, !noCleanup)
		},
	}
	cmd.Flags().BoolVar(&noCleanup, "no-cleanup", false, "do not run the cleanup scheduler (use when a worker process handles it)")
	return cmd
}

func runServe(ctx context.Context, cfg *app.Config, withCleanup bool) error {
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

	handler, err := a.Handler()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("authcore: http listening", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if withCleanup {
		sched := a.Engine.NewCleanupScheduler()
		g.Go(func() error {
			if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("authcore: shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
