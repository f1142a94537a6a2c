package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"slotkeeper/backend/internal/config"
	"slotkeeper/backend/internal/notify"
)

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued booking confirmations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load("worker")
			if err != nil {
				return err
			}
			return runWorker(cmd.Context(), cfg, log, concurrency)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 10, "number of confirmations processed at once")
	return cmd
}

func runWorker(ctx context.Context, cfg config.Config, log *slog.Logger, concurrency int) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.NotifyRedisDB},
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{cfg.NotifyQueue: 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Warn("task failed", slog.String("type", task.Type()), slog.Any("err", err))
			}),
		},
	)

	mux := notify.NewMux(notify.LogMailer{Log: log.With(slog.String("component", "mailer"))}, log)
	if err := srv.Start(mux); err != nil {
		log.Error("worker start failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
		return err
	}
	log.Info("worker started", slog.String("queue", cfg.NotifyQueue), slog.Int("concurrency", concurrency))

	<-ctx.Done()
	log.Info("shutdown signal received")
	srv.Shutdown()
	log.Info("worker stopped")
	return nil
}
