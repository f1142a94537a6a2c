package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"slotkeeper/backend/internal/availability"
	"slotkeeper/backend/internal/config"
	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/notify"
	"slotkeeper/backend/internal/provider"
	"slotkeeper/backend/internal/provider/googlecalendar"
	"slotkeeper/backend/internal/provider/zoom"
	"slotkeeper/backend/internal/service/booking"
	"slotkeeper/backend/internal/store/postgres"
	"slotkeeper/backend/internal/store/rediscache"
	grpcTransport "slotkeeper/backend/internal/transport/grpc"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC booking server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load("serve")
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger, migrate bool) error {
	log.Info("starting", slog.String("grpc_addr", cfg.GRPCAddr()), slog.String("log_level", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB(db, log)

	if migrate {
		if _, err := postgres.Migrate(ctx, db, log); err != nil {
			log.Error("migration failed", slog.Any("err", err))
			return err
		}
	}

	sealer, err := postgres.NewSealer(cfg.CredentialKey)
	if err != nil {
		log.Error("credential key invalid", slog.Any("err", err))
		return err
	}

	registry := newProviderRegistry(cfg)

	var cache availability.Cache
	if cfg.BusyCacheTTL > 0 {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}()
		cache = rediscache.NewBusyCache(rdb, cfg.BusyCacheTTL)
		log.Info("busy cache enabled", slog.String("redis_addr", cfg.RedisAddr), slog.Duration("ttl", cfg.BusyCacheTTL))
	}

	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.NotifyRedisDB})
	defer func() {
		if err := queue.Close(); err != nil {
			log.Warn("queue client close failed", slog.Any("err", err))
		}
	}()

	svc := booking.NewService(booking.Deps{
		Profiles:    postgres.NewProfileRepo(db),
		Credentials: postgres.NewCredentialRepo(db, sealer),
		Bookings:    postgres.NewBookingRepo(db),
		Notifier:    notify.NewSink(queue, cfg.NotifyQueue, log),
		Busy:        availability.NewAggregator(registry, cache, log),
		Providers:   registry,
	}, log)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(defaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout)),
	)
	grpcTransport.RegisterBookingsServiceServer(grpcServer, grpcTransport.NewBookingsServer(svc, log))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(grpcTransport.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()

	log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		healthServer.Shutdown()
		shutdown(log, grpcServer, cfg.ShutdownTimeout)
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("grpc server stopped with error", slog.Any("err", err))
			return err
		}
		return nil
	}
}

// newProviderRegistry registers every supported provider behind its own
// token bucket.
func newProviderRegistry(cfg config.Config) *provider.Registry {
	limits := provider.Limits{
		PerSecond:   cfg.ProviderRatePerSecond,
		Burst:       cfg.ProviderRateBurst,
		CallTimeout: cfg.ProviderCallTimeout,
	}
	reg := provider.NewRegistry()
	reg.Register(domain.ProviderGoogleCalendar, provider.Throttle(googlecalendar.New(googlecalendar.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		BaseURL:      cfg.GoogleBaseURL,
	}), limits))
	reg.Register(domain.ProviderZoomVideo, provider.Throttle(zoom.New(zoom.Config{
		ClientID:     cfg.ZoomClientID,
		ClientSecret: cfg.ZoomClientSecret,
		BaseURL:      cfg.ZoomBaseURL,
		TokenURL:     cfg.ZoomTokenURL,
	}), limits))
	return reg
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

func shutdown(log *slog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
