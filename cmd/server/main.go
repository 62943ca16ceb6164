package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"schedule-booking-api/internal/account"
	"schedule-booking-api/internal/auth"
	"schedule-booking-api/internal/booking"
	"schedule-booking-api/internal/cache"
	"schedule-booking-api/internal/calendar"
	"schedule-booking-api/internal/clock"
	"schedule-booking-api/internal/config"
	"schedule-booking-api/internal/grpcweb"
	"schedule-booking-api/internal/handler"
	"schedule-booking-api/internal/httpapi"
	"schedule-booking-api/internal/jobs"
	"schedule-booking-api/internal/logging"
	"schedule-booking-api/internal/middleware"
	"schedule-booking-api/internal/outbox"
	"schedule-booking-api/internal/rpc"
	"schedule-booking-api/internal/store"
	"schedule-booking-api/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(cfg.Env)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  "schedule-booking-api",
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSamplingRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	// database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	logger.Info("connected to postgres")
	if err := store.Migrate(ctx, pool); err != nil {
		return err
	}
	st := store.New(pool, auth.NewSealer(cfg.SealKey()))

	// redis: month cache and job queue
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, month cache and calendar jobs will fail until it is back", zap.Error(err))
	}
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	// services
	if !cfg.GoogleConfigured() {
		logger.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set, sign-in and calendar sync are disabled")
	}
	google := auth.NewGoogle(auth.GoogleOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL))
	bookings := booking.NewService(st, cache.NewMonthBlocks(rdb, cfg.BlocksCacheTTL), clock.System(), cfg.Location(), logger.Named("booking"))
	accounts := account.NewService(st, google, cfg.JWTSecret, clock.System(), logger.Named("account"))
	cal := calendar.New(st, google.Config(), cfg.Location(), logger.Named("calendar"))

	// background: outbox relay and calendar worker
	queue := asynq.NewClient(redisOpt)
	defer queue.Close()
	sinks := []outbox.Sink{jobs.NewEnqueuer(queue, logger.Named("jobs"))}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		ks := outbox.NewKafkaSink(brokers)
		defer ks.Close()
		sinks = append(sinks, ks)
	}
	relay := outbox.NewRelay(st, outbox.Config{PollEvery: cfg.OutboxPollInterval}, logger.Named("outbox"), sinks...)
	worker := jobs.NewWorker(redisOpt, cal, cfg.WorkerConcurrency, logger.Named("jobs"))

	errc := make(chan error, 3)
	go relay.Run(ctx)
	go func() {
		if err := worker.Run(ctx); err != nil {
			errc <- err
		}
	}()

	// grpc server
	rl := middleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			middleware.UnaryRequestID(),
			middleware.UnaryAccessLog(logger.Named("grpc")),
			middleware.RateLimit(rl),
			middleware.Auth(cfg.JWTSecret),
		),
	)
	rpc.RegisterBookingServiceServer(srv, handler.New(bookings, accounts, logger.Named("grpc")))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}
	go func() {
		logger.Info("grpc listening", zap.String("port", cfg.GRPCPort))
		if err := srv.Serve(lis); err != nil {
			errc <- err
		}
	}()

	// http: REST api and grpc-web bridge to the local grpc listener
	bridge, err := grpcweb.New("localhost:"+cfg.GRPCPort, logger.Named("grpcweb"))
	if err != nil {
		return err
	}
	defer bridge.Close()

	router := httpapi.NewRouter(httpapi.Deps{
		Bookings:     bookings,
		Accounts:     accounts,
		OAuth:        google,
		Secret:       cfg.JWTSecret,
		AppURL:       cfg.AppURL,
		SecureCookie: cfg.IsProduction(),
		Limiter:      rl,
		GRPCWeb:      bridge.Handler(),
		Checks: []httpapi.Check{
			{Name: "postgres", Fn: st.Ping},
			{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
		Log: logger.Named("http"),
	})
	httpSrv := &http.Server{
		Addr:              ":" + cfg.WebPort,
		Handler:           otelhttp.NewHandler(router, "http"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http listening", zap.String("port", cfg.WebPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errc:
		logger.Error("component failed, shutting down", zap.Error(err))
		stop()
	}

	hs.Shutdown()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if herr := httpSrv.Shutdown(sctx); herr != nil {
		logger.Warn("http shutdown", zap.Error(herr))
	}
	srv.GracefulStop()
	return err
}
