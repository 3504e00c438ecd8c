package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/charge-ledger/internal/charge/application"
	chargehttp "github.com/dmehra2102/charge-ledger/internal/charge/infrastructure/http"
	chargekafka "github.com/dmehra2102/charge-ledger/internal/charge/infrastructure/kafka"
	pg "github.com/dmehra2102/charge-ledger/internal/charge/infrastructure/postgres"
	paymentapp "github.com/dmehra2102/charge-ledger/internal/payment/application"
	paymenthttp "github.com/dmehra2102/charge-ledger/internal/payment/infrastructure/http"
	"github.com/dmehra2102/charge-ledger/pkg/config"
	"github.com/dmehra2102/charge-ledger/pkg/idempotency"
	"github.com/dmehra2102/charge-ledger/pkg/logging"
	"github.com/dmehra2102/charge-ledger/pkg/metrics"
	"github.com/dmehra2102/charge-ledger/pkg/outbox"
	"github.com/dmehra2102/charge-ledger/pkg/shutdown"
	"github.com/dmehra2102/charge-ledger/pkg/tracing"
)

func main() {
	cfg := config.Load()
	log := logging.NewWithLevel(cfg.LogLevel)
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := pg.NewRepository(log, pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Error("schema migration failed", "err", err)
		os.Exit(1)
	}

	redisDB := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = redisDB.Close() }()
	idem := idempotency.NewStore(redisDB, cfg.IdemTTL)

	chargeMetrics := metrics.NewChargeMetrics(prometheus.DefaultRegisterer)
	svc := application.NewService(repo, chargeMetrics)

	// Outbox relay for charge events
	writer := chargekafka.NewWriter(cfg.KafkaBrokers)
	defer func() { _ = writer.Close() }()
	dispatch := outbox.NewDispatcher(log, writer, cfg.Topics.ChargeEvents)
	store := pg.NewOutboxStore(log, pool, cfg.Outbox.MaxRetries)
	relay := outbox.NewRelay(log, store, dispatch, cfg.ServiceName+"-relay-"+uuid.NewString(),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithInterval(cfg.Outbox.Interval),
		outbox.WithLease(cfg.Outbox.Lease),
	)
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped", "err", err)
		}
	}()

	consumer := chargekafka.NewConsumer(log, cfg.KafkaBrokers, cfg.Topics.GatewayEvents, cfg.Topics.ConsumerGroup, svc, idem, chargeMetrics)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer stopped", "err", err)
			cancel()
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Mount("/", chargehttp.NewHandler(log, svc).Routes())
	r.Mount("/payments", paymenthttp.NewHandler(log, paymentapp.NewService(cfg.Module.VoucherConfig())).Routes())
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("charge-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("charge-service shutdown")
}
