// Command server runs the scholarship review service: HTTP API, postgres or
// in-memory stores, redis queue cache, and the Kafka notification worker.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	httpapi "bursary/internal/http"
	jwttoken "bursary/internal/jwt_token"
	"bursary/internal/notification"
	"bursary/internal/platform/config"
	"bursary/internal/platform/httpserver"
	"bursary/internal/platform/logger"
	"bursary/internal/platform/postgres"
	platformredis "bursary/internal/platform/redis"
	reviewhandler "bursary/internal/review/handler"
	reviewmetrics "bursary/internal/review/metrics"
	"bursary/internal/review/reporting"
	reviewservice "bursary/internal/review/service"
	applicationstore "bursary/internal/review/store/application"
	ledgerstore "bursary/internal/review/store/ledger"
	"bursary/internal/review/store/queuecache"
	stagestatusstore "bursary/internal/review/store/stagestatus"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var (
		applications reviewservice.ApplicationStore
		stageStatus  reviewservice.StageStatusStore
		ledger       reviewservice.LedgerStore
		storeTx      reviewservice.StoreTx

		reportApps   reporting.ApplicationStore
		reportStages reporting.StageStatusStore
		reportLedger reporting.LedgerStore

		pgHealth httpapi.HealthChecker
	)

	if cfg.Postgres.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()

		appStore := applicationstore.NewPostgres(db)
		stageStore := stagestatusstore.NewPostgres(db)
		ledgerStore := ledgerstore.NewPostgres(db)
		applications, stageStatus, ledger = appStore, stageStore, ledgerStore
		reportApps, reportStages, reportLedger = appStore, stageStore, ledgerStore
		storeTx = newReviewPostgresTx(db)
		pgHealth = dbHealth{db: db}
		log.Info("using postgres stores")
	} else {
		appStore := applicationstore.NewInMemory()
		stageStore := stagestatusstore.NewInMemory()
		ledgerStore := ledgerstore.NewInMemory()
		applications, stageStatus, ledger = appStore, stageStore, ledgerStore
		reportApps, reportStages, reportLedger = appStore, stageStore, ledgerStore
		storeTx = reviewservice.NewShardedTx(0)
		log.Warn("POSTGRES_DSN not set, using in-memory stores")
	}

	serviceOpts := []reviewservice.Option{
		reviewservice.WithLogger(log),
		reviewservice.WithMetrics(reviewmetrics.New()),
	}

	var redisHealth httpapi.HealthChecker
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		serviceOpts = append(serviceOpts,
			reviewservice.WithQueueCache(queuecache.New(redisClient.Client, cfg.Redis.QueueTTL)))
		redisHealth = redisClient
		log.Info("queue cache enabled")
	}

	group, ctx := errgroup.WithContext(ctx)

	var sink *notification.ChannelSink
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := notification.NewKafkaPublisher(cfg.Kafka.Brokers,
			notification.WithTopic(cfg.Kafka.Topic),
			notification.WithPublisherLogger(log),
		)
		if err != nil {
			return err
		}
		defer publisher.Close()
		if err := publisher.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.Replicas); err != nil {
			return err
		}

		sink = notification.NewChannelSink(0, log)
		worker := notification.NewWorker(sink, publisher, log)
		group.Go(func() error { return worker.Run(ctx) })
		serviceOpts = append(serviceOpts, reviewservice.WithEventSink(sink))
		log.Info("event publishing enabled", "topic", cfg.Kafka.Topic)
	}

	svc, err := reviewservice.New(applications, stageStatus, ledger, storeTx, serviceOpts...)
	if err != nil {
		return err
	}
	projector := reporting.New(reportApps, reportStages, reportLedger,
		reporting.WithLogger(log))

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)

	router := httpapi.NewRouter(httpapi.Deps{
		Review:    reviewhandler.New(svc, projector, log),
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Logger:    log,
		Postgres:  pgHealth,
		Redis:     redisHealth,
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	group.Go(func() error {
		log.Info("starting bursary server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		if sink != nil {
			sink.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
