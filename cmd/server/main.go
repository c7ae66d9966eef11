// main wires the stores, services, background workers, and HTTP server, and
// keeps the lifecycle small. Business logic lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"countersign/internal/audit"
	"countersign/internal/blob"
	"countersign/internal/jwtauth"
	leasestore "countersign/internal/lease/store"
	"countersign/internal/outbox"
	"countersign/internal/platform/config"
	"countersign/internal/platform/httpserver"
	"countersign/internal/platform/logger"
	platformredis "countersign/internal/platform/redis"
	"countersign/internal/ratelimit"
	"countersign/internal/seal"
	"countersign/internal/signer/resolver"
	signerstore "countersign/internal/signer/store"
	signinghandler "countersign/internal/signing/handler"
	"countersign/internal/signing/metrics"
	signingservice "countersign/internal/signing/service"
	httptransport "countersign/internal/transport/http"
	id "countersign/pkg/domain"
	"countersign/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres when configured, in-memory for local development.
	var (
		leases   leasestore.Store
		signers  signerstore.Store
		blobs    blob.Store
		events   outbox.Store
		auditLog audit.Store
		txRunner = tx.NewNopRunner()
		checks   = map[string]httptransport.HealthChecker{}
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		leases = leasestore.NewPostgres(db)
		signers = signerstore.NewPostgres(db)
		blobs = blob.NewPostgres(db)
		events = outbox.NewPostgres(db)
		auditLog = audit.NewPostgres(db)
		txRunner = tx.NewRunner(db)
		checks["postgres"] = dbHealth{db}
		log.Info("using postgres stores")
	} else {
		leases = leasestore.NewMemoryStore()
		signers = signerstore.NewMemoryStore()
		blobs = blob.NewMemoryStore()
		events = outbox.NewMemoryStore()
		auditLog = audit.NewMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Rate limiting: Redis when configured, per-process otherwise.
	var limiter ratelimit.Limiter
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient.Client, cfg.SignRateLimit, cfg.SignRateWindow)
		checks["redis"] = redisClient
		log.Info("using redis rate limiter")
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.SignRateLimit, cfg.SignRateWindow)
		log.Warn("REDIS_URL not set, using in-process rate limiter")
	}

	// Sealing: the external document service, or a logged no-op locally.
	var sealer seal.Sealer
	if cfg.SealServiceURL != "" {
		sealer = seal.NewHTTPSealer(cfg.SealServiceURL, cfg.SealTimeout)
	} else {
		sealer = seal.Func(func(ctx context.Context, leaseID id.LeaseID, documentPath string) error {
			log.InfoContext(ctx, "seal skipped, no seal service configured",
				"lease_id", leaseID, "document_path", documentPath)
			return nil
		})
		log.Warn("SEAL_SERVICE_URL not set, seals are no-ops")
	}

	signingMetrics := metrics.New()
	signingSvc := signingservice.New(
		leases,
		signers,
		resolver.New(signers, leases, log),
		blobs,
		events,
		audit.NewPublisher(auditLog),
		sealer,
		limiter,
		txRunner,
		signingMetrics,
		log,
	)

	validator := jwtauth.NewValidator(cfg.JWTSigningKey)
	router := httptransport.NewRouter(httptransport.Deps{
		Signing:       signinghandler.New(signingSvc, log),
		TokenVerifier: validator,
		Logger:        log,
		Checks:        checks,
	})
	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting countersign", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Seal retry worker drains queued seal failures.
	retryWorker := seal.NewRetryWorker(events, sealer, log, cfg.SealRetryInterval)
	group.Go(func() error { return retryWorker.Run(groupCtx) })

	// Outbox relay publishes notification events to Kafka when configured.
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := outbox.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer publisher.Close()
		relay := outbox.NewRelay(events, publisher, log, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.EventTenantSigned, outbox.EventOwnerSigned, outbox.EventFullySigned)
		group.Go(func() error { return relay.Run(groupCtx) })
		log.Info("outbox relay started", "topic", cfg.Kafka.Topic)
	} else {
		log.Warn("KAFKA_BROKERS not set, outbox events stay queued")
	}

	return group.Wait()
}

type dbHealth struct{ db *sql.DB }

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
