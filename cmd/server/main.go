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

	_ "github.com/lib/pq"

	"memberhub/internal/audit"
	"memberhub/internal/collab/notifier"
	"memberhub/internal/collab/objectstore"
	"memberhub/internal/collab/payment"
	"memberhub/internal/collab/tokenstore"
	jwttoken "memberhub/internal/jwt_token"
	"memberhub/internal/platform/config"
	"memberhub/internal/platform/httpserver"
	"memberhub/internal/platform/logger"
	"memberhub/internal/platform/metrics"
	platformredis "memberhub/internal/platform/redis"
	"memberhub/internal/privacy/deletion"
	"memberhub/internal/privacy/export"
	"memberhub/internal/privacy/handler"
	"memberhub/internal/privacy/service"
	privacystore "memberhub/internal/privacy/store"
	"memberhub/internal/privacy/walker"
	"memberhub/internal/privacy/worker"
	"memberhub/internal/records"
	transport "memberhub/internal/transport/http"
	"memberhub/internal/users"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Persistence. Postgres when a DSN is configured, in-memory otherwise
	// (local development and tests).
	var (
		err         error
		db          *sql.DB
		usrs        users.Store
		auditStore  audit.Store
		deletions   privacystore.DeletionStore
		exports     privacystore.ExportStore
		collections func(resourceType string) records.Collection
	)
	if cfg.Postgres.DSN != "" {
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			return err
		}
		defer db.Close()

		usrs = users.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		deletions = privacystore.NewPostgresDeletionStore(db)
		exports = privacystore.NewPostgresExportStore(db)
		collections = func(rt string) records.Collection { return records.NewPostgresCollection(db, rt) }
	} else {
		log.Warn("no postgres dsn configured, using in-memory stores")
		usrs = users.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		deletions = privacystore.NewInMemoryDeletionStore()
		exports = privacystore.NewInMemoryExportStore()
		collections = func(string) records.Collection { return records.NewInMemoryCollection() }
	}

	// Token blacklist. Redis when configured, in-memory otherwise.
	var tokens tokenstore.Store = tokenstore.NewInMemoryStore()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		tokens = tokenstore.NewRedisStore(redisClient.Client)
	}

	// Export bundle storage.
	var objects objectstore.Store = objectstore.NewInMemoryStore()
	if cfg.GCS.Bucket != "" {
		gcs, err := objectstore.NewGCSStore(ctx, cfg.GCS)
		if err != nil {
			return err
		}
		objects = gcs
	}

	notify := notifier.New(cfg.SMTP)

	// Audit trail, optionally mirrored to Kafka for downstream consumers.
	recorderOpts := []audit.Option{}
	if len(cfg.Kafka.Brokers) > 0 {
		stream, err := audit.NewKafkaStream(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return err
		}
		defer stream.Close()
		recorderOpts = append(recorderOpts, audit.WithStream(stream))
	}
	recorder := audit.NewRecorder(auditStore, recorderOpts...)

	// Every collection holding member data registers here; the walker only
	// sees the registry. The audit trail participates through an adapter so
	// its actor fields are anonymized like any other record.
	registry := records.NewRegistry()
	for _, rt := range records.DefaultTypes() {
		if rt == records.TypeAuditLog {
			registry.Register(rt, audit.NewCollectionAdapter(auditStore))
			continue
		}
		registry.Register(rt, collections(rt))
	}

	walk := walker.New(registry, log, m)

	builder := export.NewBuilder(walk, usrs, objects, notify, exports, log, m, cfg.Privacy.ExportTTL)

	orch := deletion.NewOrchestrator(
		usrs,
		walk,
		deletions,
		payment.Noop{Logger: log},
		tokens,
		notify,
		recorder,
		log,
		m,
		deletion.Config{
			PipelineTimeout:     cfg.Privacy.PipelineTimeout,
			CollaboratorTimeout: cfg.Privacy.CollaboratorTimeout,
			CollaboratorRetries: cfg.Privacy.CollaboratorRetries,
			RetryBackoff:        cfg.Privacy.RetryBackoff,
			BlacklistTTL:        cfg.Privacy.BlacklistTTL,
		},
	)

	pool := worker.NewPool(cfg.Privacy.Workers, cfg.Privacy.QueueDepth, log)
	pool.Start(ctx)

	// Expired export bundles are purged on a fixed cadence.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				builder.PurgeExpired(ctx)
			}
		}
	}()

	svc := service.New(usrs, deletions, exports, orch, builder, pool, recorder, log, m, service.Config{
		ConfirmationPhrase: cfg.Privacy.ConfirmationPhrase,
	})

	jwtSvc := jwttoken.NewJWTService(cfg.JWTSigningKey, "memberhub", "memberhub")
	router := transport.NewRouter(transport.Deps{
		Privacy:   handler.New(svc, log),
		Validator: jwttoken.NewMiddlewareAdapter(jwtSvc),
		Logger:    log,
		Metrics:   m,
		Health: func() error {
			if db != nil {
				return db.Ping()
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router, cfg.HTTP)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	pool.Close()
	return nil
}
