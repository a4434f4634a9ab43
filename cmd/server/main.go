package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"verifid/internal/admin"
	adminhandler "verifid/internal/admin/handler"
	"verifid/internal/audit"
	"verifid/internal/documents"
	documentshandler "verifid/internal/documents/handler"
	docmemory "verifid/internal/documents/store/memory"
	docpostgres "verifid/internal/documents/store/postgres"
	"verifid/internal/events"
	"verifid/internal/extraction"
	httpapi "verifid/internal/http"
	"verifid/internal/indexer"
	"verifid/internal/jwttoken"
	"verifid/internal/platform/config"
	"verifid/internal/platform/httpserver"
	"verifid/internal/platform/logger"
	"verifid/internal/platform/metrics"
	"verifid/internal/platform/postgres"
	platformredis "verifid/internal/platform/redis"
	"verifid/internal/preprocess"
	"verifid/internal/recognition"
	"verifid/internal/results"
	resmemory "verifid/internal/results/store/memory"
	respostgres "verifid/internal/results/store/postgres"
	"verifid/internal/retry"
	"verifid/internal/storage"
	"verifid/internal/validator"
	validatorhandler "verifid/internal/validator/handler"
)

// main wires dependencies and owns the process lifecycle. Unconfigured
// backends degrade to in-memory implementations so a bare `go run` serves a
// working, if forgetful, instance.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New(os.Getenv("LOG_LEVEL"))

	if err := cfg.Thresholds.Validate(); err != nil {
		log.Error("invalid threshold configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var objects storage.ObjectStore
	if cfg.Storage.AccessKey != "" {
		minioStore, err := storage.NewMinio(ctx, cfg.Storage,
			cfg.Storage.DocumentsBucket, cfg.Storage.SubjectPhotosBucket)
		if err != nil {
			log.Error("object storage unavailable", "endpoint", cfg.Storage.Endpoint, "error", err)
			os.Exit(1)
		}
		objects = minioStore
	} else {
		log.Warn("object storage not configured; using in-memory store")
		objects = storage.NewInMemoryStore()
	}

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	var (
		documentStore documents.Store
		resultStore   results.Store
	)
	if db != nil {
		defer db.Close()
		docStore := docpostgres.NewPostgres(db)
		resStore := respostgres.NewPostgres(db)
		if err := docStore.EnsureSchema(ctx); err != nil {
			log.Error("document schema migration failed", "error", err)
			os.Exit(1)
		}
		if err := resStore.EnsureSchema(ctx); err != nil {
			log.Error("results schema migration failed", "error", err)
			os.Exit(1)
		}
		documentStore, resultStore = docStore, resStore
	} else {
		log.Warn("postgres not configured; using in-memory stores")
		documentStore = docmemory.NewInMemoryStore()
		resultStore = resmemory.NewInMemoryStore()
	}

	var counter retry.Counter
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		counter = retry.NewRedisCounter(redisClient.Client, cfg.Retry.CounterTTL)
	} else {
		log.Warn("redis not configured; attempt counters are process-local")
		counter = retry.NewMemoryCounter()
	}

	recognizer := recognition.NewClient(cfg.Recognition)

	var auditStore audit.Store
	if db != nil {
		pgAudit := audit.NewPostgresStore(db)
		if err := pgAudit.EnsureSchema(ctx); err != nil {
			log.Error("audit schema migration failed", "error", err)
			os.Exit(1)
		}
		auditStore = pgAudit
	} else {
		auditStore = audit.NewInMemoryStore()
	}
	auditPublisher, auditWorker := audit.NewPipeline(auditStore, 256)

	indexerOpts := []indexer.Option{
		indexer.WithLogger(log), indexer.WithMetrics(m), indexer.WithAudit(auditPublisher),
	}
	if cfg.Extraction.BaseURL != "" {
		extractor := extraction.NewClient(cfg.Extraction.BaseURL, cfg.Extraction.APIKey, cfg.Extraction.Timeout)
		indexerOpts = append(indexerOpts,
			indexer.WithCrossCheck(extraction.NewCrossChecker(extractor, cfg.Extraction.MinConfidence)))
	}
	indexService := indexer.NewService(
		documentStore, objects, recognizer, preprocess.NewGuard(), cfg.Storage.DocumentsBucket,
		indexerOpts...,
	)
	retryController := retry.NewController(
		counter, resultStore, documentStore, objects, cfg.Storage.DocumentsBucket, cfg.Retry,
		retry.WithLogger(log), retry.WithMetrics(m),
	)
	validationService := validator.NewService(
		validator.Deps{
			Recognizer:   recognizer,
			Objects:      objects,
			Documents:    documentStore,
			Results:      resultStore,
			Retries:      retryController,
			Indexer:      indexService,
			Preprocessor: preprocess.NewGuard(),
			Tokens:       jwttoken.NewJWTService(cfg.Liveness.SessionTokenKey, "verifid", "verifid-liveness"),
		},
		validator.Config{
			DocumentsBucket: cfg.Storage.DocumentsBucket,
			SubjectsBucket:  cfg.Storage.SubjectPhotosBucket,
			Thresholds:      cfg.Thresholds,
			ResultsTTL:      cfg.Results.TTL,
			SessionExpiry:   cfg.Liveness.SessionTokenExpiry,
		},
		validator.WithLogger(log), validator.WithMetrics(m), validator.WithAudit(auditPublisher),
	)
	adminService := admin.NewService(
		recognizer, documentStore, objects, cfg.Storage.DocumentsBucket,
		admin.WithLogger(log), admin.WithMetrics(m), admin.WithAudit(auditPublisher),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Documents: documentshandler.New(indexService, objects, log,
			cfg.Storage.DocumentsBucket, cfg.Storage.SubjectPhotosBucket, cfg.Storage.PresignExpiry),
		Validator:  validatorhandler.New(validationService, log),
		Admin:      adminhandler.New(adminService, indexService, auditPublisher, log),
		AdminToken: cfg.AdminToken,
		Logger:     log,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return auditWorker.Run(ctx)
	})

	g.Go(func() error {
		log.Info("starting verifid", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := events.NewConsumer(cfg.Kafka, validationService, log)
		if err != nil {
			log.Error("kafka consumer setup failed", "error", err)
			os.Exit(1)
		}
		if err := consumer.EnsureTopic(ctx); err != nil {
			log.Error("kafka topic setup failed", "topic", cfg.Kafka.Topic, "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			log.Info("starting upload event consumer", "topic", cfg.Kafka.Topic)
			return consumer.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
