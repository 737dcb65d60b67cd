package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/config"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/handler"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/archive"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/cache"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/events"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/postgres"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/port"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.String("archive_bucket", cfg.ArchiveBucket),
		zap.Duration("recalculo_interval", cfg.RecalculoInterval),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, observability.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	calculoCache := cache.New[*domain.ResultadoCalculo](cfg.CacheTTL)
	defer calculoCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Store ---
	var store port.ProcessoStore
	switch {
	case cfg.UseSupabase && cfg.SupabaseURL != "":
		logger.Info("using Supabase as data backend",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		store = supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewGuard("supabase", resilienceCfg, logger),
			logger,
		)
	case cfg.DatabaseURL != "":
		logger.Info("using Postgres as data backend")
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer db.Close()
		store = migrate(db, resilience.NewGuard("postgres", resilienceCfg, logger), logger)
	default:
		logger.Fatal("no data backend configured: set SUPABASE_URL or DATABASE_URL")
	}

	// --- Events (optional) ---
	var publisher port.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			WriteTimeout: cfg.HTTPTimeout,
		}, resilience.NewGuard("kafka", resilienceCfg, logger), logger)
		if err != nil {
			logger.Fatal("failed to create kafka publisher", zap.Error(err))
		}
		defer kp.Close()
		publisher = kp
		logger.Info("recalculo events enabled", zap.String("topic", cfg.KafkaTopic))
	} else {
		logger.Warn("events: KAFKA_BROKERS not set, recalculo events disabled")
	}

	// --- Archive (optional) ---
	var archiver port.ResultadoArchiver
	if cfg.ArchiveBucket != "" {
		a, err := archive.NewS3Archiver(context.Background(), cfg.ArchiveBucket, cfg.ArchivePrefix)
		if err != nil {
			logger.Fatal("failed to create s3 archiver", zap.Error(err))
		}
		archiver = a
		logger.Info("snapshot archive enabled", zap.String("bucket", cfg.ArchiveBucket))
	}

	// --- Services ---
	calcSvc := service.NewCalculoService(
		store,
		calculoCache,
		publisher,
		archiver,
		metrics,
		logger,
		cfg.RecalculoConcurrency,
	)
	procSvc := service.NewProcessoService(store, logger)

	if cfg.JWTSecret == "" {
		logger.Warn("auth: SUPABASE_JWT_SECRET not set, /v1/processos routes will reject every request")
	}
	validator := service.NewTokenValidator(cfg.JWTSecret)

	// --- Router ---
	router := handler.NewRouter(calcSvc, procSvc, validator, store, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Periodic recompute ---
	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	if cfg.RecalculoInterval > 0 {
		go runRecalculo(jobCtx, calcSvc, cfg.RecalculoInterval, logger)
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	stopJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// migrate applies the embedded schema before the store is used.
func migrate(db *sql.DB, guard *resilience.Guard, logger *zap.Logger) *postgres.Store {
	s := postgres.NewStore(db, guard)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}
	return s
}

// runRecalculo recomputes every active case on each tick until ctx ends.
func runRecalculo(ctx context.Context, svc *service.CalculoService, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("recalculo job scheduled", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("recalculo job stopped")
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, interval)
			rel, err := svc.RecalcularAtivos(runCtx, nil)
			cancel()
			if err != nil {
				logger.Error("recalculo run failed", zap.Error(err))
				continue
			}
			if len(rel.Falhas) > 0 {
				logger.Warn("recalculo run finished with failures",
					zap.Int("falhas", len(rel.Falhas)),
					zap.Int("total", rel.Total),
				)
			}
		}
	}
}
