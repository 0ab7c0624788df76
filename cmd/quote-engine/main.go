// cmd/quote-engine/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"quote-engine/internal/audit"
	"quote-engine/internal/common/config"
	"quote-engine/internal/common/database"
	"quote-engine/internal/common/logger"
	"quote-engine/internal/common/observability"
	"quote-engine/internal/nlu"
	"quote-engine/internal/notify"
	"quote-engine/internal/orchestrator"
	"quote-engine/internal/rating"
	"quote-engine/internal/retrieval"
	"quote-engine/internal/server"
	"quote-engine/internal/session"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting quote engine",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Rate tables ---
	tables, err := rating.LoadTables(cfg.RateTable.Path)
	if err != nil {
		zapLog.Fatal("rate table load failed", zap.String("path", cfg.RateTable.Path), zap.Error(err))
	}
	snapshot := rating.NewSnapshot(tables)
	zapLog.Info("rate table loaded", zap.String("version", tables.Version))

	// --- Redis (session store) with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	store := session.NewRedisStore(redisClient, time.Duration(cfg.Session.TTL)*time.Second)

	// --- PostgreSQL (quote audit) with retry; optional ---
	var recorder audit.Recorder = audit.NoOpRecorder{}
	if cfg.Database.Postgres.Host != "" {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")
		recorder = audit.NewPostgresRecorder(pg.GetDB(), log)
	}

	// --- Elasticsearch (knowledge retrieval); optional ---
	var backend retrieval.Backend
	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
		backend = retrieval.NewElasticsearchBackend(esClient.Client, cfg.Database.Elasticsearch.Index, log)
	}

	// --- Escalation notifier; optional ---
	var notifier notify.Notifier = notify.NoOpNotifier{}
	if cfg.Notify.Email.Enabled || cfg.Notify.SMS.Enabled {
		awsNotifier, err := notify.NewAWSNotifier(ctx, cfg.Notify, log)
		if err != nil {
			zapLog.Fatal("notifier init failed", zap.Error(err))
		}
		notifier = awsNotifier
	}

	classifier := nlu.NewClient(&nlu.Config{
		BaseURL:    cfg.APIs.NLU.BaseURL,
		APIKey:     cfg.APIs.NLU.APIKey,
		Timeout:    time.Duration(cfg.APIs.NLU.Timeout) * time.Millisecond,
		MaxRetries: cfg.APIs.NLU.MaxRetries,
	}, log)

	engine := rating.NewEngine(cfg.Policy.TermDays)

	orch := orchestrator.New(orchestrator.Options{
		Store:               store,
		Classifier:          classifier,
		Retrieval:           backend,
		Snapshot:            snapshot,
		Engine:              engine,
		Recorder:            recorder,
		Notifier:            notifier,
		Logger:              log,
		ConfidenceThreshold: cfg.Policy.ConfidenceThreshold,
		TopK:                cfg.APIs.Retrieval.TopK,
	})

	srv := server.New(cfg.Server, orch, snapshot, cfg.RateTable.Path, store, log)

	go func() {
		if err := srv.Start(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Shutdown complete")
}
