// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"baws-workers/internal/agents/conversation"
	"baws-workers/internal/agents/orchestrator"
	"baws-workers/internal/agents/persona"
	"baws-workers/internal/agents/router"
	"baws-workers/internal/common/aws"
	"baws-workers/internal/common/cache"
	"baws-workers/internal/common/camunda"
	"baws-workers/internal/common/config"
	"baws-workers/internal/common/database"
	httpclient "baws-workers/internal/common/http"
	"baws-workers/internal/common/llm"
	"baws-workers/internal/common/logger"
	"baws-workers/internal/common/observability"
	"baws-workers/internal/export"
	"baws-workers/internal/store"

	ad "baws-workers/internal/workers/analysis/analyze-document"
	cr "baws-workers/internal/workers/conversation/conversation-reply"
	ed "baws-workers/internal/workers/export/export-document"
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
		logger.New("info", "console").Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Zeebe ---
	zeebe, err := camunda.NewClient(ctx, camunda.ClientConfig{
		GatewayAddress: cfg.Camunda.BrokerAddress,
		Plaintext:      cfg.Camunda.Plaintext,
		ProbeTimeout:   config.GetDuration(cfg.Camunda.RequestTimeout),
		Retry:          camunda.RetryPolicy{Attempts: 10, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second},
	}, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
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
	if cfg.Database.Postgres.AutoMigrate {
		if err := pg.Migrate(ctx); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	checks := map[string]readinessCheck{
		"zeebe":    zeebe.HealthCheck,
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	// --- Elasticsearch (optional) ---
	var indexer ad.Indexer
	if cfg.Database.Elasticsearch.Enabled() {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := esClient.Ping(ctx); err != nil {
				return err
			}
			return esClient.EnsureIndex(ctx, cfg.Database.Elasticsearch.AnalysisIndex)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, analysis indexing disabled", zap.Error(err))
		} else {
			indexer = esClient
			checks["elasticsearch"] = esClient.Ping
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- SNS (optional) ---
	var notifier ad.Notifier
	if sns := cfg.Integrations.AWS.SNS; sns.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region, sns.TopicARN)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		notifier = client
	}

	// --- Gemini ---
	httpClient := httpclient.NewClient(config.GetDuration(cfg.APIs.GenAI.Timeout))
	gemini, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey: cfg.APIs.GenAI.APIKey,
		Model:  cfg.APIs.GenAI.Model,
	}, httpClient.Standard())
	if err != nil {
		zapLog.Fatal("gemini client init failed", zap.Error(err))
	}

	// --- Agents ---
	personas, err := persona.NewRegistry(cfg.Agents.AgentsDir, cfg.Agents.PromptsDir, log)
	if err != nil {
		zapLog.Fatal("persona registry init failed", zap.Error(err))
	}
	catalog, err := router.NewCatalog(cfg.Agents.CatalogPath)
	if err != nil {
		zapLog.Fatal("agent catalog init failed", zap.Error(err))
	}
	agentRouter := router.New(catalog, gemini, log)

	st := store.New(pg.DB)
	chat, err := conversation.New(agentRouter, catalog, st, gemini, cfg.Agents.ConversationPromptPath, log)
	if err != nil {
		zapLog.Fatal("conversation agent init failed", zap.Error(err))
	}
	analysis := orchestrator.New(personas, gemini, obs.Tracer(), orchestrator.Config{
		AgentTimeout:   config.GetDuration(cfg.Agents.AgentTimeout),
		MaxConcurrency: cfg.Agents.MaxConcurrency,
	}, log)

	if cfg.Agents.Watch {
		dirs := []string{cfg.Agents.AgentsDir, cfg.Agents.PromptsDir}
		if cfg.Agents.CatalogPath != "" {
			dirs = append(dirs, filepath.Dir(cfg.Agents.CatalogPath))
		}
		watcher, err := cache.NewWatcher(log, uniqueDirs(dirs), personas, catalog, chat)
		if err != nil {
			zapLog.Warn("agent config watcher disabled", zap.Error(err))
		} else {
			go watcher.Run(ctx)
			zapLog.Info("Watching agent configuration for changes", zap.Strings("dirs", uniqueDirs(dirs)))
		}
	}

	exports := export.NewStorage(cfg.Storage.DocumentsPath)

	// --- Workers ---
	var workers []*camunda.Worker

	analyzeHandler, err := ad.NewHandler(ad.HandlerOptions{
		AppConfig:     cfg,
		Store:         st,
		Analyzer:      analysis,
		Locker:        rdb,
		Indexer:       indexer,
		Notifier:      notifier,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("failed to create analyze-document handler", zap.Error(err))
	}
	workers = append(workers, camunda.StartWorker(zeebe.Zeebe(), ad.TaskType, config.GetWorkerConfig(cfg, ad.TaskType), analyzeHandler, log))

	replyHandler, err := cr.NewHandler(cr.HandlerOptions{
		AppConfig:     cfg,
		Store:         st,
		Replier:       chat,
		Agents:        agentRouter,
		Personas:      personas,
		Exports:       exports,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("failed to create conversation-reply handler", zap.Error(err))
	}
	workers = append(workers, camunda.StartWorker(zeebe.Zeebe(), cr.TaskType, config.GetWorkerConfig(cfg, cr.TaskType), replyHandler, log))

	exportHandler, err := ed.NewHandler(ed.HandlerOptions{
		AppConfig:     cfg,
		Exports:       exports,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("failed to create export-document handler", zap.Error(err))
	}
	workers = append(workers, camunda.StartWorker(zeebe.Zeebe(), ed.TaskType, config.GetWorkerConfig(cfg, ed.TaskType), exportHandler, log))

	zapLog.Info("All workers registered successfully")

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newHealthMux(checks),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	zapLog.Info("Shutdown signal received, stopping workers...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	for _, w := range workers {
		w.Close()
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
