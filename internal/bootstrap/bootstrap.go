package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/ai-file-vault/internal/config"
	"github.com/kirillkom/ai-file-vault/internal/core/ports"
	"github.com/kirillkom/ai-file-vault/internal/core/usecase"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/extractor"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/llm/gateway"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/notify"
	queuenats "github.com/kirillkom/ai-file-vault/internal/infrastructure/queue/nats"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/ratelimit"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/resilience"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/storage/miniostore"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/thumbnail"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/ai-file-vault/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue       *queuenats.Queue
	Repo        ports.FileRepository
	Limiter     *ratelimit.Limiter
	IngestUC    ports.FileIngestor
	EnrichUC    ports.EnrichmentProcessor
	ThumbnailUC ports.ThumbnailProcessor
	SearchUC    ports.FileSearcher
	SweepUC     *usecase.SweepUseCase

	WorkerMetrics  *metrics.WorkerMetrics
	GatewayMetrics *metrics.GatewayMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewFileRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	store, err := miniostore.New(miniostore.Config{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		UseSSL:    cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	workerMetrics := metrics.NewWorkerMetrics("worker")
	queue, err := queuenats.New(cfg.NATSURL, cfg.NATSEnrichSubject, cfg.NATSThumbSubject, queuenats.Options{
		MaxRetries:         cfg.QueueMaxRetries,
		RetryBackoff:       cfg.QueueRetryBackoff,
		ResilienceExecutor: resilience.NewExecutor(resilience.Config{}),
		OnRetry: func(subject string) {
			switch subject {
			case cfg.NATSEnrichSubject:
				workerMetrics.ObserveRetry("enrichment")
			case cfg.NATSThumbSubject:
				workerMetrics.ObserveRetry("thumbnail")
			}
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init task queue: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	limiter := ratelimit.NewLimiter(rdb, ratelimit.Limits{
		RPM:   int64(cfg.RPMLimit),
		Daily: int64(cfg.DailyLimit),
	})

	gatewayMetrics := metrics.NewGatewayMetrics()
	providerExecutor := resilience.NewExecutor(resilience.Config{})
	primary := gemini.New(cfg.GeminiAPIKey, cfg.GeminiGenModel, cfg.GeminiEmbedModel, providerExecutor)
	secondary := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel,
		resilience.NewExecutor(resilience.Config{}))
	// Observability only. Routing never consults provider health; the
	// gateway degrades per sub-operation instead.
	if err := secondary.HealthCheck(ctx); err != nil {
		logger.Warn("fallback provider unreachable at startup", "url", cfg.OllamaURL, "error", err)
	}
	aiGateway := gateway.New(primary, secondary, limiter, gateway.Config{
		EmbeddingDim: cfg.EmbeddingDim,
		MaxQuotaWait: time.Duration(cfg.QuotaMaxWaitSec) * time.Second,
	}, logger, gatewayMetrics)

	vectorIndex := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	notifier := notify.NewEventPublisher(queue.Conn(), cfg.NATSEventSubject, logger)

	textExtractor := extractor.NewTextExtractor()
	metaExtractor := extractor.NewMetadataExtractor()
	renderer := thumbnail.NewRenderer(cfg.ThumbnailMaxSize)

	ingestUC := usecase.NewIngestFileUseCase(repo, store, queue, vectorIndex, usecase.IngestPolicy{
		MaxFileSize:       cfg.MaxFileSizeBytes,
		AllowedExtensions: cfg.AllowedExtensions,
	}, logger)
	enrichUC := usecase.NewEnrichFileUseCase(repo, store, aiGateway, vectorIndex, queue,
		textExtractor, metaExtractor, notifier, cfg.QueueMaxRetries, logger)
	thumbnailUC := usecase.NewThumbnailUseCase(repo, store, renderer, logger)
	searchUC := usecase.NewSearchFilesUseCase(aiGateway, vectorIndex, usecase.SearchOptions{
		MinScore: cfg.SearchMinScore,
	})
	sweepUC := usecase.NewSweepUseCase(repo, notifier, cfg.SweepMaxAge, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:       queue,
		Repo:        repo,
		Limiter:     limiter,
		IngestUC:    ingestUC,
		EnrichUC:    enrichUC,
		ThumbnailUC: thumbnailUC,
		SearchUC:    searchUC,
		SweepUC:     sweepUC,

		WorkerMetrics:  workerMetrics,
		GatewayMetrics: gatewayMetrics,

		closeFn: func() {
			queue.Close()
			_ = rdb.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
