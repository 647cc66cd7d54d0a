package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kirillkom/ai-file-vault/internal/bootstrap"
	"github.com/kirillkom/ai-file-vault/internal/config"
	"github.com/kirillkom/ai-file-vault/internal/core/domain"
	"github.com/kirillkom/ai-file-vault/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("file-vault-worker", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	taskTimeout := time.Duration(cfg.TaskTimeoutSeconds) * time.Second

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", app.WorkerMetrics.Handler())
	metricsMux.Handle("/metrics/ai", app.GatewayMetrics.Handler())
	metricsServer := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: metricsMux}
	go func() {
		logger.Info("metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := app.SweepUC.Run(sweepCtx); err != nil {
			logger.Error("stuck-file sweep", "error", err)
		}
	}); err != nil {
		log.Fatalf("schedule sweep: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("worker subscribed", "subject", cfg.NATSEnrichSubject)
		errCh <- app.Queue.SubscribeEnrichment(ctx, func(handlerCtx context.Context, task domain.EnrichmentTask) error {
			processCtx, cancel := context.WithTimeout(handlerCtx, taskTimeout)
			defer cancel()

			app.WorkerMetrics.StartTask()
			start := time.Now()
			err := app.EnrichUC.ProcessTask(processCtx, task)
			app.WorkerMetrics.FinishTask("enrichment", time.Since(start), err)
			return err
		})
	}()
	go func() {
		logger.Info("worker subscribed", "subject", cfg.NATSThumbSubject)
		errCh <- app.Queue.SubscribeThumbnail(ctx, func(handlerCtx context.Context, task domain.ThumbnailTask) error {
			processCtx, cancel := context.WithTimeout(handlerCtx, taskTimeout)
			defer cancel()

			app.WorkerMetrics.StartTask()
			start := time.Now()
			err := app.ThumbnailUC.ProcessTask(processCtx, task)
			app.WorkerMetrics.FinishTask("thumbnail", time.Since(start), err)
			return err
		})
	}()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && ctx.Err() == nil {
			log.Fatalf("worker subscribe error: %v", err)
		}
	}
}
