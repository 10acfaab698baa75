package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dininghall-ai/menu-search/internal/bootstrap"
	"github.com/dininghall-ai/menu-search/internal/config"
	"github.com/dininghall-ai/menu-search/internal/observability/logging"
	"github.com/dininghall-ai/menu-search/internal/observability/metrics"
)

const serviceName = "menu-search-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		log.Printf("worker metrics listening on :%s", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	// Periodic sweep picks up items the queue missed, e.g. rows written
	// while the worker was down.
	sweepInterval := time.Duration(cfg.BackfillSweepMinutes) * time.Minute
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			runSweep(ctx, app, cfg.BackfillBatchSize, workerMetrics)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeEmbeddingPending(ctx, func(handlerCtx context.Context, itemID int64) error {
		backfillCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()

		workerMetrics.StartBackfill()
		start := time.Now()
		backfillErr := app.BackfillUC.BackfillByID(backfillCtx, itemID)
		workerMetrics.FinishBackfill(serviceName, time.Since(start), backfillErr)
		return backfillErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func runSweep(ctx context.Context, app *bootstrap.App, batchSize int, workerMetrics *metrics.WorkerMetrics) {
	sweepCtx, cancel := context.WithTimeout(ctx, 15*time.Minute)
	defer cancel()

	embedded, err := app.BackfillUC.BackfillForDate(sweepCtx, time.Now(), batchSize)
	if err != nil {
		log.Printf("backfill sweep error after %d items: %v", embedded, err)
	}
	workerMetrics.ObserveSweep(serviceName, embedded)
}
