package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/knowledge-retrieval-service/internal/bootstrap"
	"github.com/kirillkom/knowledge-retrieval-service/internal/config"
	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval-service/internal/observability/logging"
	"github.com/kirillkom/knowledge-retrieval-service/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(cfg.ServiceName+"-worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(cfg.ServiceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeQueryCompleted(ctx, func(handlerCtx context.Context, feedback domain.QueryFeedback) error {
		workerMetrics.StartEvent()
		started := time.Now()
		if !feedback.ObservedAt.IsZero() {
			workerMetrics.ObserveEventLag(cfg.ServiceName, time.Since(feedback.ObservedAt))
		}

		saveCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Second)
		defer cancel()
		saveErr := app.Chunks.SaveFeedback(saveCtx, feedback)
		workerMetrics.FinishEvent(cfg.ServiceName, time.Since(started), saveErr)
		return saveErr
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
