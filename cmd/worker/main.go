package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scanwell/digidoc/internal/bootstrap"
	"github.com/scanwell/digidoc/internal/config"
	"github.com/scanwell/digidoc/internal/core/domain"
	"github.com/scanwell/digidoc/internal/observability/logging"
	"github.com/scanwell/digidoc/internal/observability/metrics"
)

const serviceName = "digidoc-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:   logger,
		Observer: workerMetrics.Observer(serviceName),
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsHandler(workerMetrics),
	}
	go func() {
		logger.Info("metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	requeueInterrupted(ctx, app, logger)

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentQueued(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		workerMetrics.StartDocument()
		start := time.Now()

		if doc, getErr := app.Repo.GetByID(processCtx, documentID); getErr == nil {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(doc.CreatedAt))
		}

		processErr := app.ProcessUC.ProcessByID(processCtx, documentID)
		workerMetrics.FinishDocument(serviceName, time.Since(start), processErr)
		return processErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// requeueInterrupted republishes documents a crashed worker left behind.
// Each resumes from its persisted state, so no completed work is repeated.
func requeueInterrupted(ctx context.Context, app *bootstrap.App, logger *slog.Logger) {
	docs, err := app.Repo.ListByStates(ctx,
		domain.StatePending,
		domain.StatePreprocessing,
		domain.StateMatching,
		domain.StateExtracting,
	)
	if err != nil {
		logger.Error("startup requeue scan failed", "error", err)
		return
	}
	for _, doc := range docs {
		if err := app.Queue.PublishDocumentQueued(ctx, doc.ID); err != nil {
			logger.Error("startup requeue publish failed", "document_id", doc.ID, "error", err)
			continue
		}
		logger.Info("requeued interrupted document", "document_id", doc.ID, "state", doc.State)
	}
}
