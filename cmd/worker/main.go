package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/bootstrap"
	"github.com/kirillkom/contract-analyzer/internal/config"
	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/usecase"
	"github.com/kirillkom/contract-analyzer/internal/observability/logging"
	"github.com/kirillkom/contract-analyzer/internal/observability/metrics"
)

const serviceName = "contract-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	analysisMetrics := metrics.NewAnalysisMetrics(workerMetrics.Registry(), serviceName)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Observer:             analysisMetrics,
		OnBreakerStateChange: analysisMetrics.BreakerStateChanged,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	queue, err := bootstrap.NewQueue(cfg, app.Executor)
	if err != nil {
		slog.Error("queue_connect_failed", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	metricsServer := startMetricsServer(cfg.WorkerMetricsPort, workerMetrics.Handler())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	remote := usecase.NewRemoteRunUseCase(app.IngestUC, app.Coordinator, queue)

	slog.Info("worker_subscribed", "subject", cfg.NATSRequestSubject, "provider", cfg.Provider)
	err = queue.SubscribeAnalysisRequested(ctx, func(handlerCtx context.Context, req domain.AnalysisRequest) error {
		if !req.RequestedAt.IsZero() {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(req.RequestedAt))
		}
		workerMetrics.StartRequest()
		started := time.Now()
		outcome, err := remote.Handle(handlerCtx, req)
		workerMetrics.FinishRequest(serviceName, time.Since(started), outcome)
		slog.Info("analysis_request_finished",
			"run_id", req.RunID,
			"contract_id", req.ContractID,
			"outcome", outcome,
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func startMetricsServer(port string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	return server
}
