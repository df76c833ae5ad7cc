// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"creator-match/internal/app"
	"creator-match/internal/common/camunda"
	"creator-match/internal/common/config"
	"creator-match/internal/common/logger"
	"creator-match/internal/common/observability"

	psp "creator-match/internal/workers/matching/project-store-profile"
	rcm "creator-match/internal/workers/matching/run-creator-match"
)

const recordGCInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("environment", cfg.App.Environment))

	if err := cfg.RequireInfrastructure(); err != nil {
		zapLog.Fatal("infrastructure config incomplete", zap.Error(err))
	}

	obs := observability.NewWithOptions(observability.Options{
		ServiceName:       "worker-manager",
		CollectorEndpoint: cfg.Tracing.CollectorEndpoint,
		SampleRatio:       cfg.Tracing.SampleRatio,
	})
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := app.Build(ctx, cfg, log, app.WithConnectRetry(uint(cfg.Camunda.ConnectRetries), 2*time.Second))
	if err != nil {
		zapLog.Fatal("matching engine init failed", zap.Error(err))
	}
	defer engine.Close()
	engine.StartMaintenance(ctx, recordGCInterval)

	zc, err := camunda.Connect(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		RetryConfig: &camunda.RetryConfig{
			MaxRetries: uint(cfg.Camunda.ConnectRetries),
			BaseDelay:  2 * time.Second,
			MaxJitter:  500 * time.Millisecond,
		},
	}, zapLog)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	registry := camunda.NewRegistry(zapLog)

	run := rcm.NewHandler(rcm.LoadConfig(cfg), engine.Orchestrator, obs, log)
	registry.Start(zc.GetClient(), rcm.TaskType, config.GetWorkerConfig(cfg, rcm.TaskType), run.Handle)

	project := psp.NewHandler(psp.LoadConfig(cfg), engine.Projector, obs, log)
	registry.Start(zc.GetClient(), psp.TaskType, config.GetWorkerConfig(cfg, psp.TaskType), project.Handle)

	zapLog.Info("workers registered", zap.Strings("taskTypes", registry.Running()))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		failed := map[string]string{}
		for name, err := range engine.Ready(r.Context()) {
			failed[name] = err.Error()
		}
		if err := zc.HealthCheck(r.Context()); err != nil {
			failed["zeebe"] = err.Error()
		}
		if len(failed) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not ready", "failed": failed})
			return
		}
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status":  "ready",
			"workers": registry.Running(),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.HealthAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	registry.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zc.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
