// cmd/match-api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"creator-match/internal/api"
	"creator-match/internal/app"
	"creator-match/internal/common/config"
	"creator-match/internal/common/logger"
	"creator-match/internal/common/observability"
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

	obs := observability.NewWithOptions(observability.Options{
		ServiceName:       "match-api",
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

	srv := api.NewServer(api.DepsFromApp(engine), log)
	go func() {
		zapLog.Info("match API listening", zap.String("address", cfg.Server.Address))
		if err := srv.Start(cfg.Server.Address); err != nil {
			zapLog.Error("match API failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, draining requests...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping match API", zap.Error(err))
	}
	zapLog.Info("match API stopped")
}
