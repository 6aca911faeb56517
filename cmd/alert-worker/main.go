package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/growthwatch/platform/pkg/alerts"
	"github.com/growthwatch/platform/pkg/common/config"
	"github.com/growthwatch/platform/pkg/common/database"
	"github.com/growthwatch/platform/pkg/common/kafka"
	"github.com/growthwatch/platform/pkg/common/logger"
	"github.com/growthwatch/platform/pkg/observability/metrics"
)

// alert-worker consumes growth events and keeps the recent danger alerts of
// every facility in Redis, where the growth service reads them.
func main() {
	logger.Init()
	cfg := config.Load()
	metrics.Init()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Log.Fatal("KAFKA_BROKERS is required")
	}
	if !cfg.RedisEnabled {
		logger.Log.Fatal("REDIS_ENABLED must be true for the alert worker")
	}

	redisClient := database.GetRedis(cfg)
	defer database.CloseRedis()

	service := alerts.NewService(alerts.NewStore(redisClient))

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.GrowthEventTopic, cfg.AlertGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Consume(ctx, service.HandleEvent); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Fatal("Consumer error")
		}
	}()

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.AlertWorkerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"topic": cfg.GrowthEventTopic,
			"group": cfg.AlertGroupID,
			"port":  cfg.AlertWorkerPort,
		}).Info("Alert worker started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down alert worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Alert worker stopped")
}
