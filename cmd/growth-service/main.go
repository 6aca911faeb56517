package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/growthwatch/platform/pkg/alerts"
	"github.com/growthwatch/platform/pkg/common/config"
	"github.com/growthwatch/platform/pkg/common/database"
	"github.com/growthwatch/platform/pkg/common/kafka"
	"github.com/growthwatch/platform/pkg/common/logger"
	"github.com/growthwatch/platform/pkg/gateway/auth"
	"github.com/growthwatch/platform/pkg/gateway/routes"
	"github.com/growthwatch/platform/pkg/growth"
	"github.com/growthwatch/platform/pkg/identity"
	"github.com/growthwatch/platform/pkg/observability/metrics"
	"github.com/growthwatch/platform/pkg/registry"
)

func main() {
	logger.Init()
	cfg := config.Load()
	metrics.Init()

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.ClosePostgres()

	identityRepo := identity.NewRepository(db)
	registryRepo := registry.NewRepository(db)
	if cfg.AutoMigrate {
		if err := identityRepo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate identity tables")
		}
		if err := registryRepo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate registry tables")
		}
	}

	redisClient := database.GetRedis(cfg)
	defer database.CloseRedis()

	tables, err := growth.LoadTables(cfg.ReferenceTablesPath)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.ReferenceTablesPath).Fatal("Failed to load reference tables")
	}

	var events registry.EventPublisher = registry.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.GrowthEventTopic)
		defer producer.Close()
		events = producer
	} else {
		logger.Log.Warn("KAFKA_BROKERS not set, domain events are disabled")
	}

	tokens, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL, auth.NewRevocationStore(redisClient))
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid JWT configuration")
	}

	identityService := identity.NewService(identityRepo)
	registryService := registry.NewService(
		registryRepo,
		growth.NewClassifier(tables),
		identityService,
		events,
		registry.NewReportCache(redisClient, cfg.PublicReportCacheTTL),
		registry.Options{CascadeChildDelete: cfg.CascadeChildDelete},
	)

	router := routes.NewRouter(routes.Dependencies{
		Identity: identityService,
		Registry: registryService,
		Alerts:   alerts.NewService(alerts.NewStore(redisClient)),
		Tokens:   tokens,
		Ready: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			if redisClient != nil {
				if err := redisClient.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
			}
			return nil
		},
		MaxBodyBytes:    cfg.MaxRequestBody,
		PublicRateRPS:   cfg.PublicRateLimitRPS,
		PublicRateBurst: cfg.PublicRateLimitBurst,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":            cfg.ServerHost,
			"port":            cfg.ServerPort,
			"cascade_deletes": cfg.CascadeChildDelete,
			"redis":           redisClient != nil,
		}).Info("Growth service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down growth service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Growth service stopped")
}
