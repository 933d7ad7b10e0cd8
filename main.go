package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stockledger/server/internal/api"
	"stockledger/server/internal/config"
	"stockledger/server/internal/database"
	"stockledger/server/internal/events"
	"stockledger/server/internal/models"
	"stockledger/server/internal/services"
	"stockledger/server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; production reads the real environment.
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := utils.NewLogger(cfg.LogLevel)
	if envErr != nil {
		logger.Debug(".env not found, using process environment")
	}
	logger.WithField("database_url", redactURL(cfg.DatabaseURL)).Info("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PostgresOptions{Tracing: cfg.DBTracing}, logger)
	if err != nil {
		logger.WithError(err).Fatal("postgres connection failed")
	}
	defer database.ClosePostgres(db)

	if err := models.AutoMigrate(db); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}
	logger.Info("database migrations completed")

	var locker services.OrderLocker
	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		redisClient, err = database.ConnectRedis(cfg.RedisURL, cfg.RedisSentinelAddrs, cfg.RedisMasterName, logger)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, order confirmation relies on row locks only")
		} else {
			defer database.CloseRedis(redisClient)
			locker = services.NewRedisOrderLocker(redisClient, cfg.OrderLockTTL, logger)
		}
	}

	hub := api.NewHub(logger)
	go hub.Run(ctx)

	// With Kafka the hub is fed by the relay so every instance sees every
	// write; without it the hub is published to directly.
	var publisher events.Publisher = hub
	if cfg.KafkaEnabled() {
		kafkaCfg := events.KafkaConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			Username: cfg.KafkaUsername,
			Password: cfg.KafkaPassword,
			CACert:   cfg.KafkaCACert,
		}
		kafkaPublisher, err := events.NewKafkaPublisher(kafkaCfg, logger)
		if err != nil {
			logger.WithError(err).Fatal("kafka publisher setup failed")
		}
		defer kafkaPublisher.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := kafkaPublisher.Ping(pingCtx); err != nil {
			logger.WithError(err).Warn("kafka brokers not reachable yet")
		}
		cancel()

		relay := api.NewKafkaWSConsumer(kafkaCfg, cfg.KafkaWSGroupID, hub, logger)
		relay.Start(ctx)
		defer relay.Stop()

		publisher = kafkaPublisher
	}

	svc := api.Services{
		Catalog:    services.NewCatalogService(db, logger),
		Ledger:     services.NewLedgerService(db, logger, publisher),
		Orders:     services.NewPurchaseOrderService(db, logger, publisher, locker),
		Outbound:   services.NewOutboundService(db, logger),
		Snapshots:  services.NewSnapshotService(db, logger, publisher),
		Variance:   services.NewVarianceService(db, logger),
		Stocktakes: services.NewStocktakeService(db, logger, publisher),
		Inputs:     services.NewInputsService(db),
	}

	healthCheck := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
		Hub:            hub,
		Health:         healthCheck,
	}, svc)

	if cfg.GRPCPort != "" {
		grpcHealth := api.NewGRPCHealthServer(healthCheck, 15*time.Second, logger)
		go grpcHealth.Watch(ctx)
		go func() {
			lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
			if err != nil {
				logger.WithError(err).Fatal("grpc listen failed")
			}
			logger.WithField("port", cfg.GRPCPort).Info("grpc health server starting")
			if err := grpcHealth.Server.Serve(lis); err != nil {
				logger.WithError(err).Error("grpc server stopped")
			}
		}()
		defer grpcHealth.Server.GracefulStop()
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithFields(logrus.Fields{
			"port":        cfg.ServerPort,
			"environment": cfg.Environment,
		}).Info("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown incomplete")
	}
}

// redactURL hides credentials in a connection string.
func redactURL(raw string) string {
	at := strings.Index(raw, "@")
	scheme := strings.Index(raw, "://")
	if at > 0 && scheme > 0 && scheme < at {
		return raw[:scheme+3] + "***@" + raw[at+1:]
	}
	return raw
}
