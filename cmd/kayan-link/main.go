package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/getkayan/kayan-link/api"
	"github.com/getkayan/kayan-link/core/config"
	"github.com/getkayan/kayan-link/core/features"
	"github.com/getkayan/kayan-link/core/health"
	"github.com/getkayan/kayan-link/core/linking"
	"github.com/getkayan/kayan-link/core/logger"
	"github.com/getkayan/kayan-link/core/telemetry"
	"github.com/getkayan/kayan-link/kgorm"
)

const version = "0.1.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.InitLogger(cfg.LogLevel)
	defer logger.Log.Sync()

	logger.Log.Info("Starting Kayan Link Service",
		zap.Int("port", cfg.Port),
		zap.String("db_type", cfg.DBType),
	)

	ctx := context.Background()

	// Tracing is off unless an OTLP endpoint is configured.
	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "kayan-link",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   1.0,
	})
	if err != nil {
		logger.Log.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer tel.Shutdown(ctx)

	store, err := kgorm.NewStorage(cfg.DBType, cfg.DSN, nil)
	if err != nil {
		logger.Log.Fatal("failed to initialize storage", zap.Error(err))
	}
	repo := store.(*kgorm.Repository)

	// The gate reads per-application overrides from storage, falling back
	// to the configured default. Redis fronts it when available.
	defaults := map[string]bool{features.AccountLinking: cfg.AccountLinkingEnabled}
	var gate features.Gate = features.NewStoreGate(repo, features.NewStaticGate(defaults))

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		gate = features.NewRedisGate(redisClient, gate, "kayanlink:features:", cfg.FeatureCacheTTL)
		logger.Log.Info("feature gate cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	}

	manager := linking.NewManager(repo, gate,
		linking.WithAuditStore(repo),
		linking.WithTracer(tel.Tracer()),
	)

	h := api.NewHandler(manager)

	// Setup Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h.RegisterRoutes(e.Group(""))

	hm := health.NewManager(version)
	hm.Register(health.NewDatabaseChecker("database", func(ctx context.Context) error {
		db, err := repo.DB().DB()
		if err != nil {
			return err
		}
		return db.PingContext(ctx)
	}))
	if redisClient != nil {
		hm.Register(health.NewRedisChecker("redis", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return redisClient.Ping(ctx).Err()
		}))
	}
	e.GET("/healthz", echo.WrapHandler(hm.LiveHandler()))
	e.GET("/ready", echo.WrapHandler(hm.ReadyHandler()))

	logger.Log.Info("Server is starting", zap.Int("port", cfg.Port))
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Log.Fatal("server failed to start", zap.Error(err))
	}
}
