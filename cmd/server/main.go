package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/regard-engine/internal/ai"
	"github.com/regard-engine/internal/config"
	"github.com/regard-engine/internal/engine"
	"github.com/regard-engine/internal/handler"
	"github.com/regard-engine/internal/marketdata"
	"github.com/regard-engine/internal/middleware"
	"github.com/regard-engine/internal/models"
	"github.com/regard-engine/internal/repository"
	"github.com/regard-engine/internal/service"
	"github.com/regard-engine/internal/worker"
)

// Build info (injected at build time via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := middleware.NewLogger(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	// Initialize Redis
	rdb := initRedis(cfg)

	// Auto migrate database
	if err := autoMigrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// Initialize repositories
	tradeRepo := repository.NewClosedTradeRepository(db)
	positionRepo := repository.NewOpenPositionRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)

	// Market data: Stooq client behind a redis-backed price service
	mdClient := marketdata.NewClient(cfg.MarketData.BaseURL, logger)
	priceService := service.NewPriceService(rdb, mdClient, logger)

	// Optional AI scorer; nil when no key is configured
	aiTimeout := time.Duration(cfg.Scoring.AI.TimeoutSeconds) * time.Second
	scorer := ai.NewClient(cfg.Scoring.AI.BaseURL, cfg.Scoring.AI.APIKey, cfg.Scoring.AI.Model, aiTimeout, logger)

	// Scoring engine
	var statScorer engine.StatScorer
	if scorer != nil {
		statScorer = scorer
	}
	eng := engine.New(engine.Config{
		BenchmarkSymbol:  cfg.Scoring.BenchmarkSymbol,
		ReferenceCapital: decimal.NewFromFloat(cfg.Scoring.ReferenceCapital),
		LookupTimeout:    time.Duration(cfg.Scoring.LookupTimeoutSeconds) * time.Second,
		AITimeout:        aiTimeout,
	}, priceService, statScorer, logger)

	// Services and handlers
	scoreService := service.NewScoreService(db, eng, tradeRepo, positionRepo, summaryRepo, logger)
	regardHandler := handler.NewRegardHandler(scoreService, logger)
	streamHandler := handler.NewStreamHandler(scoreService, logger)

	// Open-position mark refresh worker
	refreshWorker := worker.NewRefreshWorker(
		positionRepo,
		priceService,
		time.Duration(cfg.Worker.RefreshIntervalSeconds)*time.Second,
		time.Duration(cfg.Worker.StalenessMinutes)*time.Minute,
		logger,
	)
	go refreshWorker.Start()

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(corsMiddleware())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
			"time":       time.Now().Unix(),
		})
	})

	// API v1 routes
	authMiddleware := middleware.AuthMiddleware(cfg.Auth.JWTSecret)
	v1 := router.Group("/api/v1")
	{
		regardHandler.RegisterRoutes(v1, authMiddleware)
		streamHandler.RegisterRoutes(v1, authMiddleware)
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	refreshWorker.Stop()

	// Graceful shutdown with 10 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	if err := rdb.Close(); err != nil {
		logger.Warn("error closing redis connection", zap.Error(err))
	}

	logger.Info("server exited properly")
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ClosedTrade{},
		&models.OpenPosition{},
		&models.RegardSummary{},
	)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
