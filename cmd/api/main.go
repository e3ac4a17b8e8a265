package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DevChiJay/url-shortener-with-QR/internal/clock"
	"github.com/DevChiJay/url-shortener-with-QR/internal/config"
	"github.com/DevChiJay/url-shortener-with-QR/internal/handler"
	"github.com/DevChiJay/url-shortener-with-QR/internal/middleware"
	"github.com/DevChiJay/url-shortener-with-QR/internal/migrations"
	"github.com/DevChiJay/url-shortener-with-QR/internal/qr"
	"github.com/DevChiJay/url-shortener-with-QR/internal/repository"
	"github.com/DevChiJay/url-shortener-with-QR/internal/service"
	"github.com/DevChiJay/url-shortener-with-QR/internal/shortcode"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Миграции схемы
	migrator, err := migrations.New(cfg.DB.DSN(), logger)
	if err != nil {
		logger.Fatal("Failed to init migrations", zap.Error(err))
	}
	if err := migrator.Up(); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Подключение к Redis
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Инициализация репозиториев
	urlRepo := repository.NewUrlRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	cacheRepo := repository.NewCacheRepository(redis)

	// Инициализация сервисов
	clk := clock.System{}
	shortenerService := service.NewShortenerService(
		urlRepo,
		statsRepo,
		cacheRepo,
		shortcode.New(),
		qr.NewPNGRenderer(),
		clk,
		cfg.Quota.LinkLimit,
		logger,
	)
	statisticsService := service.NewStatisticsService(urlRepo, statsRepo, clk)

	// Инициализация процессора кликов (Worker Pool)
	clickProcessor := service.NewClickProcessor(statsRepo, urlRepo, clk, logger)
	clickProcessor.Start()
	defer clickProcessor.Stop()

	// Инициализация middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})

	if len(cfg.Auth.APIKeys) > 0 {
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	}

	// Настройка роутера
	router := handler.NewRouter(
		shortenerService,
		statisticsService,
		clickProcessor,
		rateLimiter,
		cfg.Auth.APIKeys,
		cfg.App.BaseURL,
		logger,
	)

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
