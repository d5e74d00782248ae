package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/snake-game/backend/internal/auth"
	"github.com/snake-game/backend/internal/config"
	"github.com/snake-game/backend/internal/handler"
	"github.com/snake-game/backend/internal/kafka"
	"github.com/snake-game/backend/internal/metrics"
	"github.com/snake-game/backend/internal/postgres"
	"github.com/snake-game/backend/internal/redis"
	"github.com/snake-game/backend/internal/service"
	"github.com/snake-game/backend/internal/session"
	"github.com/snake-game/backend/internal/watch"
	"github.com/snake-game/backend/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	ranking, err := redis.NewRanking(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer ranking.Close()
	logger.Info("connected to Redis")

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresRepo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := postgresRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize metrics
	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	// Initialize session store and WebSocket hub
	sessionStore := session.NewStore()
	wsHub := watch.NewHub(logger, m)
	logger.Info("watch hub initialized")

	// Initialize services
	tokenManager := auth.NewManager(&cfg.Auth)
	authService := service.NewAuthService(postgresRepo, tokenManager, logger)
	leaderboardService := service.NewLeaderboardService(
		postgresRepo,
		ranking,
		&cfg.Leaderboard,
		logger,
	)
	watchService := service.NewWatchService(
		sessionStore,
		wsHub,
		postgresRepo,
		ranking,
		&cfg.Session,
		m,
		logger,
	)

	// Rebuild rankings from the score store on startup (recovery)
	rankingSync := worker.NewRankingSync(
		postgresRepo,
		ranking,
		&cfg.Leaderboard,
		logger,
	)
	logger.Info("rebuilding rankings from score store")
	rankingSync.RunOnce(ctx)

	// Start ranking sync worker
	if err := rankingSync.Start(ctx); err != nil {
		logger.Error("failed to start ranking sync worker", "error", err)
		os.Exit(1)
	}

	// Start liveness sweeper
	sweeper := worker.NewSweeper(sessionStore, wsHub, &cfg.Session, logger, m)
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("failed to start liveness sweeper", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumer for high-load score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, leaderboardService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(handler.Deps{
		Auth:        authService,
		Leaderboard: leaderboardService,
		Watch:       watchService,
		Tokens:      tokenManager,
		Hub:         wsHub,
		Registry:    promRegistry,
		DB:          postgresRepo,
		Cache:       ranking,
		Logger:      logger,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop workers
	if err := sweeper.Stop(); err != nil {
		logger.Error("failed to stop liveness sweeper", "error", err)
	}
	if err := rankingSync.Stop(); err != nil {
		logger.Error("failed to stop ranking sync worker", "error", err)
	}

	// Close observer connections
	wsHub.Stop()

	logger.Info("server stopped")
}
