package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-orb-trader/internal/notification/config"
	"golang-orb-trader/internal/notification/delivery/consumer"
	"golang-orb-trader/internal/notification/repository"
	"golang-orb-trader/internal/notification/service"
	"golang-orb-trader/pkg/common"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/postgres"
	"golang-orb-trader/pkg/redis"
	"golang-orb-trader/pkg/telegram"

	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the notification service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Notification Service", logger.Field("name", cfg.App.Name))

	loc, err := time.LoadLocation(cfg.Notification.TimeZone)
	if err != nil {
		appLogger.Fatal("Invalid notification time zone", logger.ErrorField(err))
	}

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Create the consumer group if it doesn't exist
	if err := redisClient.EnsureGroup(ctx, common.RedisStreamTradeEvents, common.RedisStreamGroup); err != nil {
		appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
	}

	telegramNotifier, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
	}

	// Initialize repositories
	tradeLogRepo := repository.NewTradeLogRepository(db.DB)
	accountRepo := repository.NewTradingAccountRepository(db.DB)

	// Initialize services
	notificationSvc := service.NewNotificationService(cfg, appLogger, redisClient.Client, telegramNotifier, loc)
	summarySvc := service.NewSummaryService(appLogger, tradeLogRepo, accountRepo, telegramNotifier, loc)

	// Initialize and start the Redis consumer
	redisConsumer := consumer.NewRedisConsumer(cfg, notificationSvc, summarySvc, loc, appLogger)
	if err := redisConsumer.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start consumer", logger.ErrorField(err))
	}

	appLogger.Info("Notification service started. Waiting for trade events...")

	// Wait for interrupt signal to gracefully shut down the service
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down notification service...")
	cancel()
	redisConsumer.Stop()
	appLogger.Info("Notification service exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "notification-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-notification.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing notification-service CLI: %s\n", err)
		os.Exit(1)
	}
}
