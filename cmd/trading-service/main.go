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

	"golang-orb-trader/internal/trading/config"
	delivery "golang-orb-trader/internal/trading/delivery/http"
	_ "golang-orb-trader/internal/trading/docs"
	"golang-orb-trader/internal/trading/orb"
	"golang-orb-trader/internal/trading/repository"
	"golang-orb-trader/internal/trading/service"
	"golang-orb-trader/pkg/common"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/metrics"
	"golang-orb-trader/pkg/postgres"
	"golang-orb-trader/pkg/redis"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	swagger "github.com/swaggo/echo-swagger"
	"google.golang.org/genai"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the trading service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	sessionCfg, err := cfg.SessionConfig()
	if err != nil {
		log.Fatalf("Invalid session configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Trading Service",
		logger.Field("name", cfg.App.Name),
		logger.StringField("env", cfg.App.Env),
		logger.StringField("ai_provider", cfg.AI.Provider))

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

	if err := redisClient.EnsureGroup(ctx, common.RedisStreamTradeEvents, common.RedisStreamGroup); err != nil {
		appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
	}

	recorder := metrics.New(prometheus.DefaultRegisterer)

	// Initialize repositories
	accountRepo := repository.NewTradingAccountRepository(db.DB)
	tickerRepo := repository.NewTickerSelectionRepository(db.DB)
	stockRepo := repository.NewDailyORBStockRepository(db.DB)
	regimeRepo := repository.NewMarketRegimeRepository(db.DB)
	stateRepo := repository.NewTradingStateRepository(db.DB)
	tradeLogRepo := repository.NewTradeLogRepository(db.DB)
	rangeRepo := repository.NewOpeningRangeRepository(redisClient.Client)
	scanLock := repository.NewScanLockRepository(redisClient.Client)
	events := repository.NewTradeEventRepository(redisClient.Client, cfg.Redis.StreamMaxLen)
	marketData := repository.NewAlpacaMarketDataRepository(cfg, appLogger, recorder)
	broker := repository.NewAlpacaBrokerRepository(cfg, appLogger, recorder)

	// Initialize AI provider
	var primaryScorer orb.Scorer
	switch cfg.AI.Provider {
	case "gemini":
		genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey:  cfg.Gemini.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini AI client", logger.ErrorField(err))
		}
		primaryScorer = repository.NewGeminiAdvisoryRepository(cfg, appLogger, recorder, genAiClient)
	case "rule":
	default:
		appLogger.Fatal("Invalid AI provider specified in config", logger.StringField("provider", cfg.AI.Provider))
	}
	scorer := service.NewAdvisoryScorer(primaryScorer, orb.RuleScorer{Limits: cfg.Limits()}, cfg.Gemini.Timeout, appLogger)

	// Initialize services
	scannerSvc := service.NewScannerService(cfg, sessionCfg, appLogger, recorder, marketData, stockRepo, regimeRepo, scanLock, events)
	dispatcherSvc := service.NewDispatcherService(appLogger, recorder, broker, tradeLogRepo, events)
	sessionSvc := service.NewSessionService(cfg, sessionCfg, appLogger, recorder, marketData, broker,
		stateRepo, tradeLogRepo, tickerRepo, rangeRepo, events, dispatcherSvc, scorer)
	engineSvc := service.NewEngineService(cfg, sessionCfg, appLogger, recorder, accountRepo, marketData, scannerSvc, sessionSvc)
	accountSvc := service.NewAccountService(appLogger, accountRepo, tradeLogRepo, tickerRepo, sessionSvc)

	// Start the trading engine
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engineSvc.Start(ctx)
	}()

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true
	e.Validator = delivery.NewRequestValidator()
	e.Use(middleware.Recover())

	// Initialize handlers and routes
	apiV1 := e.Group("/api/v1")

	stockHandler := delivery.NewStockHandler(scannerSvc, sessionCfg.Location, appLogger)
	stockHandler.RegisterRoutes(apiV1.Group("/stocks"))
	stockHandler.RegisterRegimeRoutes(apiV1.Group("/regime"))

	accountHandler := delivery.NewAccountHandler(accountSvc, appLogger)
	accountHandler.RegisterRoutes(apiV1.Group("/accounts"))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", swagger.WrapHandler)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	select {
	case <-engineDone:
	case <-shutdownCtx.Done():
		appLogger.Warn("Trading engine did not stop in time")
	}

	appLogger.Info("Server exiting")
}

// @title ORB Trading API
// @version 1.0
// @description Opening range breakout engine: qualified stocks, market regime and per-account risk controls.
// @BasePath /api/v1
func main() {
	rootCmd := &cobra.Command{Use: "trading-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-trading.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing trading-service CLI: %s\n", err)
		os.Exit(1)
	}
}
