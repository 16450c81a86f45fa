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

	executorrepo "golang-algo-trader/internal/executor/repository"
	executorsvc "golang-algo-trader/internal/executor/service"
	"golang-algo-trader/internal/scheduler/calendar"
	"golang-algo-trader/internal/scheduler/config"
	"golang-algo-trader/internal/scheduler/delivery/consumer"
	delivery "golang-algo-trader/internal/scheduler/delivery/http"
	"golang-algo-trader/internal/scheduler/delivery/ws"
	_ "golang-algo-trader/internal/scheduler/docs"
	"golang-algo-trader/internal/scheduler/repository"
	"golang-algo-trader/internal/scheduler/sandbox"
	"golang-algo-trader/internal/scheduler/service"
	"golang-algo-trader/pkg/broker"
	"golang-algo-trader/pkg/events"
	"golang-algo-trader/pkg/logger"
	"golang-algo-trader/pkg/postgres"
	"golang-algo-trader/pkg/redis"
	"golang-algo-trader/pkg/telegram"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	swagger "github.com/swaggo/echo-swagger"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the scheduling service",
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

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Scheduling Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	db, err := postgres.NewDB(postgres.Config{
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
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	cal, err := calendar.New(cfg.Market, appLogger)
	if err != nil {
		appLogger.Fatal("Invalid market configuration", logger.ErrorField(err))
	}

	// Initialize repositories
	algorithmRepo := repository.NewAlgorithmRepository(db.DB)
	executionRepo := repository.NewAlgorithmExecutionRepository(db.DB)
	assetRepo := executorrepo.NewAssetRepository(db.DB)
	portfolioRepo := executorrepo.NewPortfolioRepository(db.DB)
	signalRepo := executorrepo.NewSignalRepository(db.DB)
	orderRepo := executorrepo.NewExecutionOrderRepository(db.DB)
	queueRepo := executorrepo.NewQueuedOrderRepository(db.DB)
	performanceRepo := executorrepo.NewPerformanceRepository(db.DB)
	connectionRepo := executorrepo.NewBrokerConnectionRepository(db.DB)

	prices := make(map[string]broker.PriceSource, len(cfg.Market.Regions))
	for _, name := range cal.Regions() {
		prices[name] = executorrepo.NewPriceStore(redisClient.Client, assetRepo, name, cfg.Cache.LocalTTL, cfg.Cache.PriceTTL, appLogger)
	}

	var notifier telegram.Notifier = telegram.NewNopNotifier()
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	}

	// Initialize brokers
	brokers := broker.NewRegistry(
		broker.NewPaper(prices[cal.Region(cfg.Market.FallbackRegion).Name]),
		broker.NewZerodha(cfg.Broker.Zerodha, appLogger),
		broker.NewAlpaca(cfg.Broker.Alpaca, appLogger),
	)

	// Initialize services
	publisher := events.NewRedisPublisher(redisClient.Client, cfg.Redis.StreamMaxLen)
	orderExecutor := executorsvc.NewOrderExecutor(brokers, portfolioRepo, orderRepo, connectionRepo, appLogger)
	performanceSvc := executorsvc.NewPerformanceService(performanceRepo)
	aggregator := executorsvc.NewAggregator(brokers, orderExecutor, signalRepo, performanceSvc, appLogger)
	tradeQueueSvc := executorsvc.NewTradeQueueService(queueRepo, orderRepo, signalRepo, aggregator, publisher, cfg.TradeQueue.BatchWindow, cfg.TradeQueue.StaleAfter, appLogger)

	processor := service.NewSignalProcessor(assetRepo, portfolioRepo, signalRepo, orderRepo, orderExecutor, tradeQueueSvc, prices, publisher, appLogger)
	schedulerSvc := service.NewSchedulerService(
		algorithmRepo,
		executionRepo,
		cal,
		sandbox.New(cfg.Scheduler.SandboxTimeout, appLogger),
		processor,
		portfolioRepo,
		assetRepo,
		performanceSvc,
		prices,
		publisher,
		cfg.Scheduler,
		appLogger,
	)
	algorithmSvc := service.NewAlgorithmService(algorithmRepo, signalRepo, performanceSvc, schedulerSvc, cal, appLogger)
	historySvc := service.NewExecutionHistoryService(executionRepo, appLogger)
	queueSvc := service.NewQueueService(tradeQueueSvc, appLogger)

	// Live event feed
	hub := ws.NewHub(appLogger)
	go hub.Run(ctx)
	eventConsumer := consumer.NewEventConsumer(redisClient.Client, hub, notifier, appLogger)
	eventConsumer.Start(ctx)

	// Start scheduler service
	schedulerSvc.Start(ctx)

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	apiV1 := e.Group("/api/v1")
	algorithmsGroup := apiV1.Group("/algorithms")
	delivery.NewAlgorithmHandler(algorithmSvc, appLogger).RegisterRoutes(algorithmsGroup)

	historyHandler := delivery.NewExecutionHistoryHandler(historySvc, appLogger)
	historyHandler.RegisterRoutes(apiV1.Group("/executions"))
	historyHandler.RegisterAlgorithmRoutes(algorithmsGroup)

	delivery.NewQueueHandler(queueSvc, appLogger).RegisterRoutes(apiV1.Group("/queue"))

	e.GET("/ws/events", hub.ServeWS)
	e.GET("/swagger/*", swagger.WrapHandler)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")
	schedulerSvc.Stop()
	eventConsumer.Stop()

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

// @title Algorithm Scheduler API
// @version 1.0
// @description Operations API for scheduled trading algorithms and the trade queue.
// @BasePath /api/v1
func main() {
	rootCmd := &cobra.Command{Use: "scheduling-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-scheduler.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing scheduling-service CLI: %s\n", err)
		os.Exit(1)
	}
}
