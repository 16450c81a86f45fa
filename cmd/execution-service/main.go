package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang-algo-trader/internal/executor/config"
	"golang-algo-trader/internal/executor/delivery/consumer"
	"golang-algo-trader/internal/executor/repository"
	"golang-algo-trader/internal/executor/service"
	"golang-algo-trader/pkg/broker"
	"golang-algo-trader/pkg/events"
	"golang-algo-trader/pkg/logger"
	"golang-algo-trader/pkg/postgres"
	"golang-algo-trader/pkg/redis"
	"golang-algo-trader/pkg/telegram"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the execution service",
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

	appLogger.Info("Starting Execution Service", zap.String("name", cfg.App.Name))

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
		appLogger.Fatal("Failed to initialize database", zap.Error(err))
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
		appLogger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// MKSTREAM creates the price stream if it doesn't exist
	if err := redisClient.XGroupCreateMkStream(context.Background(), cfg.Executor.PriceStream, cfg.Executor.PriceStreamGroup, "$").Err(); err != nil {
		if !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
		}
	}

	// Initialize repositories
	assetRepo := repository.NewAssetRepository(db.DB)
	portfolioRepo := repository.NewPortfolioRepository(db.DB)
	signalRepo := repository.NewSignalRepository(db.DB)
	orderRepo := repository.NewExecutionOrderRepository(db.DB)
	queueRepo := repository.NewQueuedOrderRepository(db.DB)
	performanceRepo := repository.NewPerformanceRepository(db.DB)
	connectionRepo := repository.NewBrokerConnectionRepository(db.DB)

	priceStores := make(map[string]service.PriceWriter, len(cfg.Market.Regions))
	var fallbackPrices *repository.PriceStore
	for name := range cfg.Market.Regions {
		store := repository.NewPriceStore(redisClient.Client, assetRepo, name, cfg.Cache.LocalTTL, cfg.Cache.PriceTTL, appLogger)
		priceStores[name] = store
		if name == cfg.Market.FallbackRegion {
			fallbackPrices = store
		}
	}
	if fallbackPrices == nil {
		appLogger.Fatal("Fallback region has no market config", zap.String("region", cfg.Market.FallbackRegion))
	}

	var notifier telegram.Notifier = telegram.NewNopNotifier()
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", zap.Error(err))
		}
	}

	// Initialize brokers
	brokers := broker.NewRegistry(
		broker.NewPaper(fallbackPrices),
		broker.NewZerodha(cfg.Broker.Zerodha, appLogger),
		broker.NewAlpaca(cfg.Broker.Alpaca, appLogger),
	)

	// Initialize services
	publisher := events.NewRedisPublisher(redisClient.Client, cfg.Redis.StreamMaxLen)
	orderExecutor := service.NewOrderExecutor(brokers, portfolioRepo, orderRepo, connectionRepo, appLogger)
	performanceSvc := service.NewPerformanceService(performanceRepo)
	aggregator := service.NewAggregator(brokers, orderExecutor, signalRepo, performanceSvc, appLogger)
	tradeQueueSvc := service.NewTradeQueueService(queueRepo, orderRepo, signalRepo, aggregator, publisher, cfg.TradeQueue.BatchWindow, cfg.TradeQueue.StaleAfter, appLogger)

	hostname, _ := os.Hostname()
	priceFeedSvc := service.NewPriceFeedService(
		redisClient.Client,
		cfg.Executor.PriceStream,
		cfg.Executor.PriceStreamGroup,
		"executor-"+hostname,
		priceStores,
		cfg.Market.FallbackRegion,
		appLogger,
	)

	runner := consumer.NewRunner(cfg, tradeQueueSvc, priceFeedSvc, notifier, appLogger)
	runner.Start(ctx)

	appLogger.Info("Execution service started. Waiting for due batches...")

	// Wait for interrupt signal to gracefully shut down the service
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down execution service...")
	cancel()
	runner.Stop()
	appLogger.Info("Execution service stopped.")
}

func main() {
	rootCmd := &cobra.Command{Use: "execution-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-executor.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing execution-service CLI: %s\n", err)
		os.Exit(1)
	}
}
