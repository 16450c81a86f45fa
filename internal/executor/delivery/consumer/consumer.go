package consumer

import (
	"context"
	"sync"
	"time"

	"golang-algo-trader/internal/executor/config"
	"golang-algo-trader/internal/executor/service"
	"golang-algo-trader/pkg/logger"
	"golang-algo-trader/pkg/telegram"
	"golang-algo-trader/pkg/utils"
)

const panicBackoff = time.Second

// Runner drives the execution service background loops: the batch aggregator tick and the price
// stream reader.
type Runner struct {
	cfg        *config.Config
	tradeQueue service.TradeQueueService
	priceFeed  service.PriceFeedService
	notifier   telegram.Notifier
	logger     *logger.Logger
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

func NewRunner(
	cfg *config.Config,
	tradeQueue service.TradeQueueService,
	priceFeed service.PriceFeedService,
	notifier telegram.Notifier,
	log *logger.Logger,
) *Runner {
	return &Runner{
		cfg:        cfg,
		tradeQueue: tradeQueue,
		priceFeed:  priceFeed,
		notifier:   notifier,
		logger:     log,
		stopChan:   make(chan struct{}),
	}
}

// Start registers every loop. It returns immediately.
func (c *Runner) Start(ctx context.Context) {
	c.logger.Info("Execution runner started")

	interval := c.cfg.TradeQueue.CheckInterval
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := c.cfg.TradeQueue.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	c.RegisterTickerHandler(ctx, c.processBatches, interval, timeout, "trade-queue")

	if c.priceFeed != nil {
		c.RegisterStreamHandler(ctx, c.priceFeed.ProcessPrices, c.cfg.Executor.PriceStream, c.cfg.Executor.PriceStreamTimeout)
	}
}

func (c *Runner) processBatches(ctx context.Context) {
	if _, err := c.tradeQueue.ProcessDueBatches(ctx); err != nil {
		c.logger.Error("Failed to process due batches", logger.ErrorField(err))
		msg := telegram.FormatErrorAlertMessage(time.Now(), "trade-queue", err.Error(), "-")
		if nerr := c.notifier.SendMessage(msg); nerr != nil {
			c.logger.Error("Failed to send telegram alert", logger.ErrorField(nerr))
		}
	}
}

func (c *Runner) RegisterStreamHandler(ctx context.Context, fn func(ctx context.Context), streamName string, timeout time.Duration) {
	c.logger.Info("Registering stream handler", logger.Field("stream", streamName))
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c.wg.Add(1)
	utils.GoSafe(c.logger, func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stream handler stopping due to context cancellation", logger.Field("stream", streamName))
				return
			case <-c.stopChan:
				c.logger.Info("Stream handler stopping", logger.Field("stream", streamName))
				return
			default:
			}

			if c.runOnce(ctx, fn, timeout, streamName) {
				continue
			}
			// A panicking reader would otherwise spin.
			select {
			case <-time.After(panicBackoff):
			case <-ctx.Done():
			case <-c.stopChan:
			}
		}
	})
}

func (c *Runner) RegisterTickerHandler(ctx context.Context, fn func(ctx context.Context), interval time.Duration, timeout time.Duration, name string) {
	c.logger.Info("Registering ticker handler",
		logger.Field("name", name),
		logger.Field("interval", interval),
		logger.Field("timeout", timeout))
	c.wg.Add(1)
	utils.GoSafe(c.logger, func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.runOnce(ctx, fn, timeout, name)
			case <-ctx.Done():
				c.logger.Info("Ticker handler stopping due to context cancellation", logger.Field("name", name))
				return
			case <-c.stopChan:
				c.logger.Info("Ticker handler stopping", logger.Field("name", name))
				return
			}
		}
	})
}

// runOnce runs one iteration under its own timeout. A panic is logged and reported as false so
// the loop keeps going.
func (c *Runner) runOnce(ctx context.Context, fn func(ctx context.Context), timeout time.Duration, name string) (ok bool) {
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer utils.Recover(c.logger, name)

	fn(ctxTimeout)
	return true
}

// Stop waits for the in-flight iteration of every loop.
func (c *Runner) Stop() {
	close(c.stopChan)
	c.wg.Wait()
	c.logger.Info("Execution runner stopped")
}
