package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/executor/repository/repotest"
	executorsvc "golang-algo-trader/internal/executor/service"
	"golang-algo-trader/internal/scheduler/calendar"
	"golang-algo-trader/internal/scheduler/config"
	"golang-algo-trader/internal/scheduler/sandbox"
	"golang-algo-trader/pkg/broker"
	"golang-algo-trader/pkg/common"
	pkgconfig "golang-algo-trader/pkg/config"
	"golang-algo-trader/pkg/events"
	"golang-algo-trader/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buyInfy = `package main

import "algo"

func Run() {
	algo.Buy("INFY", 5, 1500, "dip")
}
`

// liveBroker fills at the requested price and records what it was sent.
type liveBroker struct {
	mu       sync.Mutex
	requests []broker.OrderRequest
}

func (b *liveBroker) Name() string { return common.BrokerZerodha }

func (b *liveBroker) PlaceOrder(_ context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	return &broker.OrderResult{
		OrderID:     fmt.Sprintf("kite-%d", len(b.requests)),
		Status:      "complete",
		FilledPrice: req.Price.Decimal,
		PlacedAt:    time.Now(),
	}, nil
}

func (b *liveBroker) GetQuote(_ context.Context, symbol string) (*broker.Quote, error) {
	return nil, fmt.Errorf("%w: %s", broker.ErrQuoteUnavailable, symbol)
}

func (b *liveBroker) Requests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

type schedulerHarness struct {
	store      *repotest.Store
	calendar   *calendar.Calendar
	algorithms *memAlgorithms
	executions *memExecutions
	recorder   *events.Recorder
	zerodha    *liveBroker
	perf       executorsvc.PerformanceService
	processor  SignalProcessor
	svc        *schedulerService
	portfolio  *entity.Portfolio
	infy       *entity.Asset

	mu  sync.Mutex
	now time.Time
}

func ist(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

// mondayOpen is 09:16 IST on Monday 2024-01-15, one minute after the India open.
func mondayOpen(t *testing.T) time.Time {
	return time.Date(2024, 1, 15, 9, 16, 0, 0, ist(t))
}

func newSchedulerHarness(t *testing.T) *schedulerHarness {
	t.Helper()
	log := logger.NewNop()

	cal, err := calendar.New(pkgconfig.Market{
		FallbackRegion: "india",
		Regions: map[string]pkgconfig.Region{
			"india": {
				Timezone: "Asia/Kolkata", Open: "09:15", Close: "15:30",
				Weekdays: []int{1, 2, 3, 4, 5}, Broker: common.BrokerZerodha, Currency: "INR",
			},
			"us": {
				Timezone: "America/New_York", Open: "09:30", Close: "16:00",
				Weekdays: []int{1, 2, 3, 4, 5}, Broker: common.BrokerAlpaca, Currency: "USD",
			},
		},
	}, log)
	require.NoError(t, err)

	store := repotest.New()
	recorder := events.NewRecorder()
	prices := staticPrices{"INFY": decimal.NewFromInt(1490), "TCS": decimal.NewFromInt(3500)}
	zerodha := &liveBroker{}
	registry := broker.NewRegistry(broker.NewPaper(prices), zerodha)

	executor := executorsvc.NewOrderExecutor(registry, store.PortfolioRepository(), store.ExecutionOrderRepository(), store.BrokerConnectionRepository(), log)
	perf := executorsvc.NewPerformanceService(store.PerformanceRepository())
	agg := executorsvc.NewAggregator(registry, executor, store.SignalRepository(), perf, log)
	queue := executorsvc.NewTradeQueueService(store.QueuedOrderRepository(), store.ExecutionOrderRepository(), store.SignalRepository(), agg, recorder, 5*time.Minute, 15*time.Minute, log)

	sources := map[string]broker.PriceSource{"india": prices}
	processor := NewSignalProcessor(
		store.AssetRepository(),
		store.PortfolioRepository(),
		store.SignalRepository(),
		store.ExecutionOrderRepository(),
		executor,
		queue,
		sources,
		recorder,
		log,
	)

	h := &schedulerHarness{
		store:      store,
		calendar:   cal,
		algorithms: newMemAlgorithms(),
		executions: &memExecutions{},
		recorder:   recorder,
		zerodha:    zerodha,
		perf:       perf,
		processor:  processor,
		portfolio:  store.AddPortfolio(7, common.TradingModePaper, "india", decimal.NewFromInt(10000)),
		infy:       store.AddAsset("INFY", "india", decimal.NewNullDecimal(decimal.NewFromInt(1490))),
		now:        mondayOpen(t),
	}
	store.AddAsset("TCS", "india", decimal.NewNullDecimal(decimal.NewFromInt(3500)))

	svc := NewSchedulerService(
		h.algorithms,
		h.executions,
		cal,
		sandbox.New(2*time.Second, log),
		processor,
		store.PortfolioRepository(),
		store.AssetRepository(),
		perf,
		sources,
		recorder,
		config.Scheduler{PollingInterval: 10 * time.Millisecond, StaleClaimAfter: 15 * time.Minute},
		log,
	)
	h.svc = svc.(*schedulerService)
	h.svc.now = h.clock
	return h
}

func (h *schedulerHarness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *schedulerHarness) setNow(t time.Time) {
	h.mu.Lock()
	h.now = t
	h.mu.Unlock()
}

// addAlgorithm stores an active daily algorithm that buys INFY, after applying mod.
func (h *schedulerHarness) addAlgorithm(t *testing.T, mod func(a *entity.Algorithm)) *entity.Algorithm {
	t.Helper()
	a := &entity.Algorithm{
		UserID:            7,
		Name:              "dip buyer",
		Code:              buyInfy,
		Region:            "india",
		TradingMode:       common.TradingModePaper,
		ExecutionMode:     entity.ExecutionModeDirect,
		SchedulingType:    entity.SchedulingInterval,
		ExecutionInterval: "daily",
		StockUniverse:     []string{"INFY"},
		MaxPositions:      10,
		RunDurationType:   entity.RunForever,
		Status:            entity.AlgorithmStatusActive,
		AutoRun:           true,
		CreatedAt:         h.clock().AddDate(0, 0, -1),
	}
	if mod != nil {
		mod(a)
	}
	require.NoError(t, h.algorithms.Create(context.Background(), a))
	return a
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}
