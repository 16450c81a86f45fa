package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang-algo-trader/internal/entity"
	executorrepo "golang-algo-trader/internal/executor/repository"
	executorsvc "golang-algo-trader/internal/executor/service"
	"golang-algo-trader/internal/scheduler/autostop"
	"golang-algo-trader/internal/scheduler/calendar"
	"golang-algo-trader/internal/scheduler/config"
	"golang-algo-trader/internal/scheduler/repository"
	"golang-algo-trader/internal/scheduler/sandbox"
	"golang-algo-trader/internal/scheduler/schedule"
	"golang-algo-trader/pkg/broker"
	"golang-algo-trader/pkg/common"
	"golang-algo-trader/pkg/events"
	"golang-algo-trader/pkg/logger"
	"golang-algo-trader/pkg/utils"
)

// TickReport summarizes one ProcessAlgorithms pass.
type TickReport struct {
	Evaluated int `json:"evaluated"`
	Ran       int `json:"ran"`
	Stopped   int `json:"stopped"`
	Failed    int `json:"failed"`
}

// RunReport is the outcome of one algorithm run.
type RunReport struct {
	ExecutionID uint                   `json:"execution_id"`
	Status      entity.ExecutionStatus `json:"status"`
	Result      *ProcessResult         `json:"result"`
	Logs        []string               `json:"logs"`
	Values      map[string]string      `json:"values,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// SchedulerService drives periodic evaluation of every active algorithm.
type SchedulerService interface {
	// Start launches the polling loop and returns immediately.
	Start(ctx context.Context)
	// Stop ends the loop after the in-flight tick finishes.
	Stop()
	ProcessAlgorithms(ctx context.Context) (*TickReport, error)
	// DryRun runs an algorithm once, ignoring schedule and market hours, without touching the
	// portfolio or the execution lock.
	DryRun(ctx context.Context, algorithmID uint) (*RunReport, error)
}

type schedulerService struct {
	algorithms  repository.AlgorithmRepository
	executions  repository.AlgorithmExecutionRepository
	calendar    *calendar.Calendar
	sandbox     *sandbox.Sandbox
	processor   SignalProcessor
	portfolios  executorrepo.PortfolioRepository
	assets      executorrepo.AssetRepository
	performance executorsvc.PerformanceService
	prices      map[string]broker.PriceSource
	publisher   events.Publisher
	cfg         config.Scheduler
	logger      *logger.Logger
	now         func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSchedulerService creates a new scheduler service.
func NewSchedulerService(
	algorithms repository.AlgorithmRepository,
	executions repository.AlgorithmExecutionRepository,
	cal *calendar.Calendar,
	box *sandbox.Sandbox,
	processor SignalProcessor,
	portfolios executorrepo.PortfolioRepository,
	assets executorrepo.AssetRepository,
	performance executorsvc.PerformanceService,
	prices map[string]broker.PriceSource,
	publisher events.Publisher,
	cfg config.Scheduler,
	log *logger.Logger,
) SchedulerService {
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = time.Minute
	}
	if cfg.DefaultTradingMode == "" {
		cfg.DefaultTradingMode = common.TradingModePaper
	}
	return &schedulerService{
		algorithms:  algorithms,
		executions:  executions,
		calendar:    cal,
		sandbox:     box,
		processor:   processor,
		portfolios:  portfolios,
		assets:      assets,
		performance: performance,
		prices:      prices,
		publisher:   publisher,
		cfg:         cfg,
		logger:      log,
		now:         time.Now,
		stopChan:    make(chan struct{}),
	}
}

func (s *schedulerService) Start(ctx context.Context) {
	if s.cfg.StaleClaimAfter > 0 {
		released, err := s.algorithms.ReleaseStaleClaims(ctx, s.now().Add(-s.cfg.StaleClaimAfter))
		if err != nil {
			s.logger.Error("Failed to release stale claims", logger.ErrorField(err))
		} else if released > 0 {
			s.logger.Warn("Released stale execution claims", logger.Field("count", released))
		}
	}

	s.logger.Info("Scheduler service started", logger.Field("polling_interval", s.cfg.PollingInterval))
	s.wg.Add(1)
	utils.GoSafe(s.logger, func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.PollingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Scheduler service stopping due to context cancellation")
				return
			case <-s.stopChan:
				s.logger.Info("Scheduler service stopping")
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	})
}

// tick isolates a panicking pass so the loop survives it.
func (s *schedulerService) tick(ctx context.Context) {
	defer utils.Recover(s.logger, "scheduler tick")
	if _, err := s.ProcessAlgorithms(ctx); err != nil {
		s.logger.Error("Scheduler tick failed", logger.ErrorField(err))
	}
}

func (s *schedulerService) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.logger.Info("Scheduler service stopped")
}

// ProcessAlgorithms evaluates every runnable algorithm in query order. Only the bulk query can
// fail the pass; per-algorithm failures are logged and counted.
func (s *schedulerService) ProcessAlgorithms(ctx context.Context) (*TickReport, error) {
	algorithms, err := s.algorithms.FindRunnable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find runnable algorithms: %w", err)
	}

	report := &TickReport{}
	for i := range algorithms {
		if ctx.Err() != nil {
			break
		}
		report.Evaluated++
		switch s.processAlgorithm(ctx, &algorithms[i]) {
		case outcomeRan:
			report.Ran++
		case outcomeStopped:
			report.Stopped++
		case outcomeFailed:
			report.Failed++
		}
	}

	if report.Ran+report.Stopped+report.Failed > 0 {
		s.logger.Info("Scheduler tick processed",
			logger.IntField("evaluated", report.Evaluated),
			logger.IntField("ran", report.Ran),
			logger.IntField("stopped", report.Stopped),
			logger.IntField("failed", report.Failed),
		)
	}
	return report, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeRan
	outcomeStopped
	outcomeFailed
)

func (s *schedulerService) processAlgorithm(ctx context.Context, a *entity.Algorithm) outcome {
	now := s.now()
	log := s.logger.With(logger.Field("algorithm_id", a.ID), logger.StringField("algorithm", a.Name))
	region := s.calendar.Region(a.Region)

	if !region.IsOpen(now) {
		log.Debug("Market closed", logger.StringField("region", region.Name))
		return outcomeSkipped
	}

	if d := autostop.CheckDuration(autostop.DurationPolicyOf(a), now); d.Stop {
		return s.stopAlgorithm(ctx, a, d.Reason, now, log)
	}

	if policy := autostop.LossPolicyOf(a); policy.Active() {
		pnl, err := s.performance.CumulativePnL(ctx, a.ID)
		if err != nil {
			log.Error("Failed to read cumulative P&L", logger.ErrorField(err))
			return outcomeFailed
		}
		if d := autostop.CheckLoss(policy, pnl); d.Stop {
			return s.stopAlgorithm(ctx, a, d.Reason, now, log)
		}
	}

	cfg, err := schedule.ParseConfig(a)
	if err != nil {
		log.Warn("Invalid schedule configuration", logger.ErrorField(err))
		return outcomeSkipped
	}
	in := schedule.Input{Config: cfg, LastRunAt: a.LastRunAt, Location: region.Location}
	decision := schedule.ShouldRun(in, now)
	if decision.Err != nil {
		log.Warn("Schedule cannot be evaluated", logger.ErrorField(decision.Err))
		return outcomeSkipped
	}
	if !decision.Due {
		log.Debug("Algorithm not due", logger.StringField("reason", decision.Reason))
		return outcomeSkipped
	}

	if err := s.algorithms.Claim(ctx, a.ID, now); err != nil {
		if errors.Is(err, repository.ErrClaimLost) {
			log.Info("Algorithm already claimed")
			return outcomeSkipped
		}
		log.Error("Failed to claim algorithm", logger.ErrorField(err))
		return outcomeFailed
	}
	advance := false
	defer func() { s.release(ctx, a.ID, in, now, advance, log) }()

	report, err := s.execute(ctx, a, region, entity.TriggerScheduled, false)
	// A strategy that ran, even unsuccessfully, consumes its slot. Infrastructure failures retry next tick.
	var sandboxErr *sandbox.Error
	advance = err == nil || errors.As(err, &sandboxErr)
	if err != nil {
		log.Error("Algorithm run failed", logger.ErrorField(err))
		return outcomeFailed
	}
	log.Info("Algorithm run completed",
		logger.Field("execution_id", report.ExecutionID),
		logger.IntField("signals", len(report.Result.Results)),
		logger.IntField("executed", report.Result.Executed),
		logger.IntField("failed", report.Result.Failed),
	)
	return outcomeRan
}

// release clears the claim even when the tick context is already cancelled. last_run_at and
// next_scheduled_run move only when advance is set.
func (s *schedulerService) release(ctx context.Context, id uint, in schedule.Input, ranAt time.Time, advance bool, log *logger.Logger) {
	ctx = context.WithoutCancel(ctx)
	if !advance {
		if err := s.algorithms.Release(ctx, id, nil, nil); err != nil {
			log.Error("Failed to release algorithm", logger.ErrorField(err))
		}
		return
	}
	in.LastRunAt = &ranAt
	var nextRun *time.Time
	if next, err := schedule.NextRun(in, ranAt); err != nil {
		log.Warn("Failed to compute next run", logger.ErrorField(err))
	} else {
		nextRun = &next
	}
	if err := s.algorithms.Release(ctx, id, &ranAt, nextRun); err != nil {
		log.Error("Failed to release algorithm", logger.ErrorField(err))
	}
}

func (s *schedulerService) stopAlgorithm(ctx context.Context, a *entity.Algorithm, reason string, now time.Time, log *logger.Logger) outcome {
	log.Info("Auto-stopping algorithm", logger.StringField("reason", reason))
	if err := s.algorithms.Stop(ctx, a.ID, reason); err != nil {
		log.Error("Failed to stop algorithm", logger.ErrorField(err))
		return outcomeFailed
	}

	execution := &entity.AlgorithmExecution{
		AlgorithmID:  a.ID,
		Trigger:      entity.TriggerScheduled,
		Status:       entity.ExecutionStatusStopped,
		StartedAt:    now,
		CompletedAt:  sql.NullTime{Time: now, Valid: true},
		ErrorMessage: sql.NullString{String: reason, Valid: true},
	}
	if err := s.executions.Create(ctx, execution); err != nil {
		log.Error("Failed to record stop", logger.ErrorField(err))
	}

	s.publish(ctx, events.New(events.AlgorithmStopped, map[string]interface{}{
		"algorithm_id": a.ID,
		"user_id":      a.UserID,
		"name":         a.Name,
		"reason":       reason,
		"at":           now.UTC(),
	}))
	return outcomeStopped
}

func (s *schedulerService) DryRun(ctx context.Context, algorithmID uint) (*RunReport, error) {
	a, err := s.algorithms.FindByID(ctx, algorithmID)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, a, s.calendar.Region(a.Region), entity.TriggerDryRun, true)
}

// execute runs the strategy and its signals and records the run. A failed run still returns its
// report alongside the error.
func (s *schedulerService) execute(ctx context.Context, a *entity.Algorithm, region calendar.Region, trigger entity.ExecutionTrigger, dryRun bool) (*RunReport, error) {
	startedAt := s.now()
	execution := &entity.AlgorithmExecution{
		AlgorithmID: a.ID,
		Trigger:     trigger,
		DryRun:      dryRun,
		Status:      entity.ExecutionStatusRunning,
		StartedAt:   startedAt,
	}
	if err := s.executions.Create(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}
	log := s.logger.With(logger.Field("algorithm_id", a.ID), logger.Field("execution_id", execution.ID))
	report := &RunReport{ExecutionID: execution.ID, Result: &ProcessResult{}}

	tradingMode := a.TradingMode
	if tradingMode == "" {
		tradingMode = s.cfg.DefaultTradingMode
	}
	brokerName := common.BrokerPaper
	if tradingMode == common.TradingModeLive {
		brokerName = region.Broker
	}

	portfolio, err := s.portfolios.FindDefault(ctx, a.UserID, tradingMode, region.Name)
	if err != nil {
		err = fmt.Errorf("failed to resolve default portfolio: %w", err)
		s.finish(ctx, execution, report, err, log)
		return report, err
	}

	helpers, err := s.helpers(ctx, a, region.Name, portfolio)
	if err != nil {
		s.finish(ctx, execution, report, err, log)
		return report, err
	}

	local := sandbox.NewContext()
	if err := s.sandbox.Execute(ctx, a.Code, helpers, local); err != nil {
		report.Logs, report.Values = local.Logs(), local.Values()
		s.finish(ctx, execution, report, err, log)
		s.publish(ctx, events.New(events.AlgorithmFailed, map[string]interface{}{
			"algorithm_id": a.ID,
			"execution_id": execution.ID,
			"error":        err.Error(),
			"timeout":      errors.Is(err, sandbox.ErrTimeout),
		}))
		return report, err
	}
	report.Logs, report.Values = local.Logs(), local.Values()

	var procErr error
	if raw := local.Signals(); len(raw) > 0 {
		report.Result, procErr = s.processor.ProcessSignals(ctx, raw, ProcessRequest{
			AlgorithmID: a.ID,
			ExecutionID: execution.ID,
			UserID:      a.UserID,
			PortfolioID: portfolio.ID,
			Region:      region.Name,
			Broker:      brokerName,
			TradingMode: tradingMode,
			DryRun:      dryRun,
			Batched:     a.IsBatched() || s.cfg.BatchedExecution,
		})
		if procErr != nil {
			log.Warn("Some signals failed", logger.ErrorField(procErr))
		}
	}

	if !dryRun && len(report.Result.Fills) > 0 {
		if err := s.performance.Record(ctx, a.ID, s.now(), report.Result.Fills...); err != nil {
			log.Error("Failed to record performance", logger.ErrorField(err))
		}
	}

	s.finish(ctx, execution, report, procErr, log)
	return report, nil
}

// finish writes the final state of the run record. runErr marks the run failed unless it only
// carries signal execution failures, which are reported through the counts.
func (s *schedulerService) finish(ctx context.Context, execution *entity.AlgorithmExecution, report *RunReport, runErr error, log *logger.Logger) {
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	execution.Status = entity.ExecutionStatusCompleted
	if runErr != nil {
		execution.ErrorMessage = sql.NullString{String: runErr.Error(), Valid: true}
		report.Error = runErr.Error()
		if report.Result.Processed == 0 {
			execution.Status = entity.ExecutionStatusFailed
		}
	}
	execution.CompletedAt = sql.NullTime{Time: now, Valid: true}
	execution.SignalsGenerated = report.Result.Processed
	execution.SignalsExecuted = report.Result.Executed
	execution.SignalsFailed = report.Result.Failed
	report.Status = execution.Status

	if output, err := json.Marshal(report); err == nil {
		execution.Output = output
	} else {
		log.Warn("Failed to marshal execution output", logger.ErrorField(err))
	}

	if err := s.executions.Update(ctx, execution); err != nil {
		log.Error("Failed to update execution record", logger.ErrorField(err))
	}
}

// helpers binds the sandbox capabilities to this run's region and portfolio.
func (s *schedulerService) helpers(ctx context.Context, a *entity.Algorithm, region string, portfolio *entity.Portfolio) (sandbox.Helpers, error) {
	universe := []string(a.StockUniverse)
	if a.UniverseAll {
		assets, err := s.assets.FindActiveByRegion(ctx, region)
		if err != nil {
			return sandbox.Helpers{}, fmt.Errorf("failed to load universe: %w", err)
		}
		universe = make([]string, 0, len(assets))
		for _, asset := range assets {
			universe = append(universe, asset.Symbol)
		}
	}

	holdings, err := s.portfolios.Holdings(ctx, portfolio.ID)
	if err != nil {
		return sandbox.Helpers{}, fmt.Errorf("failed to load holdings: %w", err)
	}
	positions := make(map[string]float64, len(holdings))
	for _, h := range holdings {
		positions[h.Symbol], _ = h.Quantity.Float64()
	}

	cash, _ := portfolio.CashBalance.Float64()
	risk, _ := a.RiskPerTrade.Float64()
	source := s.prices[region]

	return sandbox.Helpers{
		Price: func(symbol string) float64 {
			if source == nil {
				return 0
			}
			p, err := source.LastPrice(ctx, symbol)
			if err != nil || !p.Valid {
				return 0
			}
			f, _ := p.Decimal.Float64()
			return f
		},
		Symbols:      func() []string { return append([]string(nil), universe...) },
		Cash:         func() float64 { return cash },
		Position:     func(symbol string) float64 { return positions[symbol] },
		MaxPositions: a.MaxPositions,
		RiskPerTrade: risk,
		Now:          s.now,
	}, nil
}

func (s *schedulerService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", logger.StringField("type", string(event.Type)), logger.ErrorField(err))
	}
}
