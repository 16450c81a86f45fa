package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-algo-trader/internal/entity"
	executorrepo "golang-algo-trader/internal/executor/repository"
	executorsvc "golang-algo-trader/internal/executor/service"
	"golang-algo-trader/internal/scheduler/sandbox"
	"golang-algo-trader/pkg/broker"
	"golang-algo-trader/pkg/events"
	"golang-algo-trader/pkg/logger"

	"github.com/shopspring/decimal"
)

// ProcessRequest carries the run context every signal of one batch shares.
type ProcessRequest struct {
	AlgorithmID uint
	ExecutionID uint
	UserID      uint
	PortfolioID uint
	Region      string
	Broker      string
	TradingMode string
	DryRun      bool
	Batched     bool
}

// SignalResult is the outcome of one signal.
type SignalResult struct {
	Index         int                 `json:"index"`
	SignalID      uint                `json:"signal_id,omitempty"`
	Symbol        string              `json:"symbol"`
	Type          entity.SignalType   `json:"type"`
	Status        entity.SignalStatus `json:"status,omitempty"`
	Executed      bool                `json:"executed"`
	Queued        bool                `json:"queued,omitempty"`
	QueuedOrderID uint                `json:"queued_order_id,omitempty"`
	TransactionID uint                `json:"transaction_id,omitempty"`
	ExecutedPrice decimal.NullDecimal `json:"executed_price"`
	Reason        string              `json:"reason,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// ProcessResult aggregates a signal batch. Hold, rejected, simulated and queued
// signals are processed but neither executed nor failed.
type ProcessResult struct {
	Processed int                     `json:"processed"`
	Executed  int                     `json:"executed"`
	Failed    int                     `json:"failed"`
	Results   []SignalResult          `json:"results"`
	Fills     []executorsvc.TradeFill `json:"-"`
}

// SignalProcessor turns strategy output into persisted signals and orders.
type SignalProcessor interface {
	// ProcessSignals handles the signals in order, one at a time. The returned error joins every
	// execution failure. Validation outcomes are reported through the result only.
	ProcessSignals(ctx context.Context, raw []sandbox.RawSignal, req ProcessRequest) (*ProcessResult, error)
}

type signalProcessor struct {
	assets     executorrepo.AssetRepository
	portfolios executorrepo.PortfolioRepository
	signals    executorrepo.SignalRepository
	orders     executorrepo.ExecutionOrderRepository
	executor   executorsvc.OrderExecutor
	tradeQueue executorsvc.TradeQueueService
	prices     map[string]broker.PriceSource
	publisher  events.Publisher
	logger     *logger.Logger
}

func NewSignalProcessor(
	assets executorrepo.AssetRepository,
	portfolios executorrepo.PortfolioRepository,
	signals executorrepo.SignalRepository,
	orders executorrepo.ExecutionOrderRepository,
	executor executorsvc.OrderExecutor,
	tradeQueue executorsvc.TradeQueueService,
	prices map[string]broker.PriceSource,
	publisher events.Publisher,
	log *logger.Logger,
) SignalProcessor {
	return &signalProcessor{
		assets:     assets,
		portfolios: portfolios,
		signals:    signals,
		orders:     orders,
		executor:   executor,
		tradeQueue: tradeQueue,
		prices:     prices,
		publisher:  publisher,
		logger:     log,
	}
}

func (p *signalProcessor) ProcessSignals(ctx context.Context, raw []sandbox.RawSignal, req ProcessRequest) (*ProcessResult, error) {
	result := &ProcessResult{Results: make([]SignalResult, 0, len(raw))}
	var errs []error

	for i, rs := range raw {
		res, fill, err := p.processOne(ctx, i, rs, req)
		result.Processed++
		if res.Executed {
			result.Executed++
		}
		if res.Status == entity.SignalFailed || res.Error != "" {
			result.Failed++
		}
		if fill != nil {
			result.Fills = append(result.Fills, *fill)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("signal %d (%s): %w", i, res.Symbol, err))
		}
		result.Results = append(result.Results, res)
	}

	return result, errors.Join(errs...)
}

// processOne returns an error only when an order was submitted and failed.
func (p *signalProcessor) processOne(ctx context.Context, index int, raw sandbox.RawSignal, req ProcessRequest) (SignalResult, *executorsvc.TradeFill, error) {
	res := SignalResult{Index: index, Symbol: raw.Symbol, Type: entity.SignalType(raw.Type)}
	log := p.logger.With(
		logger.Field("algorithm_id", req.AlgorithmID),
		logger.Field("execution_id", req.ExecutionID),
		logger.StringField("symbol", raw.Symbol),
	)

	in, err := NewSignalInput(raw)
	if err != nil {
		log.Warn("Malformed signal", logger.ErrorField(err))
		res.Error = err.Error()
		return res, nil, nil
	}
	res.Symbol, res.Type = in.Symbol, in.Type

	if in.Type == entity.SignalHold {
		log.Debug("Hold signal", logger.StringField("reason", in.Reason))
		return res, nil, nil
	}

	asset, price, err := p.resolvePrice(ctx, in, req.Region)
	if err != nil {
		log.Warn("Failed to resolve signal price", logger.ErrorField(err))
		res.Error = err.Error()
		return res, nil, nil
	}

	signal := &entity.Signal{
		AlgorithmID:     req.AlgorithmID,
		ExecutionID:     req.ExecutionID,
		UserID:          req.UserID,
		AssetID:         asset.ID,
		Symbol:          in.Symbol,
		SignalType:      in.Type,
		Quantity:        in.Quantity,
		Price:           price,
		Reason:          in.Reason,
		GeneratedAt:     in.GeneratedAt,
		ExecutionStatus: entity.SignalPending,
	}
	if err := p.signals.Create(ctx, signal); err != nil {
		log.Error("Failed to persist signal", logger.ErrorField(err))
		res.Error = err.Error()
		return res, nil, nil
	}
	res.SignalID = signal.ID
	log = log.With(logger.Field("signal_id", signal.ID))
	defer p.publish(ctx, signal, req)

	if req.DryRun {
		p.setStatus(ctx, signal, entity.SignalSimulated, log)
		res.Status = signal.ExecutionStatus
		return res, nil, nil
	}

	if reason, err := p.checkFeasibility(ctx, signal, req.PortfolioID); err != nil {
		log.Error("Failed to validate signal", logger.ErrorField(err))
		signal.ErrorMessage = err.Error()
		p.setStatus(ctx, signal, entity.SignalFailed, log)
		res.Status, res.Error = signal.ExecutionStatus, err.Error()
		return res, nil, err
	} else if reason != "" {
		log.Info("Signal rejected", logger.StringField("reason", reason))
		signal.RejectionReason = reason
		p.setStatus(ctx, signal, entity.SignalRejected, log)
		res.Status, res.Reason = signal.ExecutionStatus, reason
		return res, nil, nil
	}

	order := &entity.ExecutionOrder{
		SignalID:    signal.ID,
		AlgorithmID: req.AlgorithmID,
		ExecutionID: req.ExecutionID,
		UserID:      req.UserID,
		PortfolioID: req.PortfolioID,
		AssetID:     asset.ID,
		Symbol:      signal.Symbol,
		Side:        entity.OrderSide(signal.SignalType),
		Quantity:    signal.Quantity,
		Price:       signal.Price,
		OrderType:   string(broker.Market),
		Broker:      req.Broker,
		TradingMode: req.TradingMode,
		Status:      entity.OrderPending,
	}
	if err := p.orders.Create(ctx, order); err != nil {
		return p.fail(ctx, signal, res, fmt.Errorf("failed to create execution order: %w", err), log)
	}

	if req.Batched {
		queued, err := p.tradeQueue.QueueOrder(ctx, order, 0)
		if err != nil {
			p.executor.Fail(ctx, order, err)
			return p.fail(ctx, signal, res, err, log)
		}
		res.Status = signal.ExecutionStatus
		res.Queued = true
		res.QueuedOrderID = queued.ID
		return res, nil, nil
	}

	executed, err := p.executor.Execute(ctx, order)
	if err != nil {
		return p.fail(ctx, signal, res, err, log)
	}

	signal.TransactionID = &executed.TransactionID
	signal.ExecutedPrice = decimal.NewNullDecimal(executed.ExecutedPrice)
	signal.ExecutedAt = &executed.ExecutedAt
	p.setStatus(ctx, signal, entity.SignalFilled, log)

	res.Status = signal.ExecutionStatus
	res.Executed = true
	res.TransactionID = executed.TransactionID
	res.ExecutedPrice = signal.ExecutedPrice
	log.Info("Signal filled", logger.StringField("price", executed.ExecutedPrice.String()))

	return res, &executorsvc.TradeFill{
		Side:     order.Side,
		Notional: order.Quantity.Mul(executed.ExecutedPrice),
	}, nil
}

// resolvePrice prefers the strategy's suggested price over the market price.
func (p *signalProcessor) resolvePrice(ctx context.Context, in SignalInput, region string) (*entity.Asset, decimal.Decimal, error) {
	asset, err := p.assets.FindBySymbol(ctx, in.Symbol, region)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if in.Price.Valid {
		return asset, in.Price.Decimal, nil
	}

	last := asset.CurrentPrice
	if source, ok := p.prices[region]; ok {
		if last, err = source.LastPrice(ctx, in.Symbol); err != nil {
			return nil, decimal.Zero, err
		}
	}
	if !last.Valid || !last.Decimal.IsPositive() {
		return nil, decimal.Zero, fmt.Errorf("no price available for %s", in.Symbol)
	}
	return asset, last.Decimal, nil
}

// checkFeasibility returns a rejection reason, or an error when the portfolio could not be read.
func (p *signalProcessor) checkFeasibility(ctx context.Context, signal *entity.Signal, portfolioID uint) (string, error) {
	switch signal.SignalType {
	case entity.SignalBuy:
		portfolio, err := p.portfolios.FindByID(ctx, portfolioID)
		if err != nil {
			return "", err
		}
		required := signal.Quantity.Mul(signal.Price)
		if portfolio.CashBalance.LessThan(required) {
			return fmt.Sprintf("Insufficient cash: required %s, available %s",
				required.StringFixed(2), portfolio.CashBalance.StringFixed(2)), nil
		}
	case entity.SignalSell:
		held, err := p.portfolios.HoldingQuantity(ctx, portfolioID, signal.AssetID)
		if err != nil {
			return "", err
		}
		if held.LessThan(signal.Quantity) {
			return fmt.Sprintf("Insufficient holdings: requested %s, held %s",
				signal.Quantity.String(), held.String()), nil
		}
	}
	return "", nil
}

func (p *signalProcessor) fail(ctx context.Context, signal *entity.Signal, res SignalResult, err error, log *logger.Logger) (SignalResult, *executorsvc.TradeFill, error) {
	log.Error("Signal execution failed", logger.ErrorField(err))
	signal.ErrorMessage = err.Error()
	p.setStatus(ctx, signal, entity.SignalFailed, log)
	res.Status = signal.ExecutionStatus
	res.Error = err.Error()
	return res, nil, err
}

func (p *signalProcessor) setStatus(ctx context.Context, signal *entity.Signal, status entity.SignalStatus, log *logger.Logger) {
	signal.ExecutionStatus = status
	if err := p.signals.Update(ctx, signal); err != nil {
		log.Error("Failed to update signal status", logger.StringField("status", string(status)), logger.ErrorField(err))
	}
}

func (p *signalProcessor) publish(ctx context.Context, signal *entity.Signal, req ProcessRequest) {
	err := p.publisher.Publish(ctx, events.New(events.SignalProcessed, map[string]interface{}{
		"signal_id":    signal.ID,
		"algorithm_id": req.AlgorithmID,
		"execution_id": req.ExecutionID,
		"symbol":       signal.Symbol,
		"type":         signal.SignalType,
		"status":       signal.ExecutionStatus,
		"quantity":     signal.Quantity.String(),
		"price":        signal.Price.String(),
		"dry_run":      req.DryRun,
		"at":           time.Now().UTC(),
	}))
	if err != nil {
		p.logger.Warn("Failed to publish signal event", logger.Field("signal_id", signal.ID), logger.ErrorField(err))
	}
}
