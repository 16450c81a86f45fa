package service

import (
	"context"
	"time"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/executor/repository"
	"golang-algo-trader/pkg/broker"
	"golang-algo-trader/pkg/logger"

	"github.com/shopspring/decimal"
)

// SymbolFill is the consolidated broker order sent for one symbol of a batch.
type SymbolFill struct {
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side,omitempty"`
	NetQuantity   decimal.Decimal `json:"net_quantity"`
	BrokerOrderID string          `json:"broker_order_id,omitempty"`
	ExecutedPrice decimal.Decimal `json:"executed_price"`
	Members       []uint          `json:"members"`
	// UnsettledQuantity is the member quantity the broker or an internal cross filled but the
	// ledger did not book. Anything above zero needs manual reconciliation.
	UnsettledQuantity decimal.Decimal `json:"unsettled_quantity"`
	Error             string          `json:"error,omitempty"`
}

// AggregationResult is attached to every queued order of the batch.
type AggregationResult struct {
	BatchID  string         `json:"batch_id"`
	Broker   string         `json:"broker"`
	Symbols  []SymbolFill   `json:"symbols"`
	Settled  int            `json:"settled"`
	Failed   int            `json:"failed"`
	Outcomes map[uint]error `json:"-"`
}

// Aggregator nets a batch of execution orders per symbol and settles every member at the
// consolidated price.
type Aggregator interface {
	Execute(ctx context.Context, batchID, brokerName string, orders []*entity.ExecutionOrder) (*AggregationResult, error)
}

type aggregator struct {
	brokers     *broker.Registry
	executor    OrderExecutor
	signals     repository.SignalRepository
	performance PerformanceService
	logger      *logger.Logger
	now         func() time.Time
}

func NewAggregator(
	brokers *broker.Registry,
	executor OrderExecutor,
	signals repository.SignalRepository,
	performance PerformanceService,
	log *logger.Logger,
) Aggregator {
	return &aggregator{
		brokers:     brokers,
		executor:    executor,
		signals:     signals,
		performance: performance,
		logger:      log,
		now:         time.Now,
	}
}

type symbolGroup struct {
	symbol  string
	members []*entity.ExecutionOrder
}

// Execute returns an error only when the batch could not be attempted at all. Per-order failures
// are reported through Outcomes.
func (a *aggregator) Execute(ctx context.Context, batchID, brokerName string, orders []*entity.ExecutionOrder) (*AggregationResult, error) {
	b, err := a.brokers.Get(brokerName)
	if err != nil {
		return nil, err
	}

	result := &AggregationResult{
		BatchID:  batchID,
		Broker:   brokerName,
		Outcomes: make(map[uint]error, len(orders)),
	}

	var groups []*symbolGroup
	index := map[string]*symbolGroup{}
	for _, o := range orders {
		if err := a.executor.VerifyConnection(ctx, o); err != nil {
			a.executor.Fail(ctx, o, err)
			a.fail(ctx, result, o, err)
			continue
		}
		g, ok := index[o.Symbol]
		if !ok {
			g = &symbolGroup{symbol: o.Symbol}
			index[o.Symbol] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, o)
	}

	for _, g := range groups {
		result.Symbols = append(result.Symbols, a.executeSymbol(ctx, b, result, g))
	}

	a.logger.Info("Batch aggregated",
		logger.StringField("batch_id", batchID),
		logger.StringField("broker", brokerName),
		logger.IntField("symbols", len(result.Symbols)),
		logger.IntField("settled", result.Settled),
		logger.IntField("failed", result.Failed),
	)
	return result, nil
}

// referencePrice is the quantity weighted average of the members' order prices.
func referencePrice(members []*entity.ExecutionOrder) decimal.Decimal {
	notional := decimal.Zero
	gross := decimal.Zero
	for _, m := range members {
		gross = gross.Add(m.Quantity)
		notional = notional.Add(m.Notional())
	}
	if !gross.IsPositive() {
		return decimal.Zero
	}
	return notional.Div(gross).Round(6)
}

// feasibleMembers fails the members the ledger cannot book at price so they never reach the net
// order.
func (a *aggregator) feasibleMembers(ctx context.Context, result *AggregationResult, g *symbolGroup, price decimal.Decimal) ([]*entity.ExecutionOrder, error) {
	problems, err := a.executor.CheckFeasible(ctx, g.members, price)
	if err != nil {
		return nil, err
	}
	if len(problems) == 0 {
		return g.members, nil
	}
	members := make([]*entity.ExecutionOrder, 0, len(g.members))
	for _, m := range g.members {
		if perr, bad := problems[m.ID]; bad {
			a.logger.Warn("Dropping infeasible batch member",
				logger.StringField("batch_id", result.BatchID),
				logger.Field("execution_order_id", m.ID),
				logger.ErrorField(perr),
			)
			a.executor.Fail(ctx, m, perr)
			a.fail(ctx, result, m, perr)
			continue
		}
		members = append(members, m)
	}
	return members, nil
}

func (a *aggregator) executeSymbol(ctx context.Context, b broker.Broker, result *AggregationResult, g *symbolGroup) SymbolFill {
	fill := SymbolFill{Symbol: g.symbol}
	reference := referencePrice(g.members)
	fill.ExecutedPrice = reference

	members, err := a.feasibleMembers(ctx, result, g, reference)
	if err != nil {
		fill.Error = err.Error()
		for _, m := range g.members {
			a.executor.Fail(ctx, m, err)
			a.fail(ctx, result, m, err)
		}
		return fill
	}
	if len(members) == 0 {
		fill.Error = "no member can be booked"
		return fill
	}

	net := decimal.Zero
	for _, m := range members {
		fill.Members = append(fill.Members, m.ID)
		if m.Side == entity.SideBuy {
			net = net.Add(m.Quantity)
		} else {
			net = net.Sub(m.Quantity)
		}
	}
	fill.NetQuantity = net.Abs()

	at := a.now()
	if net.IsZero() {
		// buys and sells offset each other; members cross internally at the reference price.
		fill.BrokerOrderID = "crossed-" + result.BatchID
	} else {
		side := broker.Buy
		if net.IsNegative() {
			side = broker.Sell
		}
		fill.Side = string(side)
		placed, err := b.PlaceOrder(ctx, broker.OrderRequest{
			Symbol:        g.symbol,
			Side:          side,
			Quantity:      net.Abs(),
			OrderType:     broker.Market,
			Price:         decimal.NewNullDecimal(reference),
			ClientOrderID: result.BatchID + "-" + g.symbol,
		})
		if err != nil {
			a.logger.Error("Failed to place batch order",
				logger.StringField("batch_id", result.BatchID),
				logger.StringField("symbol", g.symbol),
				logger.ErrorField(err),
			)
			fill.Error = err.Error()
			for _, m := range members {
				a.executor.Fail(ctx, m, err)
				a.fail(ctx, result, m, err)
			}
			return fill
		}
		fill.BrokerOrderID = placed.OrderID
		if placed.FilledPrice.IsPositive() {
			fill.ExecutedPrice = placed.FilledPrice
		}
		if !placed.PlacedAt.IsZero() {
			at = placed.PlacedAt
		}
	}

	// The fill already happened; booking it must not stop at the batch deadline.
	ctx = context.WithoutCancel(ctx)
	for _, m := range members {
		res, err := a.executor.Settle(ctx, m, fill.ExecutedPrice, fill.BrokerOrderID, at)
		if err != nil {
			fill.UnsettledQuantity = fill.UnsettledQuantity.Add(m.Quantity)
			a.fail(ctx, result, m, err)
			continue
		}
		result.Outcomes[m.ID] = nil
		result.Settled++
		a.markSignalFilled(ctx, m, res)
		if err := a.performance.Record(ctx, m.AlgorithmID, res.ExecutedAt, TradeFill{Side: m.Side, Notional: m.Quantity.Mul(res.ExecutedPrice)}); err != nil {
			a.logger.Error("Failed to record performance", logger.Field("algorithm_id", m.AlgorithmID), logger.ErrorField(err))
		}
	}
	if fill.UnsettledQuantity.IsPositive() {
		a.logger.Warn("Batch fill not fully booked",
			logger.StringField("batch_id", result.BatchID),
			logger.StringField("symbol", g.symbol),
			logger.StringField("broker_order_id", fill.BrokerOrderID),
			logger.StringField("unsettled_quantity", fill.UnsettledQuantity.String()),
		)
	}
	return fill
}

func (a *aggregator) fail(ctx context.Context, result *AggregationResult, order *entity.ExecutionOrder, err error) {
	result.Outcomes[order.ID] = err
	result.Failed++

	signal, ferr := a.signals.FindByID(ctx, order.SignalID)
	if ferr != nil {
		a.logger.Error("Failed to load signal", logger.Field("signal_id", order.SignalID), logger.ErrorField(ferr))
		return
	}
	signal.ExecutionStatus = entity.SignalFailed
	signal.ErrorMessage = err.Error()
	if uerr := a.signals.Update(ctx, signal); uerr != nil {
		a.logger.Error("Failed to mark signal failed", logger.Field("signal_id", signal.ID), logger.ErrorField(uerr))
	}
}

func (a *aggregator) markSignalFilled(ctx context.Context, order *entity.ExecutionOrder, res *ExecutionResult) {
	signal, err := a.signals.FindByID(ctx, order.SignalID)
	if err != nil {
		a.logger.Error("Failed to load signal", logger.Field("signal_id", order.SignalID), logger.ErrorField(err))
		return
	}
	txnID := res.TransactionID
	at := res.ExecutedAt
	signal.ExecutionStatus = entity.SignalFilled
	signal.TransactionID = &txnID
	signal.ExecutedPrice = decimal.NewNullDecimal(res.ExecutedPrice)
	signal.ExecutedAt = &at
	if err := a.signals.Update(ctx, signal); err != nil {
		a.logger.Error("Failed to mark signal filled", logger.Field("signal_id", signal.ID), logger.ErrorField(err))
	}
}

func (r *AggregationResult) outcomeMessage(id uint) (string, bool) {
	err, ok := r.Outcomes[id]
	if !ok {
		return "", false
	}
	if err != nil {
		return err.Error(), true
	}
	return "", true
}
