package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/executor/repository"
	"golang-algo-trader/pkg/broker"
	"golang-algo-trader/pkg/common"
	"golang-algo-trader/pkg/logger"

	"github.com/shopspring/decimal"
)

// ExecutionResult is the outcome of a filled order.
type ExecutionResult struct {
	TransactionID uint            `json:"transaction_id"`
	BrokerOrderID string          `json:"broker_order_id"`
	ExecutedPrice decimal.Decimal `json:"executed_price"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

// OrderExecutor sends execution orders to brokers and books the fills.
type OrderExecutor interface {
	// Execute places a single order and settles it. The order row is updated to filled or failed.
	Execute(ctx context.Context, order *entity.ExecutionOrder) (*ExecutionResult, error)
	// VerifyConnection fails with broker.ErrConnectionNotVerified when a live order's user does not
	// own an active connection to the order's broker.
	VerifyConnection(ctx context.Context, order *entity.ExecutionOrder) error
	// CheckFeasible walks orders in settlement order and reports, by order ID, the ones the ledger
	// could not book at price. Earlier members of a portfolio reserve cash and holdings for later ones.
	CheckFeasible(ctx context.Context, orders []*entity.ExecutionOrder, price decimal.Decimal) (map[uint]error, error)
	// Settle books an order that was filled elsewhere (for example as part of a netted batch).
	Settle(ctx context.Context, order *entity.ExecutionOrder, price decimal.Decimal, brokerOrderID string, at time.Time) (*ExecutionResult, error)
	// Fail marks the order failed with err's message.
	Fail(ctx context.Context, order *entity.ExecutionOrder, err error)
}

type orderExecutor struct {
	brokers     *broker.Registry
	portfolios  repository.PortfolioRepository
	orders      repository.ExecutionOrderRepository
	connections repository.BrokerConnectionRepository
	logger      *logger.Logger
	now         func() time.Time
}

func NewOrderExecutor(
	brokers *broker.Registry,
	portfolios repository.PortfolioRepository,
	orders repository.ExecutionOrderRepository,
	connections repository.BrokerConnectionRepository,
	log *logger.Logger,
) OrderExecutor {
	return &orderExecutor{
		brokers:     brokers,
		portfolios:  portfolios,
		orders:      orders,
		connections: connections,
		logger:      log,
		now:         time.Now,
	}
}

func (e *orderExecutor) VerifyConnection(ctx context.Context, order *entity.ExecutionOrder) error {
	if order.TradingMode != common.TradingModeLive {
		return nil
	}
	ok, err := e.connections.HasActive(ctx, order.UserID, order.Broker)
	if err != nil {
		return fmt.Errorf("failed to verify broker connection: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %d, broker %s", broker.ErrConnectionNotVerified, order.UserID, order.Broker)
	}
	return nil
}

func (e *orderExecutor) Execute(ctx context.Context, order *entity.ExecutionOrder) (*ExecutionResult, error) {
	log := e.logger.With(
		logger.Field("execution_order_id", order.ID),
		logger.StringField("symbol", order.Symbol),
		logger.StringField("broker", order.Broker),
	)

	if err := e.VerifyConnection(ctx, order); err != nil {
		e.Fail(ctx, order, err)
		return nil, err
	}

	b, err := e.brokers.Get(order.Broker)
	if err != nil {
		e.Fail(ctx, order, err)
		return nil, err
	}

	placed, err := b.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:        order.Symbol,
		Side:          broker.Side(order.Side),
		Quantity:      order.Quantity,
		OrderType:     broker.OrderType(order.OrderType),
		Price:         decimal.NewNullDecimal(order.Price),
		ClientOrderID: fmt.Sprintf("eo-%d", order.ID),
	})
	if err != nil {
		log.Error("Failed to place order", logger.ErrorField(err))
		e.Fail(ctx, order, err)
		return nil, err
	}

	price := order.Price
	if placed.FilledPrice.IsPositive() {
		price = placed.FilledPrice
	}
	at := placed.PlacedAt
	if at.IsZero() {
		at = e.now()
	}

	log.Info("Order placed", logger.StringField("broker_order_id", placed.OrderID), logger.StringField("price", price.String()))
	return e.Settle(ctx, order, price, placed.OrderID, at)
}

func (e *orderExecutor) CheckFeasible(ctx context.Context, orders []*entity.ExecutionOrder, price decimal.Decimal) (map[uint]error, error) {
	problems := map[uint]error{}
	cash := map[uint]decimal.Decimal{}
	held := map[[2]uint]decimal.Decimal{}
	for _, o := range orders {
		c, ok := cash[o.PortfolioID]
		if !ok {
			p, err := e.portfolios.FindByID(ctx, o.PortfolioID)
			if errors.Is(err, repository.ErrPortfolioNotFound) {
				problems[o.ID] = err
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to load portfolio %d: %w", o.PortfolioID, err)
			}
			c = p.CashBalance
		}
		key := [2]uint{o.PortfolioID, o.AssetID}
		h, ok := held[key]
		if !ok {
			qty, err := e.portfolios.HoldingQuantity(ctx, o.PortfolioID, o.AssetID)
			if err != nil {
				return nil, fmt.Errorf("failed to load holding of portfolio %d: %w", o.PortfolioID, err)
			}
			h = qty
		}

		amount := o.Quantity.Mul(price)
		if o.Side == entity.SideBuy {
			if c.LessThan(amount) {
				problems[o.ID] = fmt.Errorf("%w: need %s, have %s", repository.ErrInsufficientCash, amount, c)
				continue
			}
			c, h = c.Sub(amount), h.Add(o.Quantity)
		} else {
			if h.LessThan(o.Quantity) {
				problems[o.ID] = fmt.Errorf("%w: need %s, have %s", repository.ErrInsufficientHoldings, o.Quantity, h)
				continue
			}
			c, h = c.Add(amount), h.Sub(o.Quantity)
		}
		cash[o.PortfolioID] = c
		held[key] = h
	}
	return problems, nil
}

func (e *orderExecutor) Settle(ctx context.Context, order *entity.ExecutionOrder, price decimal.Decimal, brokerOrderID string, at time.Time) (*ExecutionResult, error) {
	txn, err := e.portfolios.ApplyFill(ctx, repository.Fill{
		PortfolioID:      order.PortfolioID,
		AssetID:          order.AssetID,
		ExecutionOrderID: order.ID,
		Symbol:           order.Symbol,
		Side:             order.Side,
		Quantity:         order.Quantity,
		Price:            price,
		Broker:           order.Broker,
		BrokerOrderID:    brokerOrderID,
		ExecutedAt:       at,
	})
	if err != nil {
		e.logger.Error("Failed to apply fill",
			logger.Field("execution_order_id", order.ID),
			logger.StringField("symbol", order.Symbol),
			logger.ErrorField(err),
		)
		e.Fail(ctx, order, err)
		return nil, fmt.Errorf("failed to apply fill: %w", err)
	}

	order.Status = entity.OrderFilled
	order.BrokerOrderID = brokerOrderID
	order.TransactionID = &txn.ID
	order.ExecutedPrice = decimal.NewNullDecimal(price)
	order.ExecutedAt = &at
	order.ErrorMessage = ""
	if err := e.orders.Update(ctx, order); err != nil {
		// the ledger already moved; the order row is reconciled from the transaction.
		e.logger.Error("Failed to mark order filled", logger.Field("execution_order_id", order.ID), logger.ErrorField(err))
	}

	return &ExecutionResult{
		TransactionID: txn.ID,
		BrokerOrderID: brokerOrderID,
		ExecutedPrice: price,
		ExecutedAt:    at,
	}, nil
}

func (e *orderExecutor) Fail(ctx context.Context, order *entity.ExecutionOrder, err error) {
	order.Status = entity.OrderFailed
	order.ErrorMessage = err.Error()
	if uerr := e.orders.Update(ctx, order); uerr != nil {
		e.logger.Error("Failed to mark order failed", logger.Field("execution_order_id", order.ID), logger.ErrorField(uerr))
	}
}
