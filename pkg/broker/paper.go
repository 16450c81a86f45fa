package broker

import (
	"context"
	"fmt"
	"time"

	"golang-algo-trader/pkg/common"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceSource supplies reference prices to the paper broker.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error)
}

// Paper fills every order immediately at its reference price.
type Paper struct {
	prices PriceSource
	now    func() time.Time
}

func NewPaper(prices PriceSource) *Paper {
	return &Paper{prices: prices, now: time.Now}
}

func (p *Paper) Name() string {
	return common.BrokerPaper
}

func (p *Paper) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	price := req.Price
	if !price.Valid {
		q, err := p.GetQuote(ctx, req.Symbol)
		if err != nil {
			return nil, fmt.Errorf("paper fill %s: %w", req.Symbol, err)
		}
		price = decimal.NewNullDecimal(q.Price)
	}

	return &OrderResult{
		OrderID:     "paper-" + uuid.NewString(),
		Status:      "complete",
		FilledPrice: price.Decimal,
		PlacedAt:    p.now(),
	}, nil
}

func (p *Paper) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if p.prices == nil {
		return nil, fmt.Errorf("%w: %s", ErrQuoteUnavailable, symbol)
	}
	price, err := p.prices.LastPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !price.Valid {
		return nil, fmt.Errorf("%w: %s", ErrQuoteUnavailable, symbol)
	}
	return &Quote{Symbol: symbol, Price: price.Decimal, At: p.now()}, nil
}
