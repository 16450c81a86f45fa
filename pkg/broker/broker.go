// Package broker defines the place-order / get-quote capability and its adapters.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownBroker         = errors.New("unknown broker")
	ErrConnectionNotVerified = errors.New("broker connection not verified for user")
	ErrOrderRejected         = errors.New("order rejected by broker")
	ErrPriceRequired         = errors.New("price required")
	ErrQuoteUnavailable      = errors.New("quote unavailable")
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

// OrderRequest is a single order sent to a broker. Price is the limit price for limit orders and
// the reference price for market orders.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Quantity      decimal.Decimal
	OrderType     OrderType
	Price         decimal.NullDecimal
	ClientOrderID string
}

func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if r.Side != Buy && r.Side != Sell {
		return fmt.Errorf("invalid side %q", r.Side)
	}
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive")
	}
	if r.OrderType == Limit && !r.Price.Valid {
		return fmt.Errorf("limit order: %w", ErrPriceRequired)
	}
	return nil
}

// OrderResult is what a broker reports back for an accepted order. FilledPrice is zero when the
// broker has not reported a fill yet.
type OrderResult struct {
	OrderID     string          `json:"order_id"`
	Status      string          `json:"status"`
	FilledPrice decimal.Decimal `json:"filled_price"`
	PlacedAt    time.Time       `json:"placed_at"`
}

type Quote struct {
	Symbol string
	Price  decimal.Decimal
	At     time.Time
}

// Broker is implemented by every adapter.
type Broker interface {
	Name() string
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// Registry resolves brokers by name.
type Registry struct {
	brokers map[string]Broker
}

func NewRegistry(brokers ...Broker) *Registry {
	r := &Registry{brokers: make(map[string]Broker, len(brokers))}
	for _, b := range brokers {
		r.brokers[b.Name()] = b
	}
	return r
}

func (r *Registry) Get(name string) (Broker, error) {
	b, ok := r.brokers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBroker, name)
	}
	return b, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.brokers))
	for name := range r.brokers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
