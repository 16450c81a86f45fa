package service

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/scheduler/sandbox"

	"github.com/shopspring/decimal"
)

var ErrInvalidSignal = errors.New("invalid signal")

// SignalInput is a validated strategy signal.
type SignalInput struct {
	Symbol      string
	Type        entity.SignalType
	Quantity    decimal.Decimal
	Price       decimal.NullDecimal
	Reason      string
	GeneratedAt time.Time
}

// NewSignalInput validates a raw sandbox signal. Hold signals may omit the quantity.
func NewSignalInput(raw sandbox.RawSignal) (SignalInput, error) {
	in := SignalInput{
		Symbol:      strings.ToUpper(strings.TrimSpace(raw.Symbol)),
		Type:        entity.SignalType(strings.ToLower(strings.TrimSpace(raw.Type))),
		Reason:      raw.Reason,
		GeneratedAt: raw.GeneratedAt,
	}
	if in.Symbol == "" {
		return in, fmt.Errorf("%w: symbol is required", ErrInvalidSignal)
	}
	switch in.Type {
	case entity.SignalBuy, entity.SignalSell, entity.SignalHold:
	default:
		return in, fmt.Errorf("%w: signal type %q", ErrInvalidSignal, raw.Type)
	}
	if math.IsNaN(raw.Quantity) || math.IsInf(raw.Quantity, 0) || math.IsNaN(raw.Price) || math.IsInf(raw.Price, 0) {
		return in, fmt.Errorf("%w: non-finite quantity or price", ErrInvalidSignal)
	}
	if in.Type != entity.SignalHold && raw.Quantity <= 0 {
		return in, fmt.Errorf("%w: quantity must be positive, got %v", ErrInvalidSignal, raw.Quantity)
	}
	if raw.Price < 0 {
		return in, fmt.Errorf("%w: negative price %v", ErrInvalidSignal, raw.Price)
	}

	in.Quantity = decimal.NewFromFloat(raw.Quantity)
	if raw.Price > 0 {
		in.Price = decimal.NewNullDecimal(decimal.NewFromFloat(raw.Price))
	}
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now()
	}
	return in, nil
}
