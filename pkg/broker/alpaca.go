package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang-algo-trader/pkg/common"
	"golang-algo-trader/pkg/config"
	"golang-algo-trader/pkg/logger"

	"github.com/shopspring/decimal"
)

// Alpaca places orders through the Alpaca trading API v2.
type Alpaca struct {
	cfg    config.Alpaca
	client *restClient
}

type alpacaOrderRequest struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	LimitPrice    string `json:"limit_price,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

type alpacaOrder struct {
	ID             string              `json:"id"`
	Status         string              `json:"status"`
	FilledAvgPrice decimal.NullDecimal `json:"filled_avg_price"`
	SubmittedAt    time.Time           `json:"submitted_at"`
}

type alpacaLatestTrade struct {
	Symbol string `json:"symbol"`
	Trade  struct {
		Price     float64   `json:"p"`
		Timestamp time.Time `json:"t"`
	} `json:"trade"`
}

type alpacaError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewAlpaca(cfg config.Alpaca, log *logger.Logger) *Alpaca {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://paper-api.alpaca.markets"
	}
	if cfg.DataURL == "" {
		cfg.DataURL = "https://data.alpaca.markets"
	}
	return &Alpaca{cfg: cfg, client: newRestClient(common.BrokerAlpaca, cfg.MaxRequestPerMinute, log)}
}

func (a *Alpaca) Name() string {
	return common.BrokerAlpaca
}

func (a *Alpaca) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload := alpacaOrderRequest{
		Symbol:        req.Symbol,
		Qty:           req.Quantity.String(),
		Side:          string(req.Side),
		Type:          string(Market),
		TimeInForce:   "day",
		ClientOrderID: req.ClientOrderID,
	}
	if req.OrderType == Limit {
		payload.Type = string(Limit)
		payload.LimitPrice = req.Price.Decimal.String()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequest(http.MethodPost, a.cfg.BaseURL+"/v2/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var order alpacaOrder
	if err := a.do(ctx, httpReq, &order); err != nil {
		return nil, err
	}

	result := &OrderResult{OrderID: order.ID, Status: order.Status, PlacedAt: order.SubmittedAt}
	switch {
	case order.FilledAvgPrice.Valid:
		result.FilledPrice = order.FilledAvgPrice.Decimal
	case req.Price.Valid:
		result.FilledPrice = req.Price.Decimal
	}
	return result, nil
}

func (a *Alpaca) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	httpReq, err := http.NewRequest(http.MethodGet, a.cfg.DataURL+"/v2/stocks/"+url.PathEscape(symbol)+"/trades/latest", nil)
	if err != nil {
		return nil, err
	}

	var trade alpacaLatestTrade
	if err := a.do(ctx, httpReq, &trade); err != nil {
		return nil, err
	}
	if trade.Trade.Price <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrQuoteUnavailable, symbol)
	}
	return &Quote{Symbol: symbol, Price: decimal.NewFromFloat(trade.Trade.Price), At: trade.Trade.Timestamp}, nil
}

func (a *Alpaca) do(ctx context.Context, req *http.Request, out interface{}) error {
	req.Header.Set("APCA-API-KEY-ID", a.cfg.KeyID)
	req.Header.Set("APCA-API-SECRET-KEY", a.cfg.SecretKey)

	body, status, err := a.client.send(ctx, req)
	if err != nil {
		return err
	}
	if status >= 300 {
		var apiErr alpacaError
		_ = json.Unmarshal(body, &apiErr)
		return fmt.Errorf("%w: alpaca %d: %s", ErrOrderRejected, status, apiErr.Message)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("alpaca: decode response: %w", err)
	}
	return nil
}
