package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang-algo-trader/pkg/common"
	"golang-algo-trader/pkg/config"
	"golang-algo-trader/pkg/logger"

	"github.com/shopspring/decimal"
)

// Zerodha places orders through the Kite Connect v3 REST API.
type Zerodha struct {
	cfg    config.Zerodha
	client *restClient
}

type kiteEnvelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

type kiteOrderData struct {
	OrderID string `json:"order_id"`
}

type kiteLTP struct {
	InstrumentToken int64   `json:"instrument_token"`
	LastPrice       float64 `json:"last_price"`
}

func NewZerodha(cfg config.Zerodha, log *logger.Logger) *Zerodha {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.kite.trade"
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "NSE"
	}
	if cfg.Product == "" {
		cfg.Product = "CNC"
	}
	return &Zerodha{cfg: cfg, client: newRestClient(common.BrokerZerodha, cfg.MaxRequestPerMinute, log)}
}

func (z *Zerodha) Name() string {
	return common.BrokerZerodha
}

func (z *Zerodha) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !req.Quantity.Equal(req.Quantity.Truncate(0)) {
		return nil, fmt.Errorf("zerodha: quantity %s must be a whole number of shares", req.Quantity)
	}

	form := url.Values{}
	form.Set("tradingsymbol", req.Symbol)
	form.Set("exchange", z.cfg.Exchange)
	form.Set("transaction_type", strings.ToUpper(string(req.Side)))
	form.Set("quantity", req.Quantity.StringFixed(0))
	form.Set("product", z.cfg.Product)
	form.Set("validity", "DAY")
	if req.OrderType == Limit {
		form.Set("order_type", "LIMIT")
		form.Set("price", req.Price.Decimal.String())
	} else {
		form.Set("order_type", "MARKET")
	}
	if req.ClientOrderID != "" {
		form.Set("tag", truncate(req.ClientOrderID, 20))
	}

	httpReq, err := http.NewRequest(http.MethodPost, z.cfg.BaseURL+"/orders/regular", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	z.authorize(httpReq)

	var data kiteOrderData
	if err := z.do(ctx, httpReq, &data); err != nil {
		return nil, err
	}

	result := &OrderResult{OrderID: data.OrderID, Status: "open", PlacedAt: time.Now()}
	if req.Price.Valid {
		result.FilledPrice = req.Price.Decimal
	}
	return result, nil
}

func (z *Zerodha) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	instrument := z.cfg.Exchange + ":" + symbol
	httpReq, err := http.NewRequest(http.MethodGet, z.cfg.BaseURL+"/quote/ltp?i="+url.QueryEscape(instrument), nil)
	if err != nil {
		return nil, err
	}
	z.authorize(httpReq)

	var data map[string]kiteLTP
	if err := z.do(ctx, httpReq, &data); err != nil {
		return nil, err
	}
	ltp, ok := data[instrument]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQuoteUnavailable, instrument)
	}
	return &Quote{Symbol: symbol, Price: decimal.NewFromFloat(ltp.LastPrice), At: time.Now()}, nil
}

func (z *Zerodha) authorize(req *http.Request) {
	req.Header.Set("X-Kite-Version", "3")
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", z.cfg.APIKey, z.cfg.AccessToken))
}

func (z *Zerodha) do(ctx context.Context, req *http.Request, out interface{}) error {
	body, status, err := z.client.send(ctx, req)
	if err != nil {
		return err
	}

	var env kiteEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("zerodha: decode response (status %d): %w", status, err)
	}
	if env.Status != "success" || status >= 300 {
		return fmt.Errorf("%w: zerodha %s: %s", ErrOrderRejected, env.ErrorType, env.Message)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("zerodha: decode data: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
