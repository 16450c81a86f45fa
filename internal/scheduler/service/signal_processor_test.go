package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/scheduler/sandbox"
	"golang-algo-trader/pkg/broker"
	"golang-algo-trader/pkg/common"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *schedulerHarness) request(mod func(r *ProcessRequest)) ProcessRequest {
	req := ProcessRequest{
		AlgorithmID: 1,
		ExecutionID: 1,
		UserID:      h.portfolio.UserID,
		PortfolioID: h.portfolio.ID,
		Region:      "india",
		Broker:      common.BrokerPaper,
		TradingMode: common.TradingModePaper,
	}
	if mod != nil {
		mod(&req)
	}
	return req
}

func buy(symbol string, qty, price float64) sandbox.RawSignal {
	return sandbox.RawSignal{Symbol: symbol, Type: "buy", Quantity: qty, Price: price, Reason: "test"}
}

func sell(symbol string, qty, price float64) sandbox.RawSignal {
	return sandbox.RawSignal{Symbol: symbol, Type: "sell", Quantity: qty, Price: price, Reason: "test"}
}

func TestNewSignalInput(t *testing.T) {
	tests := []struct {
		name    string
		raw     sandbox.RawSignal
		wantErr bool
	}{
		{"valid buy", buy("infy", 5, 1500), false},
		{"hold without quantity", sandbox.RawSignal{Symbol: "INFY", Type: "HOLD"}, false},
		{"missing symbol", buy(" ", 5, 1500), true},
		{"unknown type", sandbox.RawSignal{Symbol: "INFY", Type: "short", Quantity: 1}, true},
		{"zero quantity", buy("INFY", 0, 1500), true},
		{"negative quantity", sell("INFY", -1, 0), true},
		{"negative price", buy("INFY", 1, -5), true},
		{"nan quantity", buy("INFY", math.NaN(), 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := NewSignalInput(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSignal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "INFY", in.Symbol)
			assert.False(t, in.GeneratedAt.IsZero())
		})
	}

	in, err := NewSignalInput(buy("INFY", 5, 0))
	require.NoError(t, err)
	assert.False(t, in.Price.Valid)
}

func TestProcessSignalsRejectsBuyBeyondCash(t *testing.T) {
	h := newSchedulerHarness(t)
	poor := h.store.AddPortfolio(8, common.TradingModePaper, "india", decimal.NewFromInt(1000))

	res, err := h.processor.ProcessSignals(context.Background(), []sandbox.RawSignal{buy("INFY", 5, 1500)},
		h.request(func(r *ProcessRequest) { r.UserID, r.PortfolioID = 8, poor.ID }))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 0, res.Executed)
	assert.Equal(t, 0, res.Failed)

	signals := h.store.AllSignals()
	require.Len(t, signals, 1)
	assert.Equal(t, entity.SignalRejected, signals[0].ExecutionStatus)
	assert.Equal(t, "Insufficient cash: required 7500.00, available 1000.00", signals[0].RejectionReason)
	assertDecimal(t, "1000", h.store.Cash(poor.ID))
	assert.Empty(t, h.store.Orders)
}

func TestProcessSignalsRejectsSellBeyondHoldings(t *testing.T) {
	h := newSchedulerHarness(t)
	h.store.AddHolding(h.portfolio.ID, h.infy, decimal.NewFromInt(2), decimal.NewFromInt(1400))

	res, err := h.processor.ProcessSignals(context.Background(), []sandbox.RawSignal{sell("INFY", 3, 1500)}, h.request(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Executed)
	assert.Equal(t, entity.SignalRejected, res.Results[0].Status)
	assert.Equal(t, "Insufficient holdings: requested 3, held 2", res.Results[0].Reason)
	assertDecimal(t, "2", h.store.HeldQuantity(h.portfolio.ID, h.infy.ID))
	assertDecimal(t, "10000", h.store.Cash(h.portfolio.ID))
}

func TestProcessSignalsFillsSell(t *testing.T) {
	h := newSchedulerHarness(t)
	h.store.AddHolding(h.portfolio.ID, h.infy, decimal.NewFromInt(10), decimal.NewFromInt(1400))

	res, err := h.processor.ProcessSignals(context.Background(), []sandbox.RawSignal{sell("INFY", 3, 1500)}, h.request(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Executed)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, entity.SideSell, res.Fills[0].Side)
	assertDecimal(t, "4500", res.Fills[0].Notional)
	assertDecimal(t, "7", h.store.HeldQuantity(h.portfolio.ID, h.infy.ID))
	assertDecimal(t, "14500", h.store.Cash(h.portfolio.ID))
}

func TestProcessSignalsHoldIsNotPersisted(t *testing.T) {
	h := newSchedulerHarness(t)

	res, err := h.processor.ProcessSignals(context.Background(),
		[]sandbox.RawSignal{{Symbol: "INFY", Type: "hold", Reason: "flat"}}, h.request(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 0, res.Executed)
	assert.Equal(t, 0, res.Failed)
	assert.False(t, res.Results[0].Executed)
	assert.Empty(t, h.store.AllSignals())
	assert.Empty(t, h.store.Orders)
}

func TestProcessSignalsMalformedDoNotAbortBatch(t *testing.T) {
	h := newSchedulerHarness(t)
	raw := []sandbox.RawSignal{
		buy("", 5, 1500),
		{Symbol: "INFY", Type: "short", Quantity: 1},
		buy("INFY", 0, 1500),
		buy("INFY", 1, 1500),
	}

	res, err := h.processor.ProcessSignals(context.Background(), raw, h.request(nil))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, 1, res.Executed)
	for _, r := range res.Results[:3] {
		assert.NotEmpty(t, r.Error)
	}
	assert.True(t, res.Results[3].Executed)
}

func TestProcessSignalsSeesEarlierFills(t *testing.T) {
	h := newSchedulerHarness(t)

	res, err := h.processor.ProcessSignals(context.Background(),
		[]sandbox.RawSignal{buy("INFY", 5, 1500), buy("INFY", 5, 1500)}, h.request(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, entity.SignalFilled, res.Results[0].Status)
	assert.Equal(t, entity.SignalRejected, res.Results[1].Status)
	assertDecimal(t, "2500", h.store.Cash(h.portfolio.ID))
}

func TestProcessSignalsPriceResolution(t *testing.T) {
	h := newSchedulerHarness(t)
	h.store.AddAsset("WIPRO", "india", decimal.NullDecimal{})

	res, err := h.processor.ProcessSignals(context.Background(),
		[]sandbox.RawSignal{buy("INFY", 2, 0), buy("WIPRO", 1, 0), buy("UNKNOWN", 1, 10)}, h.request(nil))
	require.NoError(t, err)

	assert.True(t, res.Results[0].Executed)
	assertDecimal(t, "1490", res.Results[0].ExecutedPrice.Decimal)
	assert.Contains(t, res.Results[1].Error, "no price available")
	assert.NotEmpty(t, res.Results[2].Error)
	assert.Equal(t, 2, res.Failed)
	assert.Len(t, h.store.AllSignals(), 1)
}

func TestProcessSignalsLiveRequiresBrokerConnection(t *testing.T) {
	h := newSchedulerHarness(t)
	live := h.store.AddPortfolio(7, common.TradingModeLive, "india", decimal.NewFromInt(10000))
	req := h.request(func(r *ProcessRequest) {
		r.PortfolioID = live.ID
		r.TradingMode = common.TradingModeLive
		r.Broker = common.BrokerZerodha
	})

	res, err := h.processor.ProcessSignals(context.Background(), []sandbox.RawSignal{buy("INFY", 1, 1500)}, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, broker.ErrConnectionNotVerified))
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, entity.SignalFailed, h.store.AllSignals()[0].ExecutionStatus)
	assert.Equal(t, 0, h.zerodha.Requests())
	assertDecimal(t, "10000", h.store.Cash(live.ID))

	h.store.Connect(7, common.BrokerZerodha)
	res, err = h.processor.ProcessSignals(context.Background(), []sandbox.RawSignal{buy("INFY", 1, 1500)}, req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, 1, h.zerodha.Requests())
	assertDecimal(t, "8500", h.store.Cash(live.ID))
}
