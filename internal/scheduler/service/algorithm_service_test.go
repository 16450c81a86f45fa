package service

import (
	"context"
	"errors"
	"testing"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/scheduler/dto"
	"golang-algo-trader/internal/scheduler/repository"
	"golang-algo-trader/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *schedulerHarness) algorithmService() AlgorithmService {
	return NewAlgorithmService(h.algorithms, h.store.SignalRepository(), h.perf, h.svc, h.calendar, logger.NewNop())
}

func validRequest() *dto.CreateAlgorithmRequest {
	return &dto.CreateAlgorithmRequest{
		UserID:            7,
		Name:              " dip buyer ",
		Code:              buyInfy,
		ExecutionInterval: "15min",
		StockUniverse:     []string{" infy", "tcs", ""},
	}
}

func TestCreateAlgorithmAppliesDefaults(t *testing.T) {
	h := newSchedulerHarness(t)
	svc := h.algorithmService()

	resp, err := svc.CreateAlgorithm(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "dip buyer", resp.Name)
	assert.Equal(t, "india", resp.Region)
	assert.Equal(t, "paper", resp.TradingMode)
	assert.Equal(t, string(entity.ExecutionModeDirect), resp.ExecutionMode)
	assert.Equal(t, string(entity.SchedulingInterval), resp.SchedulingType)
	assert.Equal(t, string(entity.RunForever), resp.RunDurationType)
	assert.Equal(t, 10, resp.MaxPositions)
	assert.Equal(t, []string{"INFY", "TCS"}, resp.StockUniverse)
	assert.Equal(t, string(entity.AlgorithmStatusInactive), resp.Status)
	assert.False(t, resp.AutoRun)

	stored := h.algorithms.get(resp.ID)
	assert.Equal(t, buyInfy, stored.Code)
}

func TestCreateAlgorithmActivateFlag(t *testing.T) {
	h := newSchedulerHarness(t)
	req := validRequest()
	req.Activate = true
	req.Region = "us"

	resp, err := h.algorithmService().CreateAlgorithm(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, string(entity.AlgorithmStatusActive), resp.Status)
	assert.True(t, resp.AutoRun)
	assert.Equal(t, "us", resp.Region)
}

func TestCreateContinuousAlgorithm(t *testing.T) {
	h := newSchedulerHarness(t)
	req := validRequest()
	req.SchedulingType = "continuous"
	req.RunContinuously = true

	resp, err := h.algorithmService().CreateAlgorithm(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.RunContinuously)
}

func TestCreateAlgorithmValidation(t *testing.T) {
	tests := []struct {
		name string
		mod  func(r *dto.CreateAlgorithmRequest)
		want string
	}{
		{"missing name", func(r *dto.CreateAlgorithmRequest) { r.Name = "  " }, "name is required"},
		{"missing code", func(r *dto.CreateAlgorithmRequest) { r.Code = "" }, "code is required"},
		{"missing user", func(r *dto.CreateAlgorithmRequest) { r.UserID = 0 }, "user_id is required"},
		{"unknown region", func(r *dto.CreateAlgorithmRequest) { r.Region = "mars" }, `unknown region "mars"`},
		{"bad trading mode", func(r *dto.CreateAlgorithmRequest) { r.TradingMode = "margin" }, "trading_mode"},
		{"bad execution mode", func(r *dto.CreateAlgorithmRequest) { r.ExecutionMode = "later" }, "execution_mode"},
		{"unknown interval", func(r *dto.CreateAlgorithmRequest) { r.ExecutionInterval = "2min" }, "unknown execution interval"},
		{"windows without windows", func(r *dto.CreateAlgorithmRequest) { r.SchedulingType = "time_windows" }, "no windows"},
		{"inverted window", func(r *dto.CreateAlgorithmRequest) {
			r.SchedulingType = "time_windows"
			r.ExecutionTimeWindows = []dto.TimeWindowDTO{{Start: "14:00", End: "10:00"}}
		}, "ends before it starts"},
		{"single time without times", func(r *dto.CreateAlgorithmRequest) { r.SchedulingType = "single_time" }, "no execution times"},
		{"continuous without run flag", func(r *dto.CreateAlgorithmRequest) { r.SchedulingType = "continuous" }, "requires run_continuously"},
		{"empty universe", func(r *dto.CreateAlgorithmRequest) { r.StockUniverse = []string{" "} }, "stock_universe is empty"},
		{"negative positions", func(r *dto.CreateAlgorithmRequest) { r.MaxPositions = -1 }, "max_positions"},
		{"negative risk", func(r *dto.CreateAlgorithmRequest) { r.RiskPerTrade = decimal.NewFromInt(-1) }, "risk_per_trade"},
		{"days without value", func(r *dto.CreateAlgorithmRequest) { r.RunDurationType = "days" }, "run_duration_value"},
		{"until date without date", func(r *dto.CreateAlgorithmRequest) { r.RunDurationType = "until_date" }, "run_end_date"},
		{"loss stop without threshold", func(r *dto.CreateAlgorithmRequest) { r.AutoStopOnLoss = true }, "auto_stop_loss_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newSchedulerHarness(t)
			req := validRequest()
			tt.mod(req)

			_, err := h.algorithmService().CreateAlgorithm(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidAlgorithm))
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, h.algorithms.rows)
		})
	}
}

func TestActivateClearsStopReason(t *testing.T) {
	h := newSchedulerHarness(t)
	ctx := context.Background()
	a := h.addAlgorithm(t, nil)
	require.NoError(t, h.algorithms.Stop(ctx, a.ID, "Cumulative loss -150.00 reached threshold 100.00"))

	svc := h.algorithmService()
	stopped, err := svc.GetAlgorithmByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.AlgorithmStatusInactive), stopped.Status)
	assert.NotEmpty(t, stopped.StopReason)

	resp, err := svc.ActivateAlgorithm(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.AlgorithmStatusActive), resp.Status)
	assert.True(t, resp.AutoRun)
	assert.Empty(t, resp.StopReason)

	resp, err = svc.DeactivateAlgorithm(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.AlgorithmStatusInactive), resp.Status)
	assert.False(t, resp.AutoRun)
	assert.Nil(t, resp.NextScheduledRun)
}

func TestAlgorithmNotFound(t *testing.T) {
	h := newSchedulerHarness(t)
	svc := h.algorithmService()
	ctx := context.Background()

	_, err := svc.GetAlgorithmByID(ctx, 99)
	assert.ErrorIs(t, err, repository.ErrAlgorithmNotFound)
	_, err = svc.ActivateAlgorithm(ctx, 99)
	assert.ErrorIs(t, err, repository.ErrAlgorithmNotFound)
	_, err = svc.GetSignals(ctx, 99, 10)
	assert.ErrorIs(t, err, repository.ErrAlgorithmNotFound)
}

func TestGetSignalsAfterDryRun(t *testing.T) {
	h := newSchedulerHarness(t)
	ctx := context.Background()
	a := h.addAlgorithm(t, nil)
	svc := h.algorithmService()

	report, err := svc.DryRunAlgorithm(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 1, report.Result.Processed)

	signals, err := svc.GetSignals(ctx, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "INFY", signals[0].Symbol)
	assert.Equal(t, string(entity.SignalSimulated), signals[0].ExecutionStatus)
	assert.Equal(t, report.ExecutionID, signals[0].ExecutionID)
}
