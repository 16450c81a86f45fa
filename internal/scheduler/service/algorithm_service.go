package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang-algo-trader/internal/entity"
	executorrepo "golang-algo-trader/internal/executor/repository"
	executorsvc "golang-algo-trader/internal/executor/service"
	"golang-algo-trader/internal/scheduler/calendar"
	"golang-algo-trader/internal/scheduler/dto"
	"golang-algo-trader/internal/scheduler/repository"
	"golang-algo-trader/internal/scheduler/schedule"
	"golang-algo-trader/pkg/common"
	"golang-algo-trader/pkg/logger"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

const defaultMaxPositions = 10

var ErrInvalidAlgorithm = errors.New("invalid algorithm")

// AlgorithmService defines the interface for managing algorithms.
type AlgorithmService interface {
	CreateAlgorithm(ctx context.Context, req *dto.CreateAlgorithmRequest) (*dto.AlgorithmResponse, error)
	GetAlgorithmByID(ctx context.Context, id uint) (*dto.AlgorithmResponse, error)
	GetAllAlgorithms(ctx context.Context, userID uint) ([]*dto.AlgorithmResponse, error)
	ActivateAlgorithm(ctx context.Context, id uint) (*dto.AlgorithmResponse, error)
	DeactivateAlgorithm(ctx context.Context, id uint) (*dto.AlgorithmResponse, error)
	DryRunAlgorithm(ctx context.Context, id uint) (*RunReport, error)
	GetSignals(ctx context.Context, id uint, limit int) ([]*dto.SignalResponse, error)
	GetPerformance(ctx context.Context, id uint, limit int) (*dto.PerformanceSummaryResponse, error)
}

// NewAlgorithmService creates a new algorithm service.
func NewAlgorithmService(
	algorithmRepo repository.AlgorithmRepository,
	signalRepo executorrepo.SignalRepository,
	performance executorsvc.PerformanceService,
	scheduler SchedulerService,
	cal *calendar.Calendar,
	logger *logger.Logger,
) AlgorithmService {
	return &algorithmService{
		algorithmRepo: algorithmRepo,
		signalRepo:    signalRepo,
		performance:   performance,
		scheduler:     scheduler,
		calendar:      cal,
		logger:        logger,
	}
}

type algorithmService struct {
	algorithmRepo repository.AlgorithmRepository
	signalRepo    executorrepo.SignalRepository
	performance   executorsvc.PerformanceService
	scheduler     SchedulerService
	calendar      *calendar.Calendar
	logger        *logger.Logger
}

// CreateAlgorithm validates the request and persists the algorithm.
func (s *algorithmService) CreateAlgorithm(ctx context.Context, req *dto.CreateAlgorithmRequest) (*dto.AlgorithmResponse, error) {
	algorithm, err := s.newAlgorithm(req)
	if err != nil {
		return nil, err
	}

	if err := s.algorithmRepo.Create(ctx, algorithm); err != nil {
		s.logger.Error("Failed to create algorithm", logger.ErrorField(err))
		return nil, err
	}

	s.logger.Info("Algorithm created", logger.Field("algorithm_id", algorithm.ID), logger.StringField("name", algorithm.Name))
	return mapToAlgorithmResponse(algorithm), nil
}

func (s *algorithmService) newAlgorithm(req *dto.CreateAlgorithmRequest) (*entity.Algorithm, error) {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidAlgorithm, fmt.Sprintf(format, args...))
	}

	if req.UserID == 0 {
		return nil, invalid("user_id is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, invalid("name is required")
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, invalid("code is required")
	}

	a := &entity.Algorithm{
		UserID:                req.UserID,
		Name:                  strings.TrimSpace(req.Name),
		Code:                  req.Code,
		Region:                req.Region,
		TradingMode:           req.TradingMode,
		ExecutionMode:         entity.ExecutionMode(req.ExecutionMode),
		SchedulingType:        entity.SchedulingType(req.SchedulingType),
		ExecutionInterval:     req.ExecutionInterval,
		ExecutionTimes:        pq.StringArray(req.ExecutionTimes),
		RunContinuously:       req.RunContinuously,
		UniverseAll:           req.UniverseAll,
		MaxPositions:          req.MaxPositions,
		RiskPerTrade:          req.RiskPerTrade,
		RunDurationType:       entity.RunDurationType(req.RunDurationType),
		RunDurationValue:      req.RunDurationValue,
		RunStartDate:          req.RunStartDate,
		RunEndDate:            req.RunEndDate,
		AutoStopOnLoss:        req.AutoStopOnLoss,
		AutoStopLossThreshold: req.AutoStopLossThreshold,
		Status:                entity.AlgorithmStatusInactive,
	}

	if a.Region == "" {
		a.Region = s.calendar.Regions()[0]
	}
	if !slices.Contains(s.calendar.Regions(), a.Region) {
		return nil, invalid("unknown region %q", a.Region)
	}

	if a.TradingMode == "" {
		a.TradingMode = common.TradingModePaper
	}
	if a.TradingMode != common.TradingModePaper && a.TradingMode != common.TradingModeLive {
		return nil, invalid("trading_mode must be paper or live")
	}

	if a.ExecutionMode == "" {
		a.ExecutionMode = entity.ExecutionModeDirect
	}
	if a.ExecutionMode != entity.ExecutionModeDirect && a.ExecutionMode != entity.ExecutionModeBatched {
		return nil, invalid("execution_mode must be direct or batched")
	}

	windows := make([]entity.TimeWindow, 0, len(req.ExecutionTimeWindows))
	for _, w := range req.ExecutionTimeWindows {
		windows = append(windows, entity.TimeWindow{Start: w.Start, End: w.End})
	}
	a.ExecutionTimeWindows = datatypes.NewJSONType(windows)

	if a.SchedulingType == "" {
		a.SchedulingType = entity.SchedulingInterval
	}
	cfg, err := schedule.ParseConfig(a)
	if err != nil {
		return nil, invalid("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	if !a.UniverseAll {
		symbols := make(pq.StringArray, 0, len(req.StockUniverse))
		for _, sym := range req.StockUniverse {
			if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
				symbols = append(symbols, sym)
			}
		}
		if len(symbols) == 0 {
			return nil, invalid("stock_universe is empty and universe_all is not set")
		}
		a.StockUniverse = symbols
	}

	if a.MaxPositions == 0 {
		a.MaxPositions = defaultMaxPositions
	}
	if a.MaxPositions < 0 {
		return nil, invalid("max_positions must be positive")
	}
	if a.RiskPerTrade.IsNegative() {
		return nil, invalid("risk_per_trade must not be negative")
	}

	if a.RunDurationType == "" {
		a.RunDurationType = entity.RunForever
	}
	switch a.RunDurationType {
	case entity.RunForever:
	case entity.RunUntilDate:
		if a.RunEndDate == nil {
			return nil, invalid("run_end_date is required for until_date")
		}
	case entity.RunDays, entity.RunMonths, entity.RunYears:
		if a.RunDurationValue <= 0 {
			return nil, invalid("run_duration_value must be positive for %s", a.RunDurationType)
		}
	default:
		return nil, invalid("unknown run_duration_type %q", a.RunDurationType)
	}

	if a.AutoStopOnLoss && (!a.AutoStopLossThreshold.Valid || a.AutoStopLossThreshold.Decimal.IsZero()) {
		return nil, invalid("auto_stop_loss_threshold is required when auto_stop_on_loss is set")
	}

	if req.Activate {
		a.Status = entity.AlgorithmStatusActive
		a.AutoRun = true
	}
	return a, nil
}

// GetAlgorithmByID retrieves an algorithm by its ID.
func (s *algorithmService) GetAlgorithmByID(ctx context.Context, id uint) (*dto.AlgorithmResponse, error) {
	algorithm, err := s.algorithmRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapToAlgorithmResponse(algorithm), nil
}

// GetAllAlgorithms lists algorithms, optionally for one user.
func (s *algorithmService) GetAllAlgorithms(ctx context.Context, userID uint) ([]*dto.AlgorithmResponse, error) {
	algorithms, err := s.algorithmRepo.FindAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.AlgorithmResponse, 0, len(algorithms))
	for i := range algorithms {
		responses = append(responses, mapToAlgorithmResponse(&algorithms[i]))
	}
	return responses, nil
}

// ActivateAlgorithm is the manual reactivation after an auto-stop.
func (s *algorithmService) ActivateAlgorithm(ctx context.Context, id uint) (*dto.AlgorithmResponse, error) {
	if err := s.algorithmRepo.Activate(ctx, id); err != nil {
		s.logger.Error("Failed to activate algorithm", logger.ErrorField(err), logger.Field("algorithm_id", id))
		return nil, err
	}
	s.logger.Info("Algorithm activated", logger.Field("algorithm_id", id))
	return s.GetAlgorithmByID(ctx, id)
}

func (s *algorithmService) DeactivateAlgorithm(ctx context.Context, id uint) (*dto.AlgorithmResponse, error) {
	if err := s.algorithmRepo.Deactivate(ctx, id); err != nil {
		s.logger.Error("Failed to deactivate algorithm", logger.ErrorField(err), logger.Field("algorithm_id", id))
		return nil, err
	}
	s.logger.Info("Algorithm deactivated", logger.Field("algorithm_id", id))
	return s.GetAlgorithmByID(ctx, id)
}

func (s *algorithmService) DryRunAlgorithm(ctx context.Context, id uint) (*RunReport, error) {
	return s.scheduler.DryRun(ctx, id)
}

// GetSignals returns the algorithm's most recent signals.
func (s *algorithmService) GetSignals(ctx context.Context, id uint, limit int) ([]*dto.SignalResponse, error) {
	if _, err := s.algorithmRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	signals, err := s.signalRepo.FindByAlgorithmID(ctx, id, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.SignalResponse, 0, len(signals))
	for _, signal := range signals {
		resp := &dto.SignalResponse{
			ID:              signal.ID,
			ExecutionID:     signal.ExecutionID,
			Symbol:          signal.Symbol,
			SignalType:      string(signal.SignalType),
			Quantity:        signal.Quantity.String(),
			Price:           signal.Price.String(),
			Reason:          signal.Reason,
			ExecutionStatus: string(signal.ExecutionStatus),
			RejectionReason: signal.RejectionReason,
			ErrorMessage:    signal.ErrorMessage,
			ExecutedAt:      signal.ExecutedAt,
			GeneratedAt:     signal.GeneratedAt,
		}
		if signal.ExecutedPrice.Valid {
			price := signal.ExecutedPrice.Decimal.String()
			resp.ExecutedPrice = &price
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// GetPerformance returns the daily snapshots together with the cumulative P&L the loss check uses.
func (s *algorithmService) GetPerformance(ctx context.Context, id uint, limit int) (*dto.PerformanceSummaryResponse, error) {
	if _, err := s.algorithmRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.performance.History(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.performance.CumulativePnL(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &dto.PerformanceSummaryResponse{
		AlgorithmID:   id,
		CumulativePnL: total.StringFixed(2),
		Days:          make([]dto.PerformanceResponse, 0, len(history)),
	}
	for _, day := range history {
		resp.Days = append(resp.Days, dto.PerformanceResponse{
			Date:        day.Date.Format("2006-01-02"),
			TradesCount: day.TradesCount,
			BuyCount:    day.BuyCount,
			SellCount:   day.SellCount,
			BuyValue:    day.BuyValue.StringFixed(2),
			SellValue:   day.SellValue.StringFixed(2),
			PnL:         day.PnL.StringFixed(2),
		})
	}
	return resp, nil
}

// mapToAlgorithmResponse maps an entity.Algorithm to a dto.AlgorithmResponse. The code is not echoed.
func mapToAlgorithmResponse(a *entity.Algorithm) *dto.AlgorithmResponse {
	var windows []dto.TimeWindowDTO
	for _, w := range a.ExecutionTimeWindows.Data() {
		windows = append(windows, dto.TimeWindowDTO{Start: w.Start, End: w.End})
	}

	var threshold *string
	if a.AutoStopLossThreshold.Valid {
		v := a.AutoStopLossThreshold.Decimal.String()
		threshold = &v
	}

	return &dto.AlgorithmResponse{
		ID:                    a.ID,
		UserID:                a.UserID,
		Name:                  a.Name,
		Region:                a.Region,
		TradingMode:           a.TradingMode,
		ExecutionMode:         string(a.ExecutionMode),
		SchedulingType:        string(a.SchedulingType),
		ExecutionInterval:     a.ExecutionInterval,
		ExecutionTimeWindows:  windows,
		ExecutionTimes:        []string(a.ExecutionTimes),
		RunContinuously:       a.RunContinuously,
		UniverseAll:           a.UniverseAll,
		StockUniverse:         []string(a.StockUniverse),
		MaxPositions:          a.MaxPositions,
		RiskPerTrade:          a.RiskPerTrade.String(),
		RunDurationType:       string(a.RunDurationType),
		RunDurationValue:      a.RunDurationValue,
		RunStartDate:          a.RunStartDate,
		RunEndDate:            a.RunEndDate,
		AutoStopOnLoss:        a.AutoStopOnLoss,
		AutoStopLossThreshold: threshold,
		Status:                string(a.Status),
		AutoRun:               a.AutoRun,
		StopReason:            a.StopReason,
		CurrentlyExecuting:    a.CurrentlyExecuting,
		LastRunAt:             a.LastRunAt,
		NextScheduledRun:      a.NextScheduledRun,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
}
