package service

import (
	"context"
	"encoding/json"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/scheduler/dto"
	"golang-algo-trader/internal/scheduler/repository"
	"golang-algo-trader/pkg/logger"
)

const defaultHistoryLimit = 50

// ExecutionHistoryService defines the interface for reading algorithm run records.
type ExecutionHistoryService interface {
	GetExecutionHistoryByID(ctx context.Context, id uint) (*dto.ExecutionHistoryResponse, error)
	GetExecutionHistoriesByAlgorithmID(ctx context.Context, algorithmID uint, limit int) ([]*dto.ExecutionHistoryResponse, error)
}

// NewExecutionHistoryService creates a new execution history service.
func NewExecutionHistoryService(historyRepo repository.AlgorithmExecutionRepository, logger *logger.Logger) ExecutionHistoryService {
	return &executionHistoryService{
		historyRepo: historyRepo,
		logger:      logger,
	}
}

type executionHistoryService struct {
	historyRepo repository.AlgorithmExecutionRepository
	logger      *logger.Logger
}

// GetExecutionHistoryByID retrieves a run record by its ID.
func (s *executionHistoryService) GetExecutionHistoryByID(ctx context.Context, id uint) (*dto.ExecutionHistoryResponse, error) {
	history, err := s.historyRepo.FindByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to find execution history", logger.ErrorField(err), logger.Field("execution_id", id))
		return nil, err
	}
	return mapToExecutionHistoryResponse(history), nil
}

// GetExecutionHistoriesByAlgorithmID retrieves the latest runs of an algorithm, newest first.
func (s *executionHistoryService) GetExecutionHistoriesByAlgorithmID(ctx context.Context, algorithmID uint, limit int) ([]*dto.ExecutionHistoryResponse, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	histories, err := s.historyRepo.FindAllByAlgorithmID(ctx, algorithmID, limit)
	if err != nil {
		s.logger.Error("Failed to get execution histories by algorithm ID", logger.ErrorField(err), logger.Field("algorithm_id", algorithmID))
		return nil, err
	}

	historyResponses := make([]*dto.ExecutionHistoryResponse, 0, len(histories))
	for i := range histories {
		historyResponses = append(historyResponses, mapToExecutionHistoryResponse(&histories[i]))
	}
	return historyResponses, nil
}

// mapToExecutionHistoryResponse maps an entity.AlgorithmExecution to a dto.ExecutionHistoryResponse.
func mapToExecutionHistoryResponse(history *entity.AlgorithmExecution) *dto.ExecutionHistoryResponse {
	var duration int64
	if history.CompletedAt.Valid {
		duration = history.CompletedAt.Time.Sub(history.StartedAt).Milliseconds()
	}

	return &dto.ExecutionHistoryResponse{
		ID:               history.ID,
		AlgorithmID:      history.AlgorithmID,
		Trigger:          string(history.Trigger),
		DryRun:           history.DryRun,
		Status:           string(history.Status),
		StartedAt:        history.StartedAt,
		Duration:         duration,
		SignalsGenerated: history.SignalsGenerated,
		SignalsExecuted:  history.SignalsExecuted,
		SignalsFailed:    history.SignalsFailed,
		ErrorMessage:     history.ErrorMessage.String,
		Output:           json.RawMessage(history.Output),
	}
}
