package service

import (
	"context"
	"encoding/json"

	"golang-algo-trader/internal/entity"
	executorsvc "golang-algo-trader/internal/executor/service"
	"golang-algo-trader/internal/scheduler/dto"
	"golang-algo-trader/pkg/logger"
)

const defaultQueueLimit = 100

// QueueService exposes the trade queue to the API.
type QueueService interface {
	ListQueuedOrders(ctx context.Context, status string, limit int) ([]*dto.QueuedOrderResponse, error)
	CancelQueuedOrder(ctx context.Context, id uint) error
}

// NewQueueService creates a new queue service.
func NewQueueService(tradeQueue executorsvc.TradeQueueService, logger *logger.Logger) QueueService {
	return &queueService{
		tradeQueue: tradeQueue,
		logger:     logger,
	}
}

type queueService struct {
	tradeQueue executorsvc.TradeQueueService
	logger     *logger.Logger
}

func (s *queueService) ListQueuedOrders(ctx context.Context, status string, limit int) ([]*dto.QueuedOrderResponse, error) {
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	orders, err := s.tradeQueue.ListOrders(ctx, entity.QueueStatus(status), limit)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.QueuedOrderResponse, 0, len(orders))
	for _, o := range orders {
		responses = append(responses, &dto.QueuedOrderResponse{
			ID:               o.ID,
			ExecutionOrderID: o.ExecutionOrderID,
			Symbol:           o.Symbol,
			Side:             string(o.Side),
			Quantity:         o.Quantity.String(),
			Priority:         o.Priority,
			Broker:           o.Broker,
			Status:           string(o.Status),
			ScheduledAt:      o.ScheduledAt,
			BatchID:          o.BatchID,
			ErrorMessage:     o.ErrorMessage,
			Result:           json.RawMessage(o.Result),
			ExecutedAt:       o.ExecutedAt,
		})
	}
	return responses, nil
}

// CancelQueuedOrder fails with executorsvc.ErrOrderNotCancellable once the order left the queued state.
func (s *queueService) CancelQueuedOrder(ctx context.Context, id uint) error {
	if err := s.tradeQueue.CancelOrder(ctx, id); err != nil {
		s.logger.Warn("Failed to cancel queued order", logger.ErrorField(err), logger.Field("queued_order_id", id))
		return err
	}
	s.logger.Info("Queued order cancelled", logger.Field("queued_order_id", id))
	return nil
}
