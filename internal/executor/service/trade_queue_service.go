package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/executor/repository"
	"golang-algo-trader/pkg/events"
	"golang-algo-trader/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DefaultBatchWindow = 5 * time.Minute
	DefaultStaleAfter  = 15 * time.Minute

	reasonNoValidOrders    = "no valid orders"
	reasonCancelledOrder   = "order cancelled before execution"
	reasonOrderNotPending  = "execution order is no longer pending"
	reasonBatchInterrupted = "batch interrupted before settlement"
)

var ErrOrderNotCancellable = errors.New("order is no longer queued and cannot be cancelled")

// NextBatchWindow rounds t up to the next multiple of window. A time already on a boundary moves to
// the following one.
func NextBatchWindow(t time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = DefaultBatchWindow
	}
	return t.Truncate(window).Add(window)
}

// BatchReport summarizes one ProcessDueBatches pass.
type BatchReport struct {
	Batches  int `json:"batches"`
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
	// Recovered counts stale batched or executing rows resolved before this pass.
	Recovered int `json:"recovered"`
}

// TradeQueueService queues execution orders into batch windows and dispatches due batches.
type TradeQueueService interface {
	QueueOrder(ctx context.Context, order *entity.ExecutionOrder, priority int) (*entity.QueuedOrder, error)
	CancelOrder(ctx context.Context, id uint) error
	ListOrders(ctx context.Context, status entity.QueueStatus, limit int) ([]entity.QueuedOrder, error)
	ProcessDueBatches(ctx context.Context) (*BatchReport, error)
	RecoverStaleBatches(ctx context.Context) (int, error)
}

type tradeQueueService struct {
	queue      repository.QueuedOrderRepository
	orders     repository.ExecutionOrderRepository
	signals    repository.SignalRepository
	aggregator Aggregator
	publisher  events.Publisher
	window     time.Duration
	staleAfter time.Duration
	logger     *logger.Logger
	now        func() time.Time
}

func NewTradeQueueService(
	queue repository.QueuedOrderRepository,
	orders repository.ExecutionOrderRepository,
	signals repository.SignalRepository,
	aggregator Aggregator,
	publisher events.Publisher,
	window time.Duration,
	staleAfter time.Duration,
	log *logger.Logger,
) TradeQueueService {
	if window <= 0 {
		window = DefaultBatchWindow
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &tradeQueueService{
		queue:      queue,
		orders:     orders,
		signals:    signals,
		aggregator: aggregator,
		publisher:  publisher,
		window:     window,
		staleAfter: staleAfter,
		logger:     log,
		now:        time.Now,
	}
}

func (s *tradeQueueService) QueueOrder(ctx context.Context, order *entity.ExecutionOrder, priority int) (*entity.QueuedOrder, error) {
	if order.ID == 0 {
		return nil, fmt.Errorf("execution order must be persisted before queueing")
	}
	queued := &entity.QueuedOrder{
		ExecutionOrderID: order.ID,
		UserID:           order.UserID,
		Symbol:           order.Symbol,
		Side:             order.Side,
		Quantity:         order.Quantity,
		Priority:         priority,
		Broker:           order.Broker,
		Status:           entity.QueueQueued,
		ScheduledAt:      NextBatchWindow(s.now(), s.window),
	}
	if err := s.queue.Create(ctx, queued); err != nil {
		return nil, fmt.Errorf("failed to queue order: %w", err)
	}

	s.logger.Info("Order queued",
		logger.Field("queued_order_id", queued.ID),
		logger.Field("execution_order_id", order.ID),
		logger.StringField("symbol", order.Symbol),
		logger.Field("scheduled_at", queued.ScheduledAt),
	)
	return queued, nil
}

func (s *tradeQueueService) CancelOrder(ctx context.Context, id uint) error {
	queued, err := s.queue.FindByID(ctx, id)
	if err != nil {
		return err
	}
	cancelled, err := s.queue.Cancel(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if !cancelled {
		return fmt.Errorf("%w: status %s", ErrOrderNotCancellable, queued.Status)
	}

	order, err := s.orders.FindByID(ctx, queued.ExecutionOrderID)
	if err != nil {
		s.logger.Error("Failed to load cancelled execution order", logger.Field("execution_order_id", queued.ExecutionOrderID), logger.ErrorField(err))
		return nil
	}
	order.Status = entity.OrderCancelled
	order.ErrorMessage = reasonCancelledOrder
	if err := s.orders.Update(ctx, order); err != nil {
		s.logger.Error("Failed to cancel execution order", logger.Field("execution_order_id", order.ID), logger.ErrorField(err))
	}

	if signal, err := s.signals.FindByID(ctx, order.SignalID); err == nil {
		signal.ExecutionStatus = entity.SignalRejected
		signal.RejectionReason = reasonCancelledOrder
		if err := s.signals.Update(ctx, signal); err != nil {
			s.logger.Error("Failed to reject cancelled signal", logger.Field("signal_id", signal.ID), logger.ErrorField(err))
		}
	}

	s.publish(ctx, events.New(events.OrderCancelled, map[string]interface{}{
		"queued_order_id":    queued.ID,
		"execution_order_id": queued.ExecutionOrderID,
		"symbol":             queued.Symbol,
	}))
	return nil
}

func (s *tradeQueueService) ListOrders(ctx context.Context, status entity.QueueStatus, limit int) ([]entity.QueuedOrder, error) {
	return s.queue.List(ctx, status, limit)
}

type batchKey struct {
	scheduledAt time.Time
	broker      string
}

type batch struct {
	key    batchKey
	orders []entity.QueuedOrder
}

// groupBatches partitions due orders by (scheduled_at, broker), keeping the priority-then-FIFO order
// inside each batch. Batches are returned oldest window first.
func groupBatches(due []entity.QueuedOrder) []*batch {
	var out []*batch
	index := map[batchKey]*batch{}
	for _, q := range due {
		k := batchKey{scheduledAt: q.ScheduledAt.UTC(), broker: q.Broker}
		b, ok := index[k]
		if !ok {
			b = &batch{key: k}
			index[k] = b
			out = append(out, b)
		}
		b.orders = append(b.orders, q)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].key.scheduledAt.Equal(out[j].key.scheduledAt) {
			return out[i].key.scheduledAt.Before(out[j].key.scheduledAt)
		}
		return out[i].key.broker < out[j].key.broker
	})
	return out
}

func (s *tradeQueueService) ProcessDueBatches(ctx context.Context) (*BatchReport, error) {
	report := &BatchReport{}
	recovered, err := s.RecoverStaleBatches(ctx)
	if err != nil {
		s.logger.Error("Failed to recover stale batches", logger.ErrorField(err))
	}
	report.Recovered = recovered

	due, err := s.queue.FindDue(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load due orders: %w", err)
	}

	for _, b := range groupBatches(due) {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		executed, failed := s.processBatch(ctx, b)
		report.Batches++
		report.Executed += executed
		report.Failed += failed
	}

	if report.Batches > 0 || report.Recovered > 0 {
		s.logger.Info("Processed due batches",
			logger.IntField("batches", report.Batches),
			logger.IntField("executed", report.Executed),
			logger.IntField("failed", report.Failed),
			logger.IntField("recovered", report.Recovered),
		)
	}
	return report, nil
}

func (s *tradeQueueService) processBatch(ctx context.Context, b *batch) (executed, failed int) {
	batchID := uuid.NewString()
	log := s.logger.With(
		logger.StringField("batch_id", batchID),
		logger.StringField("broker", b.key.broker),
		logger.Field("scheduled_at", b.key.scheduledAt),
	)

	ids := make([]uint, 0, len(b.orders))
	for _, q := range b.orders {
		ids = append(ids, q.ID)
	}
	if _, err := s.queue.Transition(ctx, ids, entity.QueueQueued, entity.QueueBatched, batchID); err != nil {
		log.Error("Failed to batch orders", logger.ErrorField(err))
		return 0, 0
	}
	members, err := s.queue.FindByBatchID(ctx, batchID)
	if err != nil {
		return 0, s.failBatch(ctx, log, batchID, b.key.broker, ids, fmt.Errorf("failed to load batch members: %w", err))
	}
	if len(members) == 0 {
		return 0, 0
	}

	ids = ids[:0]
	orderIDs := make([]uint, 0, len(members))
	for _, q := range members {
		ids = append(ids, q.ID)
		orderIDs = append(orderIDs, q.ExecutionOrderID)
	}
	if _, err := s.queue.Transition(ctx, ids, entity.QueueBatched, entity.QueueExecuting, ""); err != nil {
		return 0, s.failBatch(ctx, log, batchID, b.key.broker, ids, fmt.Errorf("failed to mark batch executing: %w", err))
	}

	orders, err := s.orders.FindByIDs(ctx, orderIDs)
	if err != nil {
		return 0, s.failBatch(ctx, log, batchID, b.key.broker, ids, fmt.Errorf("failed to resolve execution orders: %w", err))
	}
	byID := make(map[uint]*entity.ExecutionOrder, len(orders))
	for i := range orders {
		if orders[i].Status == entity.OrderPending {
			byID[orders[i].ID] = &orders[i]
		}
	}

	var resolved []*entity.ExecutionOrder
	var unresolved []uint
	for _, q := range members {
		if o, ok := byID[q.ExecutionOrderID]; ok {
			resolved = append(resolved, o)
		} else {
			unresolved = append(unresolved, q.ID)
		}
	}
	if len(resolved) == 0 {
		return 0, s.failBatch(ctx, log, batchID, b.key.broker, ids, errors.New(reasonNoValidOrders))
	}

	result, err := s.aggregator.Execute(ctx, batchID, b.key.broker, resolved)
	if err != nil {
		for _, o := range resolved {
			if uerr := s.markOrderFailed(ctx, o, err); uerr != nil {
				log.Error("Failed to mark order failed", logger.Field("execution_order_id", o.ID), logger.ErrorField(uerr))
			}
		}
		return 0, s.failBatch(ctx, log, batchID, b.key.broker, ids, err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		log.Error("Failed to encode batch result", logger.ErrorField(err))
	}
	at := s.now()

	var executedIDs []uint
	for _, q := range members {
		msg, ok := result.outcomeMessage(q.ExecutionOrderID)
		switch {
		case !ok:
			continue
		case msg == "":
			executedIDs = append(executedIDs, q.ID)
		default:
			s.complete(ctx, log, []uint{q.ID}, entity.QueueFailed, payload, msg, at)
			failed++
		}
	}
	if len(unresolved) > 0 {
		s.complete(ctx, log, unresolved, entity.QueueFailed, payload, reasonOrderNotPending, at)
		failed += len(unresolved)
	}
	if len(executedIDs) > 0 {
		s.complete(ctx, log, executedIDs, entity.QueueExecuted, payload, "", at)
		executed = len(executedIDs)
	}

	s.publish(ctx, events.New(events.BatchExecuted, map[string]interface{}{
		"batch_id": batchID,
		"broker":   b.key.broker,
		"executed": executed,
		"failed":   failed,
		"symbols":  len(result.Symbols),
	}))
	return executed, failed
}

// RecoverStaleBatches resolves rows a stopped processor left batched or executing. A filled
// execution order marks its row executed. Any other row fails, and a still pending order is failed
// together with its signal.
func (s *tradeQueueService) RecoverStaleBatches(ctx context.Context) (int, error) {
	stale, err := s.queue.FindStale(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to load stale queued orders: %w", err)
	}

	at := s.now()
	for _, q := range stale {
		log := s.logger.With(
			logger.Field("queued_order_id", q.ID),
			logger.StringField("batch_id", q.BatchID),
			logger.StringField("status", string(q.Status)),
		)
		order, err := s.orders.FindByID(ctx, q.ExecutionOrderID)
		switch {
		case err != nil:
			s.complete(ctx, log, []uint{q.ID}, entity.QueueFailed, nil, fmt.Sprintf("%s: %v", reasonBatchInterrupted, err), at)
		case order.Status == entity.OrderFilled:
			s.complete(ctx, log, []uint{q.ID}, entity.QueueExecuted, nil, "", at)
		case order.Status == entity.OrderPending:
			if uerr := s.markOrderFailed(ctx, order, errors.New(reasonBatchInterrupted)); uerr != nil {
				log.Error("Failed to mark order failed", logger.Field("execution_order_id", order.ID), logger.ErrorField(uerr))
			}
			s.complete(ctx, log, []uint{q.ID}, entity.QueueFailed, nil, reasonBatchInterrupted, at)
		default:
			msg := order.ErrorMessage
			if msg == "" {
				msg = reasonOrderNotPending
			}
			s.complete(ctx, log, []uint{q.ID}, entity.QueueFailed, nil, msg, at)
		}
		log.Warn("Recovered stale queued order", logger.Field("execution_order_id", q.ExecutionOrderID))
	}
	return len(stale), nil
}

// markOrderFailed fails an order and its signal when the aggregator could not run at all.
func (s *tradeQueueService) markOrderFailed(ctx context.Context, order *entity.ExecutionOrder, cause error) error {
	ctx = context.WithoutCancel(ctx)
	order.Status = entity.OrderFailed
	order.ErrorMessage = cause.Error()
	if err := s.orders.Update(ctx, order); err != nil {
		return err
	}
	signal, err := s.signals.FindByID(ctx, order.SignalID)
	if err != nil {
		return err
	}
	signal.ExecutionStatus = entity.SignalFailed
	signal.ErrorMessage = cause.Error()
	return s.signals.Update(ctx, signal)
}

func (s *tradeQueueService) failBatch(ctx context.Context, log *logger.Logger, batchID, broker string, ids []uint, cause error) int {
	log.Error("Batch failed", logger.ErrorField(cause))
	s.complete(ctx, log, ids, entity.QueueFailed, nil, cause.Error(), s.now())
	s.publish(ctx, events.New(events.BatchFailed, map[string]interface{}{
		"batch_id": batchID,
		"broker":   broker,
		"orders":   len(ids),
		"reason":   cause.Error(),
	}))
	return len(ids)
}

func (s *tradeQueueService) complete(ctx context.Context, log *logger.Logger, ids []uint, status entity.QueueStatus, payload []byte, msg string, at time.Time) {
	var result datatypes.JSON
	if len(payload) > 0 {
		result = datatypes.JSON(payload)
	}
	// Terminal writes outlive the tick deadline so a slow batch does not strand its rows.
	if err := s.queue.Complete(context.WithoutCancel(ctx), ids, status, result, msg, at); err != nil {
		log.Error("Failed to complete queued orders", logger.StringField("status", string(status)), logger.ErrorField(err))
	}
}

func (s *tradeQueueService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("Failed to publish event", logger.StringField("type", string(event.Type)), logger.ErrorField(err))
	}
}
