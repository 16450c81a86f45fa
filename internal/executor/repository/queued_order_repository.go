package repository

import (
	"context"
	"errors"
	"time"

	"golang-algo-trader/internal/entity"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrQueuedOrderNotFound = errors.New("queued order not found")

// QueuedOrderRepository persists the trade queue. Status changes are conditional on the
// current status so concurrent cancel and batch pickup cannot both win.
type QueuedOrderRepository interface {
	Create(ctx context.Context, order *entity.QueuedOrder) error
	FindByID(ctx context.Context, id uint) (*entity.QueuedOrder, error)
	FindDue(ctx context.Context, now time.Time) ([]entity.QueuedOrder, error)
	FindByBatchID(ctx context.Context, batchID string) ([]entity.QueuedOrder, error)
	FindStale(ctx context.Context, before time.Time) ([]entity.QueuedOrder, error)
	List(ctx context.Context, status entity.QueueStatus, limit int) ([]entity.QueuedOrder, error)
	Transition(ctx context.Context, ids []uint, from, to entity.QueueStatus, batchID string) (int64, error)
	Complete(ctx context.Context, ids []uint, status entity.QueueStatus, result datatypes.JSON, errMsg string, at time.Time) error
	Cancel(ctx context.Context, id uint) (bool, error)
}

func NewQueuedOrderRepository(db *gorm.DB) QueuedOrderRepository {
	return &queuedOrderRepository{db: db}
}

type queuedOrderRepository struct {
	db *gorm.DB
}

func (r *queuedOrderRepository) Create(ctx context.Context, order *entity.QueuedOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *queuedOrderRepository) FindByID(ctx context.Context, id uint) (*entity.QueuedOrder, error) {
	var order entity.QueuedOrder
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQueuedOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindDue returns queued orders whose scheduled time has passed, highest priority first,
// then in enqueue order.
func (r *queuedOrderRepository) FindDue(ctx context.Context, now time.Time) ([]entity.QueuedOrder, error) {
	var orders []entity.QueuedOrder
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", entity.QueueQueued, now).
		Order("priority DESC, created_at ASC, id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// FindByBatchID returns the members of a batch in execution order.
func (r *queuedOrderRepository) FindByBatchID(ctx context.Context, batchID string) ([]entity.QueuedOrder, error) {
	var orders []entity.QueuedOrder
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("priority DESC, created_at ASC, id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// FindStale returns batched or executing orders last touched before the given time. These are
// left behind by a processor that stopped mid-batch.
func (r *queuedOrderRepository) FindStale(ctx context.Context, before time.Time) ([]entity.QueuedOrder, error) {
	var orders []entity.QueuedOrder
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []entity.QueueStatus{entity.QueueBatched, entity.QueueExecuting}, before).
		Order("id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *queuedOrderRepository) List(ctx context.Context, status entity.QueueStatus, limit int) ([]entity.QueuedOrder, error) {
	var orders []entity.QueuedOrder
	q := r.db.WithContext(ctx).Order("scheduled_at DESC, priority DESC, id ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// Transition moves the given orders from one status to another and returns how many moved.
func (r *queuedOrderRepository) Transition(ctx context.Context, ids []uint, from, to entity.QueueStatus, batchID string) (int64, error) {
	updates := map[string]interface{}{"status": to}
	if batchID != "" {
		updates["batch_id"] = batchID
	}
	res := r.db.WithContext(ctx).Model(&entity.QueuedOrder{}).
		Where("id IN ? AND status = ?", ids, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// Complete writes a terminal status for orders that are still batched or executing.
func (r *queuedOrderRepository) Complete(ctx context.Context, ids []uint, status entity.QueueStatus, result datatypes.JSON, errMsg string, at time.Time) error {
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errMsg,
		"executed_at":   at,
	}
	if result != nil {
		updates["result"] = result
	}
	return r.db.WithContext(ctx).Model(&entity.QueuedOrder{}).
		Where("id IN ? AND status IN ?", ids, []entity.QueueStatus{entity.QueueBatched, entity.QueueExecuting}).
		Updates(updates).Error
}

// Cancel cancels the order only while it is still queued. It reports whether it did.
func (r *queuedOrderRepository) Cancel(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.QueuedOrder{}).
		Where("id = ? AND status = ?", id, entity.QueueQueued).
		Update("status", entity.QueueCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
