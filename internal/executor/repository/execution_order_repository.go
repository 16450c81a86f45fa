package repository

import (
	"context"

	"golang-algo-trader/internal/entity"

	"gorm.io/gorm"
)

type ExecutionOrderRepository interface {
	Create(ctx context.Context, order *entity.ExecutionOrder) error
	Update(ctx context.Context, order *entity.ExecutionOrder) error
	FindByID(ctx context.Context, id uint) (*entity.ExecutionOrder, error)
	FindByIDs(ctx context.Context, ids []uint) ([]entity.ExecutionOrder, error)
}

func NewExecutionOrderRepository(db *gorm.DB) ExecutionOrderRepository {
	return &executionOrderRepository{db: db}
}

type executionOrderRepository struct {
	db *gorm.DB
}

func (r *executionOrderRepository) Create(ctx context.Context, order *entity.ExecutionOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *executionOrderRepository) Update(ctx context.Context, order *entity.ExecutionOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *executionOrderRepository) FindByID(ctx context.Context, id uint) (*entity.ExecutionOrder, error) {
	var order entity.ExecutionOrder
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *executionOrderRepository) FindByIDs(ctx context.Context, ids []uint) ([]entity.ExecutionOrder, error) {
	var orders []entity.ExecutionOrder
	if len(ids) == 0 {
		return orders, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
