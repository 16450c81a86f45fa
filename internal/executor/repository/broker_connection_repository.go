package repository

import (
	"context"

	"golang-algo-trader/internal/entity"

	"gorm.io/gorm"
)

type BrokerConnectionRepository interface {
	HasActive(ctx context.Context, userID uint, broker string) (bool, error)
}

func NewBrokerConnectionRepository(db *gorm.DB) BrokerConnectionRepository {
	return &brokerConnectionRepository{db: db}
}

type brokerConnectionRepository struct {
	db *gorm.DB
}

// HasActive reports whether the user owns an active connection to broker.
func (r *brokerConnectionRepository) HasActive(ctx context.Context, userID uint, broker string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.BrokerConnection{}).
		Where("user_id = ? AND broker = ? AND is_active = ?", userID, broker, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
