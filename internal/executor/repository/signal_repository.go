package repository

import (
	"context"

	"golang-algo-trader/internal/entity"

	"gorm.io/gorm"
)

// SignalRepository defines the interface for signal data operations.
type SignalRepository interface {
	Create(ctx context.Context, signal *entity.Signal) error
	Update(ctx context.Context, signal *entity.Signal) error
	FindByID(ctx context.Context, id uint) (*entity.Signal, error)
	FindByAlgorithmID(ctx context.Context, algorithmID uint, limit int) ([]entity.Signal, error)
}

func NewSignalRepository(db *gorm.DB) SignalRepository {
	return &signalRepository{db: db}
}

type signalRepository struct {
	db *gorm.DB
}

func (r *signalRepository) Create(ctx context.Context, signal *entity.Signal) error {
	return r.db.WithContext(ctx).Create(signal).Error
}

func (r *signalRepository) Update(ctx context.Context, signal *entity.Signal) error {
	return r.db.WithContext(ctx).Save(signal).Error
}

func (r *signalRepository) FindByID(ctx context.Context, id uint) (*entity.Signal, error) {
	var signal entity.Signal
	if err := r.db.WithContext(ctx).First(&signal, id).Error; err != nil {
		return nil, err
	}
	return &signal, nil
}

// FindByAlgorithmID returns the most recent signals first.
func (r *signalRepository) FindByAlgorithmID(ctx context.Context, algorithmID uint, limit int) ([]entity.Signal, error) {
	var signals []entity.Signal
	q := r.db.WithContext(ctx).Where("algorithm_id = ?", algorithmID).Order("generated_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&signals).Error; err != nil {
		return nil, err
	}
	return signals, nil
}
