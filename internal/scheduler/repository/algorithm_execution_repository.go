package repository

import (
	"context"

	"golang-algo-trader/internal/entity"

	"gorm.io/gorm"
)

// AlgorithmExecutionRepository defines the interface for algorithm run records.
type AlgorithmExecutionRepository interface {
	Create(ctx context.Context, execution *entity.AlgorithmExecution) error
	FindByID(ctx context.Context, id uint) (*entity.AlgorithmExecution, error)
	FindAllByAlgorithmID(ctx context.Context, algorithmID uint, limit int) ([]entity.AlgorithmExecution, error)
	Update(ctx context.Context, execution *entity.AlgorithmExecution) error
}

// NewAlgorithmExecutionRepository creates a new GORM-based algorithm execution repository.
func NewAlgorithmExecutionRepository(db *gorm.DB) AlgorithmExecutionRepository {
	return &algorithmExecutionRepository{db: db}
}

type algorithmExecutionRepository struct {
	db *gorm.DB
}

// Create creates a new run record.
func (r *algorithmExecutionRepository) Create(ctx context.Context, execution *entity.AlgorithmExecution) error {
	return r.db.WithContext(ctx).Create(execution).Error
}

// FindByID retrieves a run record by its ID.
func (r *algorithmExecutionRepository) FindByID(ctx context.Context, id uint) (*entity.AlgorithmExecution, error) {
	var execution entity.AlgorithmExecution
	if err := r.db.WithContext(ctx).First(&execution, id).Error; err != nil {
		return nil, err
	}
	return &execution, nil
}

// FindAllByAlgorithmID retrieves the most recent runs of an algorithm.
func (r *algorithmExecutionRepository) FindAllByAlgorithmID(ctx context.Context, algorithmID uint, limit int) ([]entity.AlgorithmExecution, error) {
	var executions []entity.AlgorithmExecution
	q := r.db.WithContext(ctx).Where("algorithm_id = ?", algorithmID).Order("started_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&executions).Error; err != nil {
		return nil, err
	}
	return executions, nil
}

// Update saves every column of the run record.
func (r *algorithmExecutionRepository) Update(ctx context.Context, execution *entity.AlgorithmExecution) error {
	return r.db.WithContext(ctx).Save(execution).Error
}
