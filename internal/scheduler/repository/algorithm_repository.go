package repository

import (
	"context"
	"errors"
	"time"

	"golang-algo-trader/internal/entity"

	"gorm.io/gorm"
)

var (
	ErrAlgorithmNotFound = errors.New("algorithm not found")
	// ErrClaimLost is returned by Claim when another tick or instance already holds the algorithm.
	ErrClaimLost = errors.New("algorithm execution already claimed")
)

// AlgorithmRepository defines the interface for algorithm data operations.
// Runtime columns (currently_executing, last_run_at, next_scheduled_run, status) are only written
// through the dedicated methods below.
type AlgorithmRepository interface {
	Create(ctx context.Context, algorithm *entity.Algorithm) error
	FindByID(ctx context.Context, id uint) (*entity.Algorithm, error)
	FindAll(ctx context.Context, userID uint) ([]entity.Algorithm, error)
	FindRunnable(ctx context.Context) ([]entity.Algorithm, error)
	Claim(ctx context.Context, id uint, at time.Time) error
	Release(ctx context.Context, id uint, lastRunAt, nextRun *time.Time) error
	Stop(ctx context.Context, id uint, reason string) error
	Activate(ctx context.Context, id uint) error
	Deactivate(ctx context.Context, id uint) error
	ReleaseStaleClaims(ctx context.Context, claimedBefore time.Time) (int64, error)
}

// NewAlgorithmRepository creates a new GORM-based algorithm repository.
func NewAlgorithmRepository(db *gorm.DB) AlgorithmRepository {
	return &algorithmRepository{db: db}
}

type algorithmRepository struct {
	db *gorm.DB
}

func (r *algorithmRepository) Create(ctx context.Context, algorithm *entity.Algorithm) error {
	return r.db.WithContext(ctx).Create(algorithm).Error
}

func (r *algorithmRepository) FindByID(ctx context.Context, id uint) (*entity.Algorithm, error) {
	var algorithm entity.Algorithm
	if err := r.db.WithContext(ctx).First(&algorithm, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlgorithmNotFound
		}
		return nil, err
	}
	return &algorithm, nil
}

// FindAll lists algorithms, optionally restricted to one user (userID 0 means all).
func (r *algorithmRepository) FindAll(ctx context.Context, userID uint) ([]entity.Algorithm, error) {
	var algorithms []entity.Algorithm
	q := r.db.WithContext(ctx).Order("id ASC")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Find(&algorithms).Error; err != nil {
		return nil, err
	}
	return algorithms, nil
}

// FindRunnable returns active, auto-run algorithms that are not executing.
func (r *algorithmRepository) FindRunnable(ctx context.Context) ([]entity.Algorithm, error) {
	var algorithms []entity.Algorithm
	err := r.db.WithContext(ctx).
		Where("status = ? AND auto_run = ? AND currently_executing = ?", entity.AlgorithmStatusActive, true, false).
		Order("id ASC").
		Find(&algorithms).Error
	if err != nil {
		return nil, err
	}
	return algorithms, nil
}

// Claim sets currently_executing with a conditional update. Exactly one caller wins.
func (r *algorithmRepository) Claim(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&entity.Algorithm{}).
		Where("id = ? AND currently_executing = ? AND status = ?", id, false, entity.AlgorithmStatusActive).
		Updates(map[string]interface{}{
			"currently_executing":  true,
			"execution_claimed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrClaimLost
	}
	return nil
}

// Release clears the claim. lastRunAt and nextRun are written when non-nil.
func (r *algorithmRepository) Release(ctx context.Context, id uint, lastRunAt, nextRun *time.Time) error {
	updates := map[string]interface{}{
		"currently_executing":  false,
		"execution_claimed_at": nil,
	}
	if lastRunAt != nil {
		updates["last_run_at"] = *lastRunAt
	}
	if nextRun != nil {
		updates["next_scheduled_run"] = *nextRun
	}
	return r.db.WithContext(ctx).Model(&entity.Algorithm{}).Where("id = ?", id).Updates(updates).Error
}

// Stop moves the algorithm to inactive and records why. It stays stopped until Activate.
func (r *algorithmRepository) Stop(ctx context.Context, id uint, reason string) error {
	return r.db.WithContext(ctx).Model(&entity.Algorithm{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":               entity.AlgorithmStatusInactive,
			"auto_run":             false,
			"stop_reason":          reason,
			"currently_executing":  false,
			"execution_claimed_at": nil,
			"next_scheduled_run":   nil,
		}).Error
}

func (r *algorithmRepository) Activate(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&entity.Algorithm{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":               entity.AlgorithmStatusActive,
			"auto_run":             true,
			"stop_reason":          "",
			"currently_executing":  false,
			"execution_claimed_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlgorithmNotFound
	}
	return nil
}

func (r *algorithmRepository) Deactivate(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&entity.Algorithm{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":             entity.AlgorithmStatusInactive,
			"auto_run":           false,
			"next_scheduled_run": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlgorithmNotFound
	}
	return nil
}

// ReleaseStaleClaims clears claims left behind by a crashed run.
func (r *algorithmRepository) ReleaseStaleClaims(ctx context.Context, claimedBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&entity.Algorithm{}).
		Where("currently_executing = ? AND (execution_claimed_at IS NULL OR execution_claimed_at < ?)", true, claimedBefore).
		Updates(map[string]interface{}{
			"currently_executing":  false,
			"execution_claimed_at": nil,
		})
	return res.RowsAffected, res.Error
}
