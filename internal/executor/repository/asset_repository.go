package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-algo-trader/internal/entity"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrAssetNotFound = errors.New("asset not found")

type AssetRepository interface {
	FindBySymbol(ctx context.Context, symbol, region string) (*entity.Asset, error)
	FindBySymbols(ctx context.Context, symbols []string, region string) ([]entity.Asset, error)
	FindActiveByRegion(ctx context.Context, region string) ([]entity.Asset, error)
	UpdatePrice(ctx context.Context, symbol, region string, price decimal.Decimal, at time.Time) error
}

type assetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

func (r *assetRepository) FindBySymbol(ctx context.Context, symbol, region string) (*entity.Asset, error) {
	var asset entity.Asset
	err := r.db.WithContext(ctx).Where("symbol = ? AND region = ?", symbol, region).First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrAssetNotFound, symbol, region)
		}
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) FindBySymbols(ctx context.Context, symbols []string, region string) ([]entity.Asset, error) {
	var assets []entity.Asset
	if len(symbols) == 0 {
		return assets, nil
	}
	if err := r.db.WithContext(ctx).Where("symbol IN ? AND region = ?", symbols, region).Order("symbol").Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *assetRepository) FindActiveByRegion(ctx context.Context, region string) ([]entity.Asset, error) {
	var assets []entity.Asset
	if err := r.db.WithContext(ctx).Where("region = ? AND is_active = ?", region, true).Order("symbol").Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *assetRepository) UpdatePrice(ctx context.Context, symbol, region string, price decimal.Decimal, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.Asset{}).
		Where("symbol = ? AND region = ?", symbol, region).
		Updates(map[string]interface{}{
			"current_price":    price,
			"price_updated_at": at,
		}).Error
}
