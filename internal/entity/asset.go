package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Asset struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	Symbol         string              `gorm:"not null;uniqueIndex:idx_asset_symbol_region" json:"symbol"`
	Name           string              `gorm:"not null" json:"name"`
	Region         string              `gorm:"not null;uniqueIndex:idx_asset_symbol_region" json:"region"`
	Exchange       string              `gorm:"not null" json:"exchange"`
	CurrentPrice   decimal.NullDecimal `gorm:"type:numeric(20,6)" json:"current_price"`
	PriceUpdatedAt *time.Time          `json:"price_updated_at"`
	IsActive       bool                `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Asset) TableName() string {
	return "assets"
}
