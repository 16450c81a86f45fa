package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlgorithmPerformance is the per-day trading snapshot of one algorithm.
type AlgorithmPerformance struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	AlgorithmID uint            `gorm:"not null;uniqueIndex:idx_algorithm_performance_day" json:"algorithm_id"`
	Date        time.Time       `gorm:"type:date;not null;uniqueIndex:idx_algorithm_performance_day" json:"date"`
	TradesCount int             `gorm:"not null;default:0" json:"trades_count"`
	BuyCount    int             `gorm:"not null;default:0" json:"buy_count"`
	SellCount   int             `gorm:"not null;default:0" json:"sell_count"`
	BuyValue    decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"buy_value"`
	SellValue   decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"sell_value"`
	PnL         decimal.Decimal `gorm:"column:pnl;type:numeric(20,4);not null;default:0" json:"pnl"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AlgorithmPerformance) TableName() string {
	return "algorithm_performances"
}
