package repository

import (
	"context"
	"time"

	"golang-algo-trader/internal/entity"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyTrades is the per-day delta added to an algorithm's performance row.
type DailyTrades struct {
	AlgorithmID uint
	Date        time.Time
	BuyCount    int
	SellCount   int
	BuyValue    decimal.Decimal
	SellValue   decimal.Decimal
}

// PnL is sell notional minus buy notional.
func (d DailyTrades) PnL() decimal.Decimal {
	return d.SellValue.Sub(d.BuyValue)
}

type PerformanceRepository interface {
	AddTrades(ctx context.Context, trades DailyTrades) error
	CumulativePnL(ctx context.Context, algorithmID uint) (decimal.Decimal, error)
	FindByAlgorithmID(ctx context.Context, algorithmID uint, limit int) ([]entity.AlgorithmPerformance, error)
}

func NewPerformanceRepository(db *gorm.DB) PerformanceRepository {
	return &performanceRepository{db: db}
}

type performanceRepository struct {
	db *gorm.DB
}

// AddTrades upserts the (algorithm, date) row, incrementing its counters.
func (r *performanceRepository) AddTrades(ctx context.Context, trades DailyTrades) error {
	row := entity.AlgorithmPerformance{
		AlgorithmID: trades.AlgorithmID,
		Date:        trades.Date,
		TradesCount: trades.BuyCount + trades.SellCount,
		BuyCount:    trades.BuyCount,
		SellCount:   trades.SellCount,
		BuyValue:    trades.BuyValue,
		SellValue:   trades.SellValue,
		PnL:         trades.PnL(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "algorithm_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"trades_count": gorm.Expr("algorithm_performances.trades_count + ?", row.TradesCount),
			"buy_count":    gorm.Expr("algorithm_performances.buy_count + ?", row.BuyCount),
			"sell_count":   gorm.Expr("algorithm_performances.sell_count + ?", row.SellCount),
			"buy_value":    gorm.Expr("algorithm_performances.buy_value + ?", row.BuyValue),
			"sell_value":   gorm.Expr("algorithm_performances.sell_value + ?", row.SellValue),
			"pnl":          gorm.Expr("algorithm_performances.pnl + ?", row.PnL),
			"updated_at":   gorm.Expr("NOW()"),
		}),
	}).Create(&row).Error
}

func (r *performanceRepository) CumulativePnL(ctx context.Context, algorithmID uint) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&entity.AlgorithmPerformance{}).
		Select("COALESCE(SUM(pnl), 0)").
		Where("algorithm_id = ?", algorithmID).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Decimal, nil
}

func (r *performanceRepository) FindByAlgorithmID(ctx context.Context, algorithmID uint, limit int) ([]entity.AlgorithmPerformance, error) {
	var rows []entity.AlgorithmPerformance
	q := r.db.WithContext(ctx).Where("algorithm_id = ?", algorithmID).Order("date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
