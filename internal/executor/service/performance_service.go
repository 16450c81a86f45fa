package service

import (
	"context"
	"time"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/executor/repository"

	"github.com/shopspring/decimal"
)

// TradeFill is a filled trade counted towards an algorithm's daily snapshot.
type TradeFill struct {
	Side     entity.OrderSide
	Notional decimal.Decimal
}

// PerformanceService maintains the per-day performance snapshot of each algorithm.
type PerformanceService interface {
	Record(ctx context.Context, algorithmID uint, at time.Time, fills ...TradeFill) error
	CumulativePnL(ctx context.Context, algorithmID uint) (decimal.Decimal, error)
	History(ctx context.Context, algorithmID uint, limit int) ([]entity.AlgorithmPerformance, error)
}

type performanceService struct {
	repo repository.PerformanceRepository
}

func NewPerformanceService(repo repository.PerformanceRepository) PerformanceService {
	return &performanceService{repo: repo}
}

// Record folds the fills into the snapshot for at's UTC date. No fills is a no-op.
func (s *performanceService) Record(ctx context.Context, algorithmID uint, at time.Time, fills ...TradeFill) error {
	if len(fills) == 0 {
		return nil
	}
	y, m, d := at.UTC().Date()
	trades := repository.DailyTrades{
		AlgorithmID: algorithmID,
		Date:        time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}
	for _, f := range fills {
		switch f.Side {
		case entity.SideBuy:
			trades.BuyCount++
			trades.BuyValue = trades.BuyValue.Add(f.Notional)
		case entity.SideSell:
			trades.SellCount++
			trades.SellValue = trades.SellValue.Add(f.Notional)
		}
	}
	return s.repo.AddTrades(ctx, trades)
}

func (s *performanceService) CumulativePnL(ctx context.Context, algorithmID uint) (decimal.Decimal, error) {
	return s.repo.CumulativePnL(ctx, algorithmID)
}

func (s *performanceService) History(ctx context.Context, algorithmID uint, limit int) ([]entity.AlgorithmPerformance, error) {
	return s.repo.FindByAlgorithmID(ctx, algorithmID, limit)
}
