package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-algo-trader/internal/entity"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPortfolioNotFound    = errors.New("portfolio not found")
	ErrInsufficientCash     = errors.New("insufficient cash balance")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)

// Fill is an executed trade to be applied to a portfolio.
type Fill struct {
	PortfolioID      uint
	AssetID          uint
	ExecutionOrderID uint
	Symbol           string
	Side             entity.OrderSide
	Quantity         decimal.Decimal
	Price            decimal.Decimal
	Broker           string
	BrokerOrderID    string
	ExecutedAt       time.Time
}

func (f Fill) Amount() decimal.Decimal {
	return f.Quantity.Mul(f.Price)
}

// PortfolioRepository reads balances and holdings and applies fills atomically.
type PortfolioRepository interface {
	FindByID(ctx context.Context, id uint) (*entity.Portfolio, error)
	FindDefault(ctx context.Context, userID uint, tradingMode, region string) (*entity.Portfolio, error)
	HoldingQuantity(ctx context.Context, portfolioID, assetID uint) (decimal.Decimal, error)
	Holdings(ctx context.Context, portfolioID uint) ([]entity.Holding, error)
	ApplyFill(ctx context.Context, fill Fill) (*entity.Transaction, error)
}

func NewPortfolioRepository(db *gorm.DB) PortfolioRepository {
	return &portfolioRepository{db: db}
}

type portfolioRepository struct {
	db *gorm.DB
}

func (r *portfolioRepository) FindByID(ctx context.Context, id uint) (*entity.Portfolio, error) {
	var p entity.Portfolio
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPortfolioNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindDefault returns the user's default portfolio for a trading mode and region,
// or the oldest matching one when none is flagged default.
func (r *portfolioRepository) FindDefault(ctx context.Context, userID uint, tradingMode, region string) (*entity.Portfolio, error) {
	var p entity.Portfolio
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND trading_mode = ? AND region = ?", userID, tradingMode, region).
		Order("is_default DESC, id ASC").
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d %s/%s", ErrPortfolioNotFound, userID, tradingMode, region)
		}
		return nil, err
	}
	return &p, nil
}

func (r *portfolioRepository) HoldingQuantity(ctx context.Context, portfolioID, assetID uint) (decimal.Decimal, error) {
	var h entity.Holding
	err := r.db.WithContext(ctx).
		Where("portfolio_id = ? AND asset_id = ?", portfolioID, assetID).
		First(&h).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return h.Quantity, nil
}

func (r *portfolioRepository) Holdings(ctx context.Context, portfolioID uint) ([]entity.Holding, error) {
	var holdings []entity.Holding
	if err := r.db.WithContext(ctx).Where("portfolio_id = ? AND quantity > 0", portfolioID).Order("symbol").Find(&holdings).Error; err != nil {
		return nil, err
	}
	return holdings, nil
}

// ApplyFill moves cash, updates the holding at average cost and records the transaction in one
// database transaction. Portfolio and holding rows are locked for the duration.
func (r *portfolioRepository) ApplyFill(ctx context.Context, fill Fill) (*entity.Transaction, error) {
	var txn *entity.Transaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var portfolio entity.Portfolio
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&portfolio, fill.PortfolioID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPortfolioNotFound
			}
			return err
		}

		var holding entity.Holding
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("portfolio_id = ? AND asset_id = ?", fill.PortfolioID, fill.AssetID).
			First(&holding).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		amount := fill.Amount()
		switch fill.Side {
		case entity.SideBuy:
			if portfolio.CashBalance.LessThan(amount) {
				return fmt.Errorf("%w: need %s, have %s", ErrInsufficientCash, amount.StringFixed(2), portfolio.CashBalance.StringFixed(2))
			}
			portfolio.CashBalance = portfolio.CashBalance.Sub(amount)
			if exists {
				newQty := holding.Quantity.Add(fill.Quantity)
				holding.AverageCost = holding.Quantity.Mul(holding.AverageCost).Add(amount).Div(newQty)
				holding.Quantity = newQty
			} else {
				holding = entity.Holding{
					PortfolioID: fill.PortfolioID,
					AssetID:     fill.AssetID,
					Symbol:      fill.Symbol,
					Quantity:    fill.Quantity,
					AverageCost: fill.Price,
				}
			}
		case entity.SideSell:
			if !exists || holding.Quantity.LessThan(fill.Quantity) {
				return fmt.Errorf("%w: need %s, have %s", ErrInsufficientHoldings, fill.Quantity, holding.Quantity)
			}
			portfolio.CashBalance = portfolio.CashBalance.Add(amount)
			holding.Quantity = holding.Quantity.Sub(fill.Quantity)
		default:
			return fmt.Errorf("invalid side %q", fill.Side)
		}

		if err := tx.Model(&portfolio).Update("cash_balance", portfolio.CashBalance).Error; err != nil {
			return err
		}
		if err := tx.Save(&holding).Error; err != nil {
			return err
		}

		txn = &entity.Transaction{
			PortfolioID:      fill.PortfolioID,
			AssetID:          fill.AssetID,
			ExecutionOrderID: fill.ExecutionOrderID,
			Side:             fill.Side,
			Quantity:         fill.Quantity,
			Price:            fill.Price,
			Amount:           amount,
			Broker:           fill.Broker,
			BrokerOrderID:    fill.BrokerOrderID,
			ExecutedAt:       fill.ExecutedAt,
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}
